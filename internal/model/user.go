package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserType separates app customers from back-office accounts.
type UserType string

const (
	UserTypeClient UserType = "client"
	UserTypeAdmin  UserType = "admin"
)

// User is an app account mirrored to the CRM.
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Type       UserType  `gorm:"size:16;not null;default:client" json:"type"`
	Name       string    `gorm:"size:256" json:"name"`
	Email      string    `gorm:"size:256;index" json:"email"`
	Phone      string    `gorm:"size:32" json:"phone"`
	ExternalID *string   `gorm:"size:64;index" json:"externalId"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Campaign is a marketing campaign mirrored to the CRM.
type Campaign struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	Name       string            `gorm:"size:256;not null" json:"name"`
	Data       datatypes.JSONMap `json:"data"`
	ExternalID *string           `gorm:"size:64;index" json:"externalId"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (c *Campaign) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
