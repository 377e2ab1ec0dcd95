package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusDraft        OrderStatus = "DRAFT"
	OrderStatusPending      OrderStatus = "PENDING"
	OrderStatusProcessing   OrderStatus = "PROCESSING"
	OrderStatusCompleted    OrderStatus = "COMPLETED"
	OrderStatusFailed       OrderStatus = "FAILED"
	OrderStatusAbnormalStop OrderStatus = "ABNORMAL_STOP"
	OrderStatusSelfStop     OrderStatus = "SELF_STOP"
	OrderStatusRefunded     OrderStatus = "REFUNDED"
	OrderStatusCanceled     OrderStatus = "CANCELED"
)

// ActiveOrderStatuses are the statuses a wash event may move an order out of.
var ActiveOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing}

// IsTerminal reports whether no further transition may be applied.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusAbnormalStop,
		OrderStatusSelfStop, OrderStatusRefunded, OrderStatusCanceled:
		return true
	}
	return false
}

// OrderType distinguishes regular wash orders from card tokenization and package purchases.
type OrderType string

const (
	OrderTypeDefault  OrderType = "default"
	OrderTypeTokenize OrderType = "tokenize"
	OrderTypePackage  OrderType = "package"
)

// Order is a customer booking of one or more wash sessions.
type Order struct {
	ID            string            `gorm:"primaryKey;size:36" json:"id"`
	IncrementID   int64             `gorm:"uniqueIndex;not null" json:"incrementId"`
	Status        OrderStatus       `gorm:"size:32;index;not null" json:"status"`
	Type          OrderType         `gorm:"size:32;not null;default:default" json:"type"`
	CustomerID    string            `gorm:"size:36;index" json:"customerId"`
	CustomerName  string            `gorm:"size:256" json:"customerName"`
	CustomerEmail string            `gorm:"size:256" json:"customerEmail"`
	GrandTotal    float64           `json:"grandTotal"`
	Data          datatypes.JSONMap `json:"data"`
	ExternalID    *string           `gorm:"size:64;index" json:"externalId"`
	CreatedAt     time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"-"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// StationID returns the station the order was booked at.
func (o *Order) StationID() string {
	return stringField(o.Data, "stationId")
}

// OrderItem is exactly one physical wash session within an order.
type OrderItem struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	OrderID    string            `gorm:"size:36;index;not null" json:"orderId"`
	Data       datatypes.JSONMap `json:"data"`
	ExternalID *string           `gorm:"size:64;index" json:"externalId"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// DeviceNo returns the machine this session runs on.
func (i *OrderItem) DeviceNo() string {
	return stringField(i.Data, "deviceNo")
}

// TransactionStatus is the status of a payment transaction.
type TransactionStatus string

const (
	TransactionStatusDraft     TransactionStatus = "DRAFT"
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// OrderTransaction is a payment attempt for an order.
type OrderTransaction struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	OrderID    string            `gorm:"size:36;index;not null" json:"orderId"`
	Status     TransactionStatus `gorm:"size:32;not null" json:"status"`
	Amount     float64           `json:"amount"`
	Method     string            `gorm:"size:64" json:"method"`
	ExternalID *string           `gorm:"size:64;index" json:"externalId"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (t *OrderTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func stringField(m datatypes.JSONMap, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
