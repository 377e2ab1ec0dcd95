package model

import (
	"time"

	"gorm.io/datatypes"
)

// SyncType names the kind of record pushed to the CRM.
type SyncType string

const (
	SyncTypeUser             SyncType = "USER"
	SyncTypeOrder            SyncType = "ORDER"
	SyncTypeOrderItem        SyncType = "ORDER_ITEM"
	SyncTypeOrderTransaction SyncType = "ORDER_TRANSACTION"
	SyncTypeCampaign         SyncType = "CAMPAIGN"
	SyncTypeRefund           SyncType = "REFUND"
)

// SyncAction is what the CRM is asked to do with a record.
type SyncAction string

const (
	SyncActionSync   SyncAction = "Sync"
	SyncActionDelete SyncAction = "Delete"
)

// SyncLog is the latest sync attempt for one (object, type) pair.
type SyncLog struct {
	ID        uint       `gorm:"primaryKey"`
	ObjectID  string     `gorm:"size:36;not null;uniqueIndex:idx_sync_logs_object_type,priority:1"`
	Type      SyncType   `gorm:"size:32;not null;uniqueIndex:idx_sync_logs_object_type,priority:2"`
	Action    SyncAction `gorm:"size:16;not null"`
	Synced    bool       `gorm:"not null;default:false;index"`
	Value     datatypes.JSONMap
	SyncedAt  time.Time
	CreatedAt time.Time
}

// SyncJob is a pending unit of work in the database-backed queue.
type SyncJob struct {
	ID          uint       `gorm:"primaryKey"`
	QueueName   string     `gorm:"size:64;not null;uniqueIndex:idx_sync_jobs_queue_key,priority:1;index:idx_sync_jobs_due,priority:1"`
	JobKey      string     `gorm:"size:128;not null;uniqueIndex:idx_sync_jobs_queue_key,priority:2"`
	Type        SyncType   `gorm:"size:32;not null"`
	Action      SyncAction `gorm:"size:16;not null"`
	ObjectID    string     `gorm:"size:36;not null"`
	AvailableAt time.Time  `gorm:"not null;index:idx_sync_jobs_due,priority:2"`
	CreatedAt   time.Time
}
