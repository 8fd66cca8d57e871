package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationOutbox is written inside the transition transaction and
// dispatched after commit. The unique natural key prevents duplicate
// delivery for the same transition and audience.
type NotificationOutbox struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	ObjectKind      string         `json:"object_kind" gorm:"type:varchar(50);not null;uniqueIndex:idx_outbox_key,priority:1"`
	ObjectID        uint           `json:"object_id" gorm:"not null;uniqueIndex:idx_outbox_key,priority:2"`
	TransitionLogID uint           `json:"transition_log_id" gorm:"not null;uniqueIndex:idx_outbox_key,priority:3"`
	Audience        string         `json:"audience" gorm:"type:varchar(50);not null;uniqueIndex:idx_outbox_key,priority:4"`
	Template        string         `json:"template" gorm:"type:varchar(100);not null"`
	Payload         datatypes.JSON `json:"payload"`
	Sent            bool           `json:"sent" gorm:"default:false;index"`
	Attempts        int            `json:"attempts" gorm:"default:0"`
	LastError       string         `json:"last_error" gorm:"type:text"`
	SentAt          *time.Time     `json:"sent_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }
