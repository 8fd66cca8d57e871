package model

import (
	"time"

	"gorm.io/datatypes"
)

// VisionSyncLog records one outbound sync to the finance/partner registry,
// including every retry attempt folded into Attempts.
type VisionSyncLog struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	WorkspaceID uint           `json:"workspace_id" gorm:"index"`
	Handler     string         `json:"handler" gorm:"type:varchar(100);index;not null"`
	Attempts    int            `json:"attempts"`
	Success     bool           `json:"success" gorm:"index"`
	Payload     datatypes.JSON `json:"payload"`
	Response    datatypes.JSON `json:"response"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (VisionSyncLog) TableName() string { return "vision_sync_logs" }
