package model

import (
	"time"

	"gorm.io/datatypes"
)

// Activity kinds.
const (
	ActivityKindCreate     = "create"
	ActivityKindUpdate     = "update"
	ActivityKindDelete     = "delete"
	ActivityKindTransition = "transition"
)

// Activity is the append-only audit record written on every tracked write and
// every transition. Change is a field-level diff {field: {before, after}}.
// Rows are never mutated or purged by the core.
type Activity struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TargetKind string         `json:"target_kind" gorm:"type:varchar(50);index:idx_activity_target;not null"`
	TargetID   uint           `json:"target_id" gorm:"index:idx_activity_target;not null"`
	ActorID    uint           `json:"actor_id" gorm:"index:idx_activity_actor"`
	Kind       string         `json:"kind" gorm:"type:varchar(20);not null"`
	Before     datatypes.JSON `json:"before"`
	After      datatypes.JSON `json:"after"`
	Change     datatypes.JSON `json:"change"`
	At         time.Time      `json:"at" gorm:"index:idx_activity_actor"`
}

func (Activity) TableName() string { return "activities" }
