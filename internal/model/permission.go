package model

import (
	"time"

	"gorm.io/datatypes"
)

// Permission kinds and effects.
const (
	PermissionKindView   = "view"
	PermissionKindEdit   = "edit"
	PermissionKindAction = "action"

	PermissionEffectAllow    = "allow"
	PermissionEffectDisallow = "disallow"
)

// PermissionRow is one (target, kind, effect, condition) tuple. Target is a
// field selector "entity.field", an action selector "entity.action", or a
// wildcard "entity.*". Conditions is the ordered list of predicate
// expressions ANDed together at evaluation time. The authoritative contents
// are regenerated by the seeder; manual edits are lost on re-seed.
type PermissionRow struct {
	ID         uint                        `json:"id" gorm:"primaryKey"`
	Target     string                      `json:"target" gorm:"type:varchar(150);index;not null"`
	Kind       string                      `json:"kind" gorm:"type:varchar(10);index;not null"`
	Effect     string                      `json:"effect" gorm:"type:varchar(10);not null"`
	Conditions datatypes.JSONSlice[string] `json:"conditions"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func (PermissionRow) TableName() string { return "permission_rows" }
