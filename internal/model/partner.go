package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Partner is the per-workspace profile of a shared Organization, carrying the
// HACT/risk state. The three flags are orthogonal: Hidden suppresses the
// partner in default listings, Blocked forbids new workflow objects,
// DeletedFlag is a soft-delete marker.
type Partner struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	OrganizationID     uint           `json:"organization_id" gorm:"index;not null"`
	Rating             string         `json:"rating" gorm:"type:varchar(50)"`
	SEARiskRating      string         `json:"sea_risk_rating" gorm:"type:varchar(50)"`
	TotalCTCP          float64        `json:"total_ct_cp"`
	TotalCTCY          float64        `json:"total_ct_cy"`
	NetCTCY            float64        `json:"net_ct_cy"`
	ReportedCY         float64        `json:"reported_cy"`
	HactValues         datatypes.JSON `json:"hact_values"`
	LastAssessmentDate *time.Time     `json:"last_assessment_date"`
	Hidden             bool           `json:"hidden" gorm:"default:false"`
	DeletedFlag        bool           `json:"deleted_flag" gorm:"default:false"`
	Blocked            bool           `json:"blocked" gorm:"default:false"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}

// HactHistory stores one frozen counter block per partner per year.
type HactHistory struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	PartnerID    uint           `json:"partner_id" gorm:"not null;uniqueIndex:idx_hact_year,priority:1"`
	Year         int            `json:"year" gorm:"uniqueIndex:idx_hact_year,priority:2"`
	FrozenValues datatypes.JSON `json:"frozen_values"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HactCounterGuard makes counter increments idempotent: one row per
// (counter, source object), written in the same transaction as the increment.
// Re-entering the same terminal state inserts nothing and increments nothing.
type HactCounterGuard struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	PartnerID      uint      `json:"partner_id" gorm:"index;not null"`
	Counter        string    `json:"counter" gorm:"type:varchar(100);not null;uniqueIndex:idx_hact_guard,priority:1"`
	SourceKind     string    `json:"source_kind" gorm:"type:varchar(50);not null;uniqueIndex:idx_hact_guard,priority:2"`
	SourceObjectID uint      `json:"source_object_id" gorm:"not null;uniqueIndex:idx_hact_guard,priority:3"`
	CreatedAt      time.Time `json:"created_at"`
}
