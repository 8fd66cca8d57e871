package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowBase carries the fields every workflow object shares: the year-keyed
// reference number, the status string and its change timestamp.
type WorkflowBase struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	ReferenceNumber string         `json:"reference_number" gorm:"type:varchar(50);uniqueIndex"`
	Status          string         `json:"status" gorm:"type:varchar(50);index;not null"`
	StatusDate      time.Time      `json:"status_date"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// ObjectID returns the primary key.
func (b *WorkflowBase) ObjectID() uint { return b.ID }

// CurrentStatus returns the status string.
func (b *WorkflowBase) CurrentStatus() string { return b.Status }

// StatusChangedAt returns when the status last changed.
func (b *WorkflowBase) StatusChangedAt() time.Time { return b.StatusDate }

// SetStatus assigns the status and stamps the monitor field.
func (b *WorkflowBase) SetStatus(status string, at time.Time) {
	b.Status = status
	b.StatusDate = at
}

// IsNew reports whether the object has not been persisted yet.
func (b *WorkflowBase) IsNew() bool { return b.ID == 0 }

// Reference returns the assigned reference number.
func (b *WorkflowBase) Reference() string { return b.ReferenceNumber }

// SetReference assigns the reference number. Called once, inside the
// creating transaction.
func (b *WorkflowBase) SetReference(ref string) { b.ReferenceNumber = ref }

// BuildReferenceNumber formats a reference as {prefix}/{year}/{seq}/{kind},
// e.g. "KEN/2024/0042/AUDIT".
func BuildReferenceNumber(prefix string, year int, seq int64, kindCode string) string {
	return fmt.Sprintf("%s/%d/%04d/%s", prefix, year, seq, kindCode)
}

// AssignReferenceNumber fills obj's reference number from the workspace code
// and the per-year sequence for its table. Called explicitly inside the
// creating transaction, never from a save hook.
func AssignReferenceNumber(tx *gorm.DB, ws *Workspace, table string, year int, kindCode string, set func(string)) error {
	var n int64
	pattern := fmt.Sprintf("%%/%d/%%", year)
	if err := tx.Table(table).Where("reference_number LIKE ?", pattern).Count(&n).Error; err != nil {
		return err
	}
	set(BuildReferenceNumber(ws.CountryShortCode, year, n+1, kindCode))
	return nil
}

// TransitionLog records one successful status transition.
type TransitionLog struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	ObjectKind   string         `json:"object_kind" gorm:"type:varchar(50);index:idx_translog_target;not null"`
	ObjectID     uint           `json:"object_id" gorm:"index:idx_translog_target;not null"`
	FromStatus   string         `json:"from_status" gorm:"type:varchar(50);not null"`
	ToStatus     string         `json:"to_status" gorm:"type:varchar(50);not null"`
	Action       string         `json:"action" gorm:"type:varchar(50);not null"`
	ActorID      uint           `json:"actor_id" gorm:"index"`
	Comment      string         `json:"comment" gorm:"type:text"`
	Payload      datatypes.JSON `json:"payload"`
	TransitionAt time.Time      `json:"transition_at"`
}
