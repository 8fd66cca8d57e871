package model

import (
	"time"

	"gorm.io/datatypes"
)

// Action point statuses.
const (
	ActionPointStatusOpen      = "open"
	ActionPointStatusCompleted = "completed"
)

// ActionPoint is a follow-up item raised against a partner or another
// workflow object and assigned to a user.
type ActionPoint struct {
	WorkflowBase
	Description  string                      `json:"description" gorm:"type:text"`
	DueDate      *time.Time                  `json:"due_date"`
	PartnerID    *uint                       `json:"partner_id" gorm:"index"`
	AssignedToID uint                        `json:"assigned_to_id" gorm:"index;not null"`
	AssignerID   uint                        `json:"assigned_by_id" gorm:"column:assigned_by_id;index"`
	CreatedByID  uint                        `json:"created_by_id" gorm:"index"`
	Comments     datatypes.JSONSlice[string] `json:"comments"`
	HighPriority bool                        `json:"high_priority" gorm:"default:false"`
}

func (ActionPoint) TableName() string { return "action_points" }

func (a *ActionPoint) ObjectKind() string { return "actionpoint" }

func (a *ActionPoint) FieldValue(name string) (interface{}, bool) {
	switch name {
	case "description":
		return a.Description, true
	case "due_date":
		return a.DueDate, true
	case "partner":
		return a.PartnerID, true
	case "assigned_to":
		return a.AssignedToID, true
	case "assigned_by":
		return a.AssignerID, true
	case "comments":
		return a.Comments, true
	case "high_priority":
		return a.HighPriority, true
	default:
		return nil, false
	}
}

func (a *ActionPoint) TrackedFields() map[string]interface{} {
	return map[string]interface{}{
		"status":        a.Status,
		"description":   a.Description,
		"due_date":      a.DueDate,
		"partner":       a.PartnerID,
		"assigned_to":   a.AssignedToID,
		"assigned_by":   a.AssignerID,
		"high_priority": a.HighPriority,
	}
}

func (a *ActionPoint) AuthorID() *uint            { return &a.CreatedByID }
func (a *ActionPoint) AssigneeIDs() []uint        { return []uint{a.AssignedToID} }
func (a *ActionPoint) AssignedByID() *uint        { return &a.AssignerID }
func (a *ActionPoint) FocalPointIDs() []uint      { return nil }
func (a *ActionPoint) StaffOrganizationID() *uint { return nil }
func (a *ActionPoint) LinkedPartnerID() *uint     { return a.PartnerID }
