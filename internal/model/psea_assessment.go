package model

import (
	"time"

	"gorm.io/datatypes"
)

// PSEA assessment statuses.
const (
	PSEAStatusDraft      = "draft"
	PSEAStatusAssigned   = "assigned"
	PSEAStatusInProgress = "in_progress"
	PSEAStatusSubmitted  = "submitted"
	PSEAStatusRejected   = "rejected"
	PSEAStatusFinal      = "final"
	PSEAStatusCancelled  = "cancelled"
)

// PSEAAssessment tracks a partner's protection-from-sexual-exploitation-and-
// abuse assessment.
type PSEAAssessment struct {
	WorkflowBase
	PartnerID      uint                      `json:"partner_id" gorm:"index;not null"`
	AssessorID     *uint                     `json:"assessor_id" gorm:"index"`
	AssignerID     *uint                     `json:"assigned_by_id" gorm:"column:assigned_by_id;index"`
	CreatedByID    uint                      `json:"created_by_id" gorm:"index"`
	FocalPoints    datatypes.JSONSlice[uint] `json:"focal_points"`
	AssessmentDate *time.Time                `json:"assessment_date"`
	OverallRating  *float64                  `json:"overall_rating"`
	Answers        datatypes.JSON            `json:"answers"`
	RejectComment  string                    `json:"reject_comment" gorm:"type:text"`
	CancelComment  string                    `json:"cancel_comment" gorm:"type:text"`
}

func (PSEAAssessment) TableName() string { return "psea_assessments" }

func (p *PSEAAssessment) ObjectKind() string { return "pseaassessment" }

func (p *PSEAAssessment) FieldValue(name string) (interface{}, bool) {
	switch name {
	case "partner":
		return p.PartnerID, true
	case "assessor":
		return p.AssessorID, true
	case "assessment_date":
		return p.AssessmentDate, true
	case "overall_rating":
		return p.OverallRating, true
	case "answers":
		return p.Answers, true
	case "reject_comment":
		return p.RejectComment, true
	default:
		return nil, false
	}
}

func (p *PSEAAssessment) TrackedFields() map[string]interface{} {
	return map[string]interface{}{
		"status":          p.Status,
		"partner":         p.PartnerID,
		"assessor":        p.AssessorID,
		"assessment_date": p.AssessmentDate,
		"overall_rating":  p.OverallRating,
	}
}

func (p *PSEAAssessment) AuthorID() *uint { return &p.CreatedByID }
func (p *PSEAAssessment) AssigneeIDs() []uint {
	if p.AssessorID != nil {
		return []uint{*p.AssessorID}
	}
	return nil
}
func (p *PSEAAssessment) AssignedByID() *uint        { return p.AssignerID }
func (p *PSEAAssessment) FocalPointIDs() []uint      { return p.FocalPoints }
func (p *PSEAAssessment) StaffOrganizationID() *uint { return nil }
func (p *PSEAAssessment) LinkedPartnerID() *uint     { return &p.PartnerID }
