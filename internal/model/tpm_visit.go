package model

import (
	"time"

	"gorm.io/datatypes"
)

// TPM visit statuses.
const (
	TPMVisitStatusDraft          = "draft"
	TPMVisitStatusAssigned       = "assigned"
	TPMVisitStatusAccepted       = "tpm_accepted"
	TPMVisitStatusRejected       = "tpm_rejected"
	TPMVisitStatusReported       = "tpm_reported"
	TPMVisitStatusReportRejected = "tpm_report_rejected"
	TPMVisitStatusApproved       = "unicef_approved"
	TPMVisitStatusCancelled      = "cancelled"
)

// TPMVisit is a third-party monitoring visit carried out by a TPM firm on
// behalf of the country office.
type TPMVisit struct {
	WorkflowBase
	TPMPartnerID      *uint                     `json:"tpm_partner_id" gorm:"index"`
	PartnerID         *uint                     `json:"partner_id" gorm:"index"`
	CreatedByID       uint                      `json:"created_by_id" gorm:"index"`
	TeamMembers       datatypes.JSONSlice[uint] `json:"team_members"`
	UnicefFocalPoints datatypes.JSONSlice[uint] `json:"unicef_focal_points"`
	StartDate         *time.Time                `json:"start_date"`
	EndDate           *time.Time                `json:"end_date"`
	RejectComment     string                    `json:"reject_comment" gorm:"type:text"`
	ReportRejectComment string                  `json:"report_reject_comment" gorm:"type:text"`
	CancelComment     string                    `json:"cancel_comment" gorm:"type:text"`
}

func (TPMVisit) TableName() string { return "tpm_visits" }

func (v *TPMVisit) ObjectKind() string { return "tpmvisit" }

func (v *TPMVisit) FieldValue(name string) (interface{}, bool) {
	switch name {
	case "tpm_partner":
		return v.TPMPartnerID, true
	case "partner":
		return v.PartnerID, true
	case "start_date":
		return v.StartDate, true
	case "end_date":
		return v.EndDate, true
	case "reject_comment":
		return v.RejectComment, true
	case "report_reject_comment":
		return v.ReportRejectComment, true
	case "cancel_comment":
		return v.CancelComment, true
	default:
		return nil, false
	}
}

func (v *TPMVisit) TrackedFields() map[string]interface{} {
	return map[string]interface{}{
		"status":      v.Status,
		"tpm_partner": v.TPMPartnerID,
		"partner":     v.PartnerID,
		"start_date":  v.StartDate,
		"end_date":    v.EndDate,
	}
}

func (v *TPMVisit) AuthorID() *uint            { return &v.CreatedByID }
func (v *TPMVisit) AssigneeIDs() []uint        { return v.TeamMembers }
func (v *TPMVisit) AssignedByID() *uint        { return nil }
func (v *TPMVisit) FocalPointIDs() []uint      { return v.UnicefFocalPoints }
func (v *TPMVisit) StaffOrganizationID() *uint { return v.TPMPartnerID }
func (v *TPMVisit) LinkedPartnerID() *uint     { return v.PartnerID }
