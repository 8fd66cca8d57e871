package model

import (
	"time"

	"gorm.io/datatypes"
)

// Monitoring activity statuses.
const (
	MonitoringStatusDraft              = "draft"
	MonitoringStatusChecklist          = "checklist"
	MonitoringStatusReview             = "review"
	MonitoringStatusAssigned           = "assigned"
	MonitoringStatusDataCollection     = "data_collection"
	MonitoringStatusReportFinalization = "report_finalization"
	MonitoringStatusSubmitted          = "submitted"
	MonitoringStatusCompleted          = "completed"
	MonitoringStatusCancelled          = "cancelled"
)

// MonitoringActivity is a field-monitoring activity run by country-office
// staff or a TPM firm.
type MonitoringActivity struct {
	WorkflowBase
	PartnerID       *uint                     `json:"partner_id" gorm:"index"`
	VisitLeadID     *uint                     `json:"visit_lead_id" gorm:"index"`
	CreatedByID     uint                      `json:"created_by_id" gorm:"index"`
	TeamMembers     datatypes.JSONSlice[uint] `json:"team_members"`
	ReportReviewers datatypes.JSONSlice[uint] `json:"report_reviewers"`
	StartDate       *time.Time                `json:"start_date"`
	EndDate         *time.Time                `json:"end_date"`
	RejectReason    string                    `json:"reject_reason" gorm:"type:text"`
	ReportRejectReason string                 `json:"report_reject_reason" gorm:"type:text"`
	CancelReason    string                    `json:"cancel_reason" gorm:"type:text"`
}

func (MonitoringActivity) TableName() string { return "monitoring_activities" }

func (m *MonitoringActivity) ObjectKind() string { return "monitoringactivity" }

func (m *MonitoringActivity) FieldValue(name string) (interface{}, bool) {
	switch name {
	case "partner":
		return m.PartnerID, true
	case "visit_lead":
		return m.VisitLeadID, true
	case "start_date":
		return m.StartDate, true
	case "end_date":
		return m.EndDate, true
	case "reject_reason":
		return m.RejectReason, true
	case "report_reject_reason":
		return m.ReportRejectReason, true
	case "cancel_reason":
		return m.CancelReason, true
	default:
		return nil, false
	}
}

func (m *MonitoringActivity) TrackedFields() map[string]interface{} {
	return map[string]interface{}{
		"status":     m.Status,
		"partner":    m.PartnerID,
		"visit_lead": m.VisitLeadID,
		"start_date": m.StartDate,
		"end_date":   m.EndDate,
	}
}

func (m *MonitoringActivity) AuthorID() *uint   { return &m.CreatedByID }
func (m *MonitoringActivity) AssigneeIDs() []uint {
	if m.VisitLeadID != nil {
		return append([]uint{*m.VisitLeadID}, m.TeamMembers...)
	}
	return m.TeamMembers
}
func (m *MonitoringActivity) AssignedByID() *uint        { return nil }
func (m *MonitoringActivity) FocalPointIDs() []uint      { return m.ReportReviewers }
func (m *MonitoringActivity) StaffOrganizationID() *uint { return nil }
func (m *MonitoringActivity) LinkedPartnerID() *uint     { return m.PartnerID }
