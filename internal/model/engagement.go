package model

import (
	"time"

	"gorm.io/datatypes"
)

// Engagement kinds. One record per engagement with a kind tag; the
// kind-specific field sets share the record.
const (
	EngagementKindAudit           = "audit"
	EngagementKindMicroAssessment = "micro_assessment"
	EngagementKindSpotCheck       = "spot_check"
	EngagementKindSpecialAudit    = "special_audit"
)

// Engagement statuses.
const (
	EngagementStatusPartnerContacted     = "partner_contacted"
	EngagementStatusFieldVisit           = "field_visit"
	EngagementStatusDraftIssuedToIP      = "draft_issued_to_ip"
	EngagementStatusCommentsByIP         = "comments_by_ip"
	EngagementStatusDraftIssuedToUnicef  = "draft_issued_to_unicef"
	EngagementStatusCommentsByUnicef     = "comments_by_unicef"
	EngagementStatusReportSubmitted      = "report_submitted"
	EngagementStatusFinal                = "final"
	EngagementStatusCancelled            = "cancelled"
)

// EngagementKindCode maps a kind to the reference-number suffix.
var EngagementKindCode = map[string]string{
	EngagementKindAudit:           "AUDIT",
	EngagementKindMicroAssessment: "MA",
	EngagementKindSpotCheck:       "SC",
	EngagementKindSpecialAudit:    "SA",
}

// AttachmentSlotAuditReport is the attachment slot the submit transition
// requires.
const AttachmentSlotAuditReport = "audit_report"

// Engagement is an audit-family workflow object (audit, micro assessment,
// spot check, special audit).
type Engagement struct {
	WorkflowBase
	Kind          string                    `json:"kind" gorm:"type:varchar(30);index;not null"`
	PartnerID     uint                      `json:"partner_id" gorm:"index;not null"`
	AuditorFirmID *uint                     `json:"auditor_firm_id" gorm:"index"`
	CreatedByID   uint                      `json:"created_by_id" gorm:"index"`
	FocalPoints   datatypes.JSONSlice[uint] `json:"focal_points"`
	StaffMembers  datatypes.JSONSlice[uint] `json:"staff_members"`

	PartnerContactedAt        *time.Time `json:"partner_contacted_at"`
	DateOfFieldVisit          *time.Time `json:"date_of_field_visit"`
	DateOfDraftReportToIP     *time.Time `json:"date_of_draft_report_to_ip"`
	DateOfCommentsByIP        *time.Time `json:"date_of_comments_by_ip"`
	DateOfDraftReportToUnicef *time.Time `json:"date_of_draft_report_to_unicef"`
	DateOfCommentsByUnicef    *time.Time `json:"date_of_comments_by_unicef"`
	EndDate                   *time.Time `json:"end_date"`

	TotalValue    float64 `json:"total_value"`
	Findings      string  `json:"findings" gorm:"type:text"`
	CancelComment string  `json:"cancel_comment" gorm:"type:text"`
}

func (Engagement) TableName() string { return "engagements" }

// ObjectKind implements the workflow and permission object contracts.
func (e *Engagement) ObjectKind() string { return "engagement" }

// FieldValue resolves a declared field by name. The set is fixed; there is no
// reflection in the engines.
func (e *Engagement) FieldValue(name string) (interface{}, bool) {
	switch name {
	case "kind":
		return e.Kind, true
	case "partner":
		return e.PartnerID, true
	case "auditor_firm":
		return e.AuditorFirmID, true
	case "partner_contacted_at":
		return e.PartnerContactedAt, true
	case "date_of_field_visit":
		return e.DateOfFieldVisit, true
	case "date_of_draft_report_to_ip":
		return e.DateOfDraftReportToIP, true
	case "date_of_comments_by_ip":
		return e.DateOfCommentsByIP, true
	case "date_of_draft_report_to_unicef":
		return e.DateOfDraftReportToUnicef, true
	case "date_of_comments_by_unicef":
		return e.DateOfCommentsByUnicef, true
	case "end_date":
		return e.EndDate, true
	case "total_value":
		return e.TotalValue, true
	case "findings":
		return e.Findings, true
	case "cancel_comment":
		return e.CancelComment, true
	default:
		return nil, false
	}
}

// TrackedFields is the snapshot field set.
func (e *Engagement) TrackedFields() map[string]interface{} {
	return map[string]interface{}{
		"status":                         e.Status,
		"kind":                           e.Kind,
		"partner":                        e.PartnerID,
		"auditor_firm":                   e.AuditorFirmID,
		"partner_contacted_at":           e.PartnerContactedAt,
		"date_of_field_visit":            e.DateOfFieldVisit,
		"date_of_draft_report_to_ip":     e.DateOfDraftReportToIP,
		"date_of_comments_by_ip":         e.DateOfCommentsByIP,
		"date_of_draft_report_to_unicef": e.DateOfDraftReportToUnicef,
		"date_of_comments_by_unicef":     e.DateOfCommentsByUnicef,
		"total_value":                    e.TotalValue,
		"findings":                       e.Findings,
	}
}

// Permission-condition accessors.

func (e *Engagement) AuthorID() *uint              { return &e.CreatedByID }
func (e *Engagement) AssigneeIDs() []uint          { return e.StaffMembers }
func (e *Engagement) AssignedByID() *uint          { return nil }
func (e *Engagement) FocalPointIDs() []uint        { return e.FocalPoints }
func (e *Engagement) StaffOrganizationID() *uint   { return e.AuditorFirmID }
func (e *Engagement) LinkedPartnerID() *uint       { return &e.PartnerID }
