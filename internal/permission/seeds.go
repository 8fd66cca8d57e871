package permission

import (
	"github.com/unicef/etools-core/internal/model"
)

// EntityDecl declares the fields and actions the boundary exposes for one
// entity; the seeder emits rows against these and the handlers evaluate the
// permissions block over them.
type EntityDecl struct {
	Name    string
	Fields  []string
	Actions []string
}

// ModuleDef binds a seedable module to its entities and seed program.
type ModuleDef struct {
	Name     string
	Entities []EntityDecl
	seed     func(b *builder)
}

type builder struct {
	rows []model.PermissionRow
}

func (b *builder) emit(kind, effect, target string, conds ...string) {
	b.rows = append(b.rows, model.PermissionRow{
		Target:     target,
		Kind:       kind,
		Effect:     effect,
		Conditions: append([]string{}, conds...),
	})
}

func (b *builder) allow(kind, target string, conds ...string) {
	b.emit(kind, model.PermissionEffectAllow, target, conds...)
}

func (b *builder) disallow(kind, target string, conds ...string) {
	b.emit(kind, model.PermissionEffectDisallow, target, conds...)
}

// engagementOverviewFields is the block the auditor may never edit once the
// engagement is underway; the focal point owns it.
var engagementOverviewFields = []string{"kind", "partner", "auditor_firm", "total_value", "end_date"}

var engagementDateFields = []string{
	"partner_contacted_at",
	"date_of_field_visit",
	"date_of_draft_report_to_ip",
	"date_of_comments_by_ip",
	"date_of_draft_report_to_unicef",
	"date_of_comments_by_unicef",
}

var engagementActiveStatuses = []string{
	model.EngagementStatusPartnerContacted,
	model.EngagementStatusFieldVisit,
	model.EngagementStatusDraftIssuedToIP,
	model.EngagementStatusCommentsByIP,
	model.EngagementStatusDraftIssuedToUnicef,
	model.EngagementStatusCommentsByUnicef,
}

var modules = map[string]ModuleDef{
	"audit": {
		Name: "audit",
		Entities: []EntityDecl{{
			Name: "engagement",
			Fields: append(append([]string{}, engagementOverviewFields...),
				append(engagementDateFields,
					"focal_points", "staff_members", "findings", "cancel_comment")...),
			Actions: []string{
				"start_field_visit", "issue_draft_to_ip", "record_comments_by_ip",
				"issue_draft_to_unicef", "record_comments_by_unicef",
				"submit", "finalize", "cancel",
			},
		}},
		seed: seedAudit,
	},
	"tpm": {
		Name: "tpm",
		Entities: []EntityDecl{{
			Name:    "tpmvisit",
			Fields:  []string{"tpm_partner", "partner", "team_members", "unicef_focal_points", "start_date", "end_date", "reject_comment", "report_reject_comment", "cancel_comment"},
			Actions: []string{"assign", "accept", "reject", "report", "approve", "reject_report", "cancel"},
		}},
		seed: seedTPM,
	},
	"field_monitoring": {
		Name: "field_monitoring",
		Entities: []EntityDecl{{
			Name:    "monitoringactivity",
			Fields:  []string{"partner", "visit_lead", "team_members", "report_reviewers", "start_date", "end_date", "reject_reason", "report_reject_reason", "cancel_reason"},
			Actions: []string{"prepare_checklist", "submit_for_review", "assign", "start_data_collection", "finalize_report", "submit", "complete", "reject", "reject_report", "cancel"},
		}},
		seed: seedFieldMonitoring,
	},
	"psea": {
		Name: "psea",
		Entities: []EntityDecl{{
			Name:    "pseaassessment",
			Fields:  []string{"partner", "assessor", "focal_points", "assessment_date", "overall_rating", "answers", "reject_comment"},
			Actions: []string{"assign", "start", "submit", "reject", "finalize", "cancel"},
		}},
		seed: seedPSEA,
	},
	"action_points": {
		Name: "action_points",
		Entities: []EntityDecl{{
			Name:    "actionpoint",
			Fields:  []string{"description", "due_date", "partner", "assigned_to", "assigned_by", "comments", "high_priority"},
			Actions: []string{"complete"},
		}},
		seed: seedActionPoints,
	},
}

// ModuleNames returns every seedable module, sorted for deterministic CLI
// output.
func ModuleNames() []string {
	return []string{"action_points", "audit", "field_monitoring", "psea", "tpm"}
}

// LookupModule returns a module definition by name.
func LookupModule(name string) (ModuleDef, bool) {
	m, ok := modules[name]
	return m, ok
}

// EntityFields returns the declared field list for an entity, searching all
// modules.
func EntityFields(entity string) []string {
	for _, m := range modules {
		for _, e := range m.Entities {
			if e.Name == entity {
				return e.Fields
			}
		}
	}
	return nil
}

// ModuleForEntity returns the module an entity belongs to.
func ModuleForEntity(entity string) string {
	for _, m := range modules {
		for _, e := range m.Entities {
			if e.Name == entity {
				return m.Name
			}
		}
	}
	return ""
}

// EntityActions returns the declared action list for an entity.
func EntityActions(entity string) []string {
	for _, m := range modules {
		for _, e := range m.Entities {
			if e.Name == entity {
				return e.Actions
			}
		}
	}
	return nil
}

func seedAudit(b *builder) {
	const entity = "engagement"
	auditorConds := []string{Group(model.GroupAuditor), IsStaffMember(entity)}

	// Everyone in the office reads; the auditor firm reads its own.
	b.allow(model.PermissionKindView, entity+".*", Group(model.GroupUNICEFUser))
	b.allow(model.PermissionKindView, entity+".*", auditorConds[0], auditorConds[1])

	// The focal point owns the whole form while the engagement is active.
	for _, status := range engagementActiveStatuses {
		b.allow(model.PermissionKindEdit, entity+".*",
			Group(model.GroupAuditFocalPoint), ObjectStatus(entity, status))
	}

	// The auditor fills dates and findings but never the overview block.
	for _, status := range engagementActiveStatuses {
		for _, f := range engagementDateFields {
			b.allow(model.PermissionKindEdit, entity+"."+f,
				auditorConds[0], auditorConds[1], ObjectStatus(entity, status))
		}
		b.allow(model.PermissionKindEdit, entity+".findings",
			auditorConds[0], auditorConds[1], ObjectStatus(entity, status))
		for _, f := range engagementOverviewFields {
			b.disallow(model.PermissionKindEdit, entity+"."+f,
				auditorConds[0], ObjectStatus(entity, status))
		}
	}

	// New objects are drafted by the focal point.
	b.allow(model.PermissionKindEdit, entity+".*",
		Group(model.GroupAuditFocalPoint), NewObject(entity))

	// Actions. The focal point drives the report cycle; the auditor firm
	// records its own milestones and submits.
	type step struct{ action, status string }
	progression := []step{
		{"start_field_visit", model.EngagementStatusPartnerContacted},
		{"issue_draft_to_ip", model.EngagementStatusPartnerContacted},
		{"issue_draft_to_ip", model.EngagementStatusFieldVisit},
		{"record_comments_by_ip", model.EngagementStatusDraftIssuedToIP},
		{"issue_draft_to_unicef", model.EngagementStatusCommentsByIP},
		{"record_comments_by_unicef", model.EngagementStatusDraftIssuedToUnicef},
	}
	for _, s := range progression {
		b.allow(model.PermissionKindAction, entity+"."+s.action,
			Group(model.GroupAuditFocalPoint), ObjectStatus(entity, s.status))
		b.allow(model.PermissionKindAction, entity+"."+s.action,
			auditorConds[0], auditorConds[1], ObjectStatus(entity, s.status))
	}
	for _, status := range engagementActiveStatuses {
		b.allow(model.PermissionKindAction, entity+".submit",
			auditorConds[0], auditorConds[1], ObjectStatus(entity, status))
		b.allow(model.PermissionKindAction, entity+".cancel",
			Group(model.GroupAuditFocalPoint), ObjectStatus(entity, status))
	}
	b.allow(model.PermissionKindAction, entity+".cancel",
		Group(model.GroupAuditFocalPoint), ObjectStatus(entity, model.EngagementStatusReportSubmitted))
	b.allow(model.PermissionKindAction, entity+".finalize",
		Group(model.GroupAuditFocalPoint), ObjectStatus(entity, model.EngagementStatusReportSubmitted))
}

func seedTPM(b *builder) {
	const entity = "tpmvisit"
	tpmConds := []string{Group(model.GroupThirdPartyMon), IsStaffMember(entity)}

	b.allow(model.PermissionKindView, entity+".*", Group(model.GroupUNICEFUser))
	b.allow(model.PermissionKindView, entity+".*", tpmConds[0], tpmConds[1])

	b.allow(model.PermissionKindEdit, entity+".*",
		Group(model.GroupPME), ObjectStatus(entity, model.TPMVisitStatusDraft))
	b.allow(model.PermissionKindEdit, entity+".*", Group(model.GroupPME), NewObject(entity))

	b.allow(model.PermissionKindAction, entity+".assign",
		Group(model.GroupPME), ObjectStatus(entity, model.TPMVisitStatusDraft))
	b.allow(model.PermissionKindAction, entity+".assign",
		Group(model.GroupPME), ObjectStatus(entity, model.TPMVisitStatusRejected))
	b.allow(model.PermissionKindAction, entity+".accept",
		tpmConds[0], tpmConds[1], ObjectStatus(entity, model.TPMVisitStatusAssigned))
	b.allow(model.PermissionKindAction, entity+".reject",
		tpmConds[0], tpmConds[1], ObjectStatus(entity, model.TPMVisitStatusAssigned))
	b.allow(model.PermissionKindAction, entity+".report",
		tpmConds[0], tpmConds[1], ObjectStatus(entity, model.TPMVisitStatusAccepted))
	b.allow(model.PermissionKindAction, entity+".report",
		tpmConds[0], tpmConds[1], ObjectStatus(entity, model.TPMVisitStatusReportRejected))
	b.allow(model.PermissionKindAction, entity+".approve",
		Group(model.GroupPME), ObjectStatus(entity, model.TPMVisitStatusReported))
	b.allow(model.PermissionKindAction, entity+".reject_report",
		Group(model.GroupPME), ObjectStatus(entity, model.TPMVisitStatusReported))
	for _, status := range []string{
		model.TPMVisitStatusDraft, model.TPMVisitStatusAssigned,
		model.TPMVisitStatusAccepted, model.TPMVisitStatusRejected,
		model.TPMVisitStatusReported, model.TPMVisitStatusReportRejected,
	} {
		b.allow(model.PermissionKindAction, entity+".cancel",
			Group(model.GroupPME), ObjectStatus(entity, status))
	}
}

func seedFieldMonitoring(b *builder) {
	const entity = "monitoringactivity"

	b.allow(model.PermissionKindView, entity+".*", Group(model.GroupUNICEFUser))

	b.allow(model.PermissionKindEdit, entity+".*", Group(model.GroupFMUser), NewObject(entity))
	for _, status := range []string{
		model.MonitoringStatusDraft, model.MonitoringStatusChecklist, model.MonitoringStatusReview,
	} {
		b.allow(model.PermissionKindEdit, entity+".*",
			Group(model.GroupFMUser), ObjectStatus(entity, status))
	}
	for _, status := range []string{
		model.MonitoringStatusDataCollection, model.MonitoringStatusReportFinalization,
	} {
		b.allow(model.PermissionKindEdit, entity+".*",
			IsAssignee(entity), ObjectStatus(entity, status))
	}

	type step struct{ action, status string }
	steps := []step{
		{"prepare_checklist", model.MonitoringStatusDraft},
		{"submit_for_review", model.MonitoringStatusChecklist},
		{"assign", model.MonitoringStatusReview},
		{"reject", model.MonitoringStatusReview},
	}
	for _, s := range steps {
		b.allow(model.PermissionKindAction, entity+"."+s.action,
			Group(model.GroupFMUser), ObjectStatus(entity, s.status))
	}
	b.allow(model.PermissionKindAction, entity+".start_data_collection",
		IsAssignee(entity), ObjectStatus(entity, model.MonitoringStatusAssigned))
	b.allow(model.PermissionKindAction, entity+".finalize_report",
		IsAssignee(entity), ObjectStatus(entity, model.MonitoringStatusDataCollection))
	b.allow(model.PermissionKindAction, entity+".submit",
		IsAssignee(entity), ObjectStatus(entity, model.MonitoringStatusReportFinalization))
	b.allow(model.PermissionKindAction, entity+".complete",
		Group(model.GroupPME), ObjectStatus(entity, model.MonitoringStatusSubmitted))
	b.allow(model.PermissionKindAction, entity+".reject_report",
		Group(model.GroupPME), ObjectStatus(entity, model.MonitoringStatusSubmitted))
	for _, status := range []string{
		model.MonitoringStatusDraft, model.MonitoringStatusChecklist, model.MonitoringStatusReview,
		model.MonitoringStatusAssigned, model.MonitoringStatusDataCollection,
		model.MonitoringStatusReportFinalization, model.MonitoringStatusSubmitted,
	} {
		b.allow(model.PermissionKindAction, entity+".cancel",
			Group(model.GroupFMUser), ObjectStatus(entity, status))
	}
}

func seedPSEA(b *builder) {
	const entity = "pseaassessment"

	b.allow(model.PermissionKindView, entity+".*", Group(model.GroupUNICEFUser))
	b.allow(model.PermissionKindView, entity+".*", IsAssignee(entity))

	b.allow(model.PermissionKindEdit, entity+".*", Group(model.GroupPSEAAssessor), NewObject(entity))
	b.allow(model.PermissionKindEdit, entity+".*",
		Group(model.GroupPSEAAssessor), ObjectStatus(entity, model.PSEAStatusDraft))
	for _, status := range []string{model.PSEAStatusInProgress, model.PSEAStatusRejected} {
		b.allow(model.PermissionKindEdit, entity+".answers",
			IsAssignee(entity), ObjectStatus(entity, status))
		b.allow(model.PermissionKindEdit, entity+".assessment_date",
			IsAssignee(entity), ObjectStatus(entity, status))
	}

	b.allow(model.PermissionKindAction, entity+".assign",
		Group(model.GroupPSEAAssessor), ObjectStatus(entity, model.PSEAStatusDraft))
	b.allow(model.PermissionKindAction, entity+".start",
		IsAssignee(entity), ObjectStatus(entity, model.PSEAStatusAssigned))
	b.allow(model.PermissionKindAction, entity+".start",
		IsAssignee(entity), ObjectStatus(entity, model.PSEAStatusRejected))
	b.allow(model.PermissionKindAction, entity+".submit",
		IsAssignee(entity), ObjectStatus(entity, model.PSEAStatusInProgress))
	b.allow(model.PermissionKindAction, entity+".reject",
		Group(model.GroupPSEAAssessor), ObjectStatus(entity, model.PSEAStatusSubmitted))
	b.allow(model.PermissionKindAction, entity+".finalize",
		Group(model.GroupPSEAAssessor), ObjectStatus(entity, model.PSEAStatusSubmitted))
	for _, status := range []string{
		model.PSEAStatusDraft, model.PSEAStatusAssigned,
		model.PSEAStatusInProgress, model.PSEAStatusSubmitted, model.PSEAStatusRejected,
	} {
		b.allow(model.PermissionKindAction, entity+".cancel",
			Group(model.GroupPSEAAssessor), ObjectStatus(entity, status))
	}
}

func seedActionPoints(b *builder) {
	const entity = "actionpoint"

	b.allow(model.PermissionKindView, entity+".*", Group(model.GroupUNICEFUser))
	b.allow(model.PermissionKindView, entity+".*", IsAssignee(entity))
	b.allow(model.PermissionKindView, entity+".*", IsAuthor(entity))

	b.allow(model.PermissionKindEdit, entity+".*", Group(model.GroupUNICEFUser), NewObject(entity))
	b.allow(model.PermissionKindEdit, entity+".*",
		IsAuthor(entity), ObjectStatus(entity, model.ActionPointStatusOpen))
	b.allow(model.PermissionKindEdit, entity+".*",
		IsAssignedBy(entity), ObjectStatus(entity, model.ActionPointStatusOpen))
	b.allow(model.PermissionKindEdit, entity+".comments",
		IsAssignee(entity), ObjectStatus(entity, model.ActionPointStatusOpen))

	b.allow(model.PermissionKindAction, entity+".complete",
		IsAssignee(entity), ObjectStatus(entity, model.ActionPointStatusOpen))
	b.allow(model.PermissionKindAction, entity+".complete",
		IsAssignedBy(entity), ObjectStatus(entity, model.ActionPointStatusOpen))
}
