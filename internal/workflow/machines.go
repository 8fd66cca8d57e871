package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
)

var registerOnce sync.Once

// RegisterMachines installs every workflow machine. Safe to call more than
// once; registration happens on the first call.
func RegisterMachines() {
	registerOnce.Do(func() {
		Register(engagementMachine())
		Register(tpmVisitMachine())
		Register(monitoringActivityMachine())
		Register(pseaMachine())
		Register(actionPointMachine())
	})
}

var engagementActiveStatuses = []string{
	model.EngagementStatusPartnerContacted,
	model.EngagementStatusFieldVisit,
	model.EngagementStatusDraftIssuedToIP,
	model.EngagementStatusCommentsByIP,
	model.EngagementStatusDraftIssuedToUnicef,
	model.EngagementStatusCommentsByUnicef,
}

// engagementDateChain is the submit precondition: dates form a monotonically
// non-decreasing chain, each no later than today.
var engagementDateChain = []string{
	"partner_contacted_at",
	"date_of_field_visit",
	"date_of_draft_report_to_ip",
	"date_of_comments_by_ip",
	"date_of_draft_report_to_unicef",
	"date_of_comments_by_unicef",
}

func dateChainGuard(fields []string) Guard {
	return func(ctx context.Context, obj Object, actor *model.User, payload map[string]interface{}, now time.Time) error {
		today := now.Truncate(24 * time.Hour).Add(24*time.Hour - time.Nanosecond)
		var prev *time.Time
		var prevName string
		for _, name := range fields {
			v, ok := obj.FieldValue(name)
			if !ok {
				continue
			}
			t, _ := v.(*time.Time)
			if t == nil {
				return apperr.WithField(apperr.GuardFailed, name, "date must be set before submission")
			}
			if t.After(today) {
				return apperr.WithField(apperr.GuardFailed, name, "date cannot be in the future")
			}
			if prev != nil && t.Before(*prev) {
				return apperr.WithField(apperr.GuardFailed, name,
					fmt.Sprintf("date precedes %s", prevName))
			}
			prev, prevName = t, name
		}
		return nil
	}
}

func engagementMachine() *Descriptor {
	progress := func(action, to string, from ...string) Transition {
		return Transition{Action: action, From: from, To: to}
	}

	submitFrom := append([]string{}, engagementActiveStatuses...)
	cancellable := append(append([]string{}, engagementActiveStatuses...),
		model.EngagementStatusReportSubmitted)

	return &Descriptor{
		Name:    "engagement",
		Initial: model.EngagementStatusPartnerContacted,
		States: append(append([]string{}, engagementActiveStatuses...),
			model.EngagementStatusReportSubmitted,
			model.EngagementStatusFinal,
			model.EngagementStatusCancelled,
		),
		Transitions: []Transition{
			progress("start_field_visit", model.EngagementStatusFieldVisit,
				model.EngagementStatusPartnerContacted),
			progress("issue_draft_to_ip", model.EngagementStatusDraftIssuedToIP,
				model.EngagementStatusPartnerContacted, model.EngagementStatusFieldVisit),
			progress("record_comments_by_ip", model.EngagementStatusCommentsByIP,
				model.EngagementStatusDraftIssuedToIP),
			progress("issue_draft_to_unicef", model.EngagementStatusDraftIssuedToUnicef,
				model.EngagementStatusCommentsByIP),
			progress("record_comments_by_unicef", model.EngagementStatusCommentsByUnicef,
				model.EngagementStatusDraftIssuedToUnicef),
			{
				Action:              "submit",
				From:                submitFrom,
				To:                  model.EngagementStatusReportSubmitted,
				Guards:              []Guard{dateChainGuard(engagementDateChain)},
				RequiredAttachments: []string{model.AttachmentSlotAuditReport},
				Effects: []Effect{
					Notify("audit/engagement/reported", AudienceFocalPoints),
				},
			},
			{
				Action: "finalize",
				From:   []string{model.EngagementStatusReportSubmitted},
				To:     model.EngagementStatusFinal,
				Effects: []Effect{
					IncrementEngagementHact(),
					Notify("audit/engagement/final", AudienceFocalPoints),
				},
			},
			{
				Action:       "cancel",
				From:         cancellable,
				To:           model.EngagementStatusCancelled,
				PayloadRules: map[string]interface{}{"comment": "required"},
				Effects: []Effect{
					Notify("audit/engagement/cancelled", AudienceAssignees),
				},
			},
		},
	}
}

func tpmVisitMachine() *Descriptor {
	nonTerminal := []string{
		model.TPMVisitStatusDraft, model.TPMVisitStatusAssigned,
		model.TPMVisitStatusAccepted, model.TPMVisitStatusRejected,
		model.TPMVisitStatusReported, model.TPMVisitStatusReportRejected,
	}
	return &Descriptor{
		Name:    "tpmvisit",
		Initial: model.TPMVisitStatusDraft,
		States: append(append([]string{}, nonTerminal...),
			model.TPMVisitStatusApproved, model.TPMVisitStatusCancelled),
		Transitions: []Transition{
			{
				Action:         "assign",
				From:           []string{model.TPMVisitStatusDraft, model.TPMVisitStatusRejected},
				To:             model.TPMVisitStatusAssigned,
				RequiredFields: []string{"tpm_partner"},
				Effects:        []Effect{Notify("tpm/visit/assigned", AudienceAssignees)},
			},
			{
				Action: "accept",
				From:   []string{model.TPMVisitStatusAssigned},
				To:     model.TPMVisitStatusAccepted,
			},
			{
				Action:       "reject",
				From:         []string{model.TPMVisitStatusAssigned},
				To:           model.TPMVisitStatusRejected,
				PayloadRules: map[string]interface{}{"comment": "required"},
				Effects:      []Effect{Notify("tpm/visit/rejected", AudienceFocalPoints)},
			},
			{
				Action: "report",
				From:   []string{model.TPMVisitStatusAccepted, model.TPMVisitStatusReportRejected},
				To:     model.TPMVisitStatusReported,
				Effects: []Effect{
					Notify("tpm/visit/reported", AudienceFocalPoints),
				},
			},
			{
				Action: "approve",
				From:   []string{model.TPMVisitStatusReported},
				To:     model.TPMVisitStatusApproved,
				Effects: []Effect{
					IncrementHact("programmatic_visits.completed", true),
					Notify("tpm/visit/approved", AudienceAssignees),
				},
			},
			{
				Action:       "reject_report",
				From:         []string{model.TPMVisitStatusReported},
				To:           model.TPMVisitStatusReportRejected,
				PayloadRules: map[string]interface{}{"comment": "required"},
				Effects:      []Effect{Notify("tpm/visit/report_rejected", AudienceAssignees)},
			},
			{
				Action:       "cancel",
				From:         nonTerminal,
				To:           model.TPMVisitStatusCancelled,
				PayloadRules: map[string]interface{}{"comment": "required"},
			},
		},
	}
}

func monitoringActivityMachine() *Descriptor {
	nonTerminal := []string{
		model.MonitoringStatusDraft, model.MonitoringStatusChecklist,
		model.MonitoringStatusReview, model.MonitoringStatusAssigned,
		model.MonitoringStatusDataCollection, model.MonitoringStatusReportFinalization,
		model.MonitoringStatusSubmitted,
	}
	return &Descriptor{
		Name:    "monitoringactivity",
		Initial: model.MonitoringStatusDraft,
		States: append(append([]string{}, nonTerminal...),
			model.MonitoringStatusCompleted, model.MonitoringStatusCancelled),
		Transitions: []Transition{
			{
				Action: "prepare_checklist",
				From:   []string{model.MonitoringStatusDraft},
				To:     model.MonitoringStatusChecklist,
			},
			{
				Action: "submit_for_review",
				From:   []string{model.MonitoringStatusChecklist},
				To:     model.MonitoringStatusReview,
			},
			{
				Action:         "assign",
				From:           []string{model.MonitoringStatusReview},
				To:             model.MonitoringStatusAssigned,
				RequiredFields: []string{"visit_lead"},
				Effects:        []Effect{Notify("fm/activity/assigned", AudienceAssignees)},
			},
			{
				Action:       "reject",
				From:         []string{model.MonitoringStatusReview},
				To:           model.MonitoringStatusDraft,
				PayloadRules: map[string]interface{}{"comment": "required"},
				Effects:      []Effect{Notify("fm/activity/rejected", AudienceAuthor)},
			},
			{
				Action: "start_data_collection",
				From:   []string{model.MonitoringStatusAssigned},
				To:     model.MonitoringStatusDataCollection,
			},
			{
				Action: "finalize_report",
				From:   []string{model.MonitoringStatusDataCollection},
				To:     model.MonitoringStatusReportFinalization,
			},
			{
				Action:  "submit",
				From:    []string{model.MonitoringStatusReportFinalization},
				To:      model.MonitoringStatusSubmitted,
				Effects: []Effect{Notify("fm/activity/submitted", AudienceFocalPoints)},
			},
			{
				Action: "complete",
				From:   []string{model.MonitoringStatusSubmitted},
				To:     model.MonitoringStatusCompleted,
				Effects: []Effect{
					IncrementHact("programmatic_visits.completed", true),
					Notify("fm/activity/completed", AudienceAssignees),
				},
			},
			{
				Action:       "reject_report",
				From:         []string{model.MonitoringStatusSubmitted},
				To:           model.MonitoringStatusReportFinalization,
				PayloadRules: map[string]interface{}{"comment": "required"},
				Effects:      []Effect{Notify("fm/activity/report_rejected", AudienceAssignees)},
			},
			{
				Action:       "cancel",
				From:         nonTerminal,
				To:           model.MonitoringStatusCancelled,
				PayloadRules: map[string]interface{}{"comment": "required"},
			},
		},
	}
}

func pseaMachine() *Descriptor {
	nonTerminal := []string{
		model.PSEAStatusDraft, model.PSEAStatusAssigned,
		model.PSEAStatusInProgress, model.PSEAStatusSubmitted, model.PSEAStatusRejected,
	}
	return &Descriptor{
		Name:    "pseaassessment",
		Initial: model.PSEAStatusDraft,
		States: append(append([]string{}, nonTerminal...),
			model.PSEAStatusFinal, model.PSEAStatusCancelled),
		Transitions: []Transition{
			{
				Action:         "assign",
				From:           []string{model.PSEAStatusDraft},
				To:             model.PSEAStatusAssigned,
				RequiredFields: []string{"assessor"},
				Effects: []Effect{
					RecordAssigner(),
					Notify("psea/assessment/assigned", AudienceAssignees),
				},
			},
			{
				Action:  "start",
				From:    []string{model.PSEAStatusAssigned, model.PSEAStatusRejected},
				To:      model.PSEAStatusInProgress,
				Effects: []Effect{CopyAnswersFromPrevious()},
			},
			{
				Action:         "submit",
				From:           []string{model.PSEAStatusInProgress},
				To:             model.PSEAStatusSubmitted,
				RequiredFields: []string{"assessment_date", "answers"},
				Effects:        []Effect{Notify("psea/assessment/submitted", AudienceFocalPoints)},
			},
			{
				Action:       "reject",
				From:         []string{model.PSEAStatusSubmitted},
				To:           model.PSEAStatusRejected,
				PayloadRules: map[string]interface{}{"comment": "required"},
				Effects:      []Effect{Notify("psea/assessment/rejected", AudienceAssignees)},
			},
			{
				Action:         "finalize",
				From:           []string{model.PSEAStatusSubmitted},
				To:             model.PSEAStatusFinal,
				RequiredFields: []string{"overall_rating"},
				Effects:        []Effect{Notify("psea/assessment/final", AudienceAssignees)},
			},
			{
				Action:       "cancel",
				From:         nonTerminal,
				To:           model.PSEAStatusCancelled,
				PayloadRules: map[string]interface{}{"comment": "required"},
			},
		},
	}
}

func actionPointMachine() *Descriptor {
	return &Descriptor{
		Name:    "actionpoint",
		Initial: model.ActionPointStatusOpen,
		States:  []string{model.ActionPointStatusOpen, model.ActionPointStatusCompleted},
		Transitions: []Transition{
			{
				Action: "complete",
				From:   []string{model.ActionPointStatusOpen},
				To:     model.ActionPointStatusCompleted,
				Guards: []Guard{
					func(ctx context.Context, obj Object, actor *model.User, payload map[string]interface{}, now time.Time) error {
						v, _ := obj.FieldValue("comments")
						if isEmpty(v) {
							return apperr.WithField(apperr.GuardFailed, "comments",
								"cannot complete an action point without comments")
						}
						return nil
					},
				},
				Effects: []Effect{Notify("action_points/completed", AudienceAssignedBy)},
			},
		},
	}
}
