package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/unicef/etools-core/internal/model"
)

// Notification audiences.
const (
	AudienceFocalPoints = "focal_points"
	AudienceAssignees   = "assignees"
	AudienceAuthor      = "author"
	AudienceAssignedBy  = "assigned_by"
)

// Notify enqueues an outbox row keyed by (object, transition log, audience).
// Delivery happens after commit; the unique key makes duplicate delivery
// attempts no-ops.
func Notify(template, audience string) Effect {
	return func(ctx context.Context, store Store, obj Object, actor *model.User, logRow *model.TransitionLog) error {
		payload := map[string]interface{}{
			"object_kind":      obj.ObjectKind(),
			"object_id":        obj.ObjectID(),
			"reference_number": referenceOf(obj),
			"from_status":      logRow.FromStatus,
			"to_status":        logRow.ToStatus,
			"actor_id":         actor.ID,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		return store.EnqueueNotification(ctx, &model.NotificationOutbox{
			ObjectKind:      obj.ObjectKind(),
			ObjectID:        obj.ObjectID(),
			TransitionLogID: logRow.ID,
			Audience:        audience,
			Template:        template,
			Payload:         datatypes.JSON(raw),
		})
	}
}

// PartnerLinked is implemented by workflow objects tied to a partner.
type PartnerLinked interface {
	LinkedPartnerID() *uint
}

// IncrementHact bumps a partner counter when the object reaches the
// transition's target state. Quarterly counters get a ".qN" suffix from the
// object's end_date quarter. The increment is guarded per source object, so
// re-entering the same terminal state never double-counts.
func IncrementHact(counterPath string, quarterly bool) Effect {
	return func(ctx context.Context, store Store, obj Object, actor *model.User, logRow *model.TransitionLog) error {
		linked, ok := obj.(PartnerLinked)
		if !ok {
			return nil
		}
		partnerID := linked.LinkedPartnerID()
		if partnerID == nil {
			return nil
		}
		counter := counterPath
		if quarterly {
			counter = fmt.Sprintf("%s.q%d", counterPath, quarterOf(obj, logRow.TransitionAt))
		}
		return store.IncrementHactCounter(ctx, *partnerID, counter, obj.ObjectKind(), obj.ObjectID())
	}
}

// RecordAssigner stamps the acting user as the one who assigned the object.
func RecordAssigner() Effect {
	return func(ctx context.Context, store Store, obj Object, actor *model.User, logRow *model.TransitionLog) error {
		return store.UpdateFields(ctx, obj, map[string]interface{}{"assigned_by_id": actor.ID})
	}
}

// IncrementEngagementHact picks the partner counter from the engagement
// kind. Audits and micro assessments count per year, spot checks per
// quarter. Special audits do not feed HACT.
func IncrementEngagementHact() Effect {
	return func(ctx context.Context, store Store, obj Object, actor *model.User, logRow *model.TransitionLog) error {
		kind, _ := obj.FieldValue("kind")
		var eff Effect
		switch kind {
		case model.EngagementKindAudit:
			eff = IncrementHact("audits.completed", false)
		case model.EngagementKindMicroAssessment:
			eff = IncrementHact("micro_assessments.completed", false)
		case model.EngagementKindSpotCheck:
			eff = IncrementHact("spot_checks.completed", true)
		default:
			return nil
		}
		return eff(ctx, store, obj, actor, logRow)
	}
}

// CopyAnswersFromPrevious pre-fills a PSEA assessment with the partner's
// most recent finalized answers, if any.
func CopyAnswersFromPrevious() Effect {
	return func(ctx context.Context, store Store, obj Object, actor *model.User, logRow *model.TransitionLog) error {
		linked, ok := obj.(PartnerLinked)
		if !ok || linked.LinkedPartnerID() == nil {
			return nil
		}
		answers, err := store.LatestFinalAnswers(ctx, *linked.LinkedPartnerID(), obj.ObjectID())
		if err != nil {
			return err
		}
		if len(answers) == 0 {
			return nil
		}
		return store.UpdateFields(ctx, obj, map[string]interface{}{"answers": answers})
	}
}

func quarterOf(obj Object, fallback time.Time) int {
	at := fallback
	if v, ok := obj.FieldValue("end_date"); ok {
		if t, ok := v.(*time.Time); ok && t != nil {
			at = *t
		}
	}
	return (int(at.Month())-1)/3 + 1
}

func referenceOf(obj Object) string {
	if r, ok := obj.(interface{ Reference() string }); ok {
		return r.Reference()
	}
	return ""
}
