package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/prometheus"
)

// ActionAuthorizer answers whether the actor may run the action on the
// object; the permission engine satisfies it through a thin adapter.
type ActionAuthorizer interface {
	ActionAllowed(ctx context.Context, obj Object, actor *model.User, action string) (bool, error)
}

// Engine runs transitions against registered machines. A transition is
// atomic: status, status_date, transition log, snapshot and effects all
// commit together or not at all.
type Engine struct {
	Store    Store
	Auth     ActionAuthorizer
	Validate *validator.Validate
	Now      func() time.Time
}

// NewEngine wires an engine over the given store and authorizer.
func NewEngine(store Store, auth ActionAuthorizer) *Engine {
	return &Engine{
		Store:    store,
		Auth:     auth,
		Validate: validator.New(),
		Now:      time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CanTransition runs checks 1-6 of the transition sequence without mutating
// anything. A nil error means a subsequent Transition with the same inputs
// succeeds, barring a concurrent status change.
func (e *Engine) CanTransition(ctx context.Context, obj Object, action string, actor *model.User, payload map[string]interface{}) error {
	t, err := e.resolve(obj, action)
	if err != nil {
		return err
	}
	return e.check(ctx, e.Store, t, obj, actor, payload)
}

// Transition runs the full sequence inside one unit of work. The object's
// row is locked before the status is re-read; a stale caller fails with
// ConflictingTransition.
func (e *Engine) Transition(ctx context.Context, obj Object, action string, actor *model.User, payload map[string]interface{}) error {
	started := e.now()
	t, err := e.resolve(obj, action)
	if err != nil {
		prometheus.RecordTransition(obj.ObjectKind(), action, string(apperr.KindOf(err)))
		return err
	}

	prevStatus := obj.CurrentStatus()
	prevDate := obj.StatusChangedAt()
	err = e.Store.InTransaction(ctx, func(tx Store) error {
		fresh, err := tx.LockStatus(ctx, obj)
		if err != nil {
			return err
		}
		if fresh != obj.CurrentStatus() {
			// the lock was won by someone else first; the caller's view is stale
			return apperr.Newf(apperr.ConflictingTransition,
				"status changed from %q to %q underfoot", obj.CurrentStatus(), fresh)
		}

		if err := e.check(ctx, tx, t, obj, actor, payload); err != nil {
			return err
		}

		now := e.now()
		before := obj.TrackedFields()
		from := obj.CurrentStatus()

		if err := tx.SaveStatus(ctx, obj, t.To, now); err != nil {
			return err
		}
		obj.SetStatus(t.To, now)
		after := obj.TrackedFields()

		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return apperr.Wrap(apperr.PayloadInvalid, "payload not serializable", err)
		}
		logRow := &model.TransitionLog{
			ObjectKind:   obj.ObjectKind(),
			ObjectID:     obj.ObjectID(),
			FromStatus:   from,
			ToStatus:     t.To,
			Action:       action,
			ActorID:      actor.ID,
			Comment:      payloadComment(payload),
			Payload:      datatypes.JSON(payloadJSON),
			TransitionAt: now,
		}
		if err := tx.AppendLog(ctx, logRow); err != nil {
			return err
		}
		if err := tx.WriteSnapshot(ctx, actor.ID, model.ActivityKindTransition, obj, before, after); err != nil {
			return err
		}

		for _, effect := range t.Effects {
			if err := effect(ctx, tx, obj, actor, logRow); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// the unit of work rolled back; restore the caller's view
		obj.SetStatus(prevStatus, prevDate)
		prometheus.RecordTransition(obj.ObjectKind(), action, string(apperr.KindOf(err)))
		return err
	}

	prometheus.RecordTransition(obj.ObjectKind(), action, "ok")
	prometheus.TransitionDuration.WithLabelValues(obj.ObjectKind(), action).
		Observe(e.now().Sub(started).Seconds())
	return nil
}

// resolve finds the transition for (machine, action, current status).
func (e *Engine) resolve(obj Object, action string) (*Transition, error) {
	d, ok := Lookup(obj.ObjectKind())
	if !ok {
		return nil, apperr.Newf(apperr.Internal, "no machine registered for %q", obj.ObjectKind())
	}
	candidates := d.Find(action)
	if len(candidates) == 0 {
		return nil, apperr.Newf(apperr.InvalidSourceStatus, "machine %s has no action %q", d.Name, action)
	}
	for _, t := range candidates {
		if t.fromContains(obj.CurrentStatus()) {
			return t, nil
		}
	}
	return nil, apperr.Newf(apperr.InvalidSourceStatus,
		"%s cannot run %q from status %q", d.Name, action, obj.CurrentStatus())
}

// check runs steps 2-6: permission, payload, guards, required fields,
// required attachments.
func (e *Engine) check(ctx context.Context, store Store, t *Transition, obj Object, actor *model.User, payload map[string]interface{}) error {
	allowed, err := e.Auth.ActionAllowed(ctx, obj, actor, t.Action)
	if err != nil {
		return err
	}
	if !allowed {
		return apperr.Newf(apperr.PermissionDenied, "action %q denied", t.Action)
	}

	if len(t.PayloadRules) > 0 {
		if payload == nil {
			payload = map[string]interface{}{}
		}
		if errs := e.Validate.ValidateMap(payload, t.PayloadRules); len(errs) > 0 {
			field := firstKey(errs)
			return apperr.WithField(apperr.PayloadInvalid, field,
				fmt.Sprintf("payload field %q failed validation", field))
		}
	}

	for _, g := range t.Guards {
		if err := g(ctx, obj, actor, payload, e.now()); err != nil {
			if apperr.KindOf(err) != apperr.Internal {
				return err
			}
			return apperr.Wrap(apperr.GuardFailed, err.Error(), err)
		}
	}

	for _, f := range t.RequiredFields {
		v, ok := obj.FieldValue(f)
		if !ok || isEmpty(v) {
			return apperr.WithField(apperr.RequiredFieldMissing, f, "required field is empty")
		}
	}

	for _, slot := range t.RequiredAttachments {
		n, err := store.CountActiveAttachments(ctx, obj, slot)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.WithField(apperr.RequiredAttachmentMissing, slot,
				"no active attachment at required slot")
		}
	}
	return nil
}

func payloadComment(payload map[string]interface{}) string {
	if payload == nil {
		return ""
	}
	if c, ok := payload["comment"].(string); ok {
		return c
	}
	return ""
}

func firstKey(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// isEmpty treats nil, nil pointers, empty strings and zero-length
// collections as empty for required-field checks.
func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return x == ""
	case *time.Time:
		return x == nil || x.IsZero()
	case *uint:
		return x == nil
	case uint:
		return x == 0
	case []uint:
		return len(x) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
