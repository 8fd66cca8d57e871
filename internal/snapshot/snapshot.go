// Package snapshot writes the append-only activity log. Every authorized
// write to a tracked entity and every transition produces one record with
// before/after JSON representations and a field-level diff.
package snapshot

import (
	"encoding/json"
	"reflect"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/model"
)

// Diff computes the field-level change map {field: {before, after}} over the
// union of keys. Unchanged fields are omitted. Values are compared through
// their JSON encoding so *time.Time, numeric width, and nil/zero distinctions
// behave the same way the stored snapshots do.
func Diff(before, after map[string]interface{}) map[string]map[string]interface{} {
	change := map[string]map[string]interface{}{}
	seen := map[string]bool{}
	for k, b := range before {
		seen[k] = true
		a, ok := after[k]
		if !ok || !jsonEqual(b, a) {
			change[k] = map[string]interface{}{"before": b, "after": a}
		}
	}
	for k, a := range after {
		if !seen[k] {
			change[k] = map[string]interface{}{"before": nil, "after": a}
		}
	}
	return change
}

// Apply overlays a diff's "after" values onto a field map, reproducing the
// post-write state on the tracked field set.
func Apply(before map[string]interface{}, change map[string]map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(before))
	for k, v := range before {
		out[k] = v
	}
	for k, c := range change {
		out[k] = c["after"]
	}
	return out
}

func jsonEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ab) == string(bb)
}

// Writer appends activity records within the caller's transaction.
type Writer struct {
	Now func() time.Time
}

// NewWriter returns a Writer stamping records with the real clock.
func NewWriter() *Writer {
	return &Writer{Now: time.Now}
}

// Record writes one activity row. before and after are the tracked field
// maps; either may be nil for create/delete records.
func (w *Writer) Record(tx *gorm.DB, actorID uint, kind, targetKind string, targetID uint, before, after map[string]interface{}) (*model.Activity, error) {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	changeJSON, err := json.Marshal(Diff(before, after))
	if err != nil {
		return nil, err
	}

	rec := model.Activity{
		TargetKind: targetKind,
		TargetID:   targetID,
		ActorID:    actorID,
		Kind:       kind,
		Before:     datatypes.JSON(beforeJSON),
		After:      datatypes.JSON(afterJSON),
		Change:     datatypes.JSON(changeJSON),
		At:         w.now(),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
