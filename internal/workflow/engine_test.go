package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
)

// memStore is an in-memory Store for engine tests. LockStatus answers from
// the statuses map, so a test can simulate a concurrent writer by changing
// the map after building the object.
type memStore struct {
	statuses    map[uint]string
	attachments map[string]int64 // "kind/id/slot" -> active count
	logs        []*model.TransitionLog
	snapshots   []snapshotCall
	outbox      []*model.NotificationOutbox
	hactCalls   []hactCall
	updates     []map[string]interface{}
	prevAnswers datatypes.JSON
	enqueueErr  error
}

type snapshotCall struct {
	kind          string
	before, after map[string]interface{}
}

type hactCall struct {
	partnerID  uint
	counter    string
	sourceKind string
	sourceID   uint
}

func newMemStore() *memStore {
	return &memStore{
		statuses:    map[uint]string{},
		attachments: map[string]int64{},
	}
}

// InTransaction rolls every mutation back when fn fails, matching the gorm
// store's behavior.
func (m *memStore) InTransaction(ctx context.Context, fn func(tx Store) error) error {
	statuses := make(map[uint]string, len(m.statuses))
	for k, v := range m.statuses {
		statuses[k] = v
	}
	logs, snaps, outbox := len(m.logs), len(m.snapshots), len(m.outbox)
	hacts, updates := len(m.hactCalls), len(m.updates)
	if err := fn(m); err != nil {
		m.statuses = statuses
		m.logs = m.logs[:logs]
		m.snapshots = m.snapshots[:snaps]
		m.outbox = m.outbox[:outbox]
		m.hactCalls = m.hactCalls[:hacts]
		m.updates = m.updates[:updates]
		return err
	}
	return nil
}

func (m *memStore) LockStatus(ctx context.Context, obj Object) (string, error) {
	s, ok := m.statuses[obj.ObjectID()]
	if !ok {
		return "", apperr.Newf(apperr.NotFound, "%s %d not found", obj.ObjectKind(), obj.ObjectID())
	}
	return s, nil
}

func (m *memStore) SaveStatus(ctx context.Context, obj Object, to string, at time.Time) error {
	m.statuses[obj.ObjectID()] = to
	return nil
}

func (m *memStore) UpdateFields(ctx context.Context, obj Object, fields map[string]interface{}) error {
	m.updates = append(m.updates, fields)
	return nil
}

func (m *memStore) AppendLog(ctx context.Context, rec *model.TransitionLog) error {
	rec.ID = uint(len(m.logs) + 1)
	m.logs = append(m.logs, rec)
	return nil
}

func (m *memStore) CountActiveAttachments(ctx context.Context, obj Object, slot string) (int64, error) {
	return m.attachments[attachmentKey(obj, slot)], nil
}

func (m *memStore) WriteSnapshot(ctx context.Context, actorID uint, kind string, obj Object, before, after map[string]interface{}) error {
	m.snapshots = append(m.snapshots, snapshotCall{kind: kind, before: before, after: after})
	return nil
}

func (m *memStore) IncrementHactCounter(ctx context.Context, partnerID uint, counter, sourceKind string, sourceID uint) error {
	m.hactCalls = append(m.hactCalls, hactCall{partnerID, counter, sourceKind, sourceID})
	return nil
}

func (m *memStore) EnqueueNotification(ctx context.Context, rec *model.NotificationOutbox) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.outbox = append(m.outbox, rec)
	return nil
}

func (m *memStore) LatestFinalAnswers(ctx context.Context, partnerID, excludeID uint) (datatypes.JSON, error) {
	return m.prevAnswers, nil
}

func attachmentKey(obj Object, slot string) string {
	return fmt.Sprintf("%s/%d/%s", obj.ObjectKind(), obj.ObjectID(), slot)
}

type staticAuth struct {
	allowed bool
	denied  map[string]bool
}

func (a staticAuth) ActionAllowed(ctx context.Context, obj Object, actor *model.User, action string) (bool, error) {
	if a.denied[action] {
		return false, nil
	}
	return a.allowed, nil
}

func allowAll() ActionAuthorizer { return staticAuth{allowed: true} }

func testEngine(store Store, auth ActionAuthorizer) *Engine {
	e := NewEngine(store, auth)
	e.Now = func() time.Time { return fixedNow }
	return e
}

// fixedNow matches the clock pinned by testEngine, so date guards evaluate
// against it rather than the wall clock.
var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := fixedNow.AddDate(0, 0, -n).Truncate(24 * time.Hour)
	return &t
}

func readyEngagement(kind string) *model.Engagement {
	e := &model.Engagement{
		Kind:      kind,
		PartnerID: 7,
		PartnerContactedAt:        daysAgo(30),
		DateOfFieldVisit:          daysAgo(25),
		DateOfDraftReportToIP:     daysAgo(20),
		DateOfCommentsByIP:        daysAgo(15),
		DateOfDraftReportToUnicef: daysAgo(10),
		DateOfCommentsByUnicef:    daysAgo(5),
	}
	e.ID = 1
	e.ReferenceNumber = "KEN/2024/0001/AUDIT"
	e.Status = model.EngagementStatusCommentsByUnicef
	return e
}

func TestTransitionSubmitHappyPath(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	store.attachments[attachmentKey(obj, model.AttachmentSlotAuditReport)] = 1
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 42}

	err := engine.Transition(context.Background(), obj, "submit", actor, nil)
	require.NoError(t, err)

	assert.Equal(t, model.EngagementStatusReportSubmitted, obj.Status)
	assert.Equal(t, model.EngagementStatusReportSubmitted, store.statuses[obj.ID])

	require.Len(t, store.logs, 1)
	log := store.logs[0]
	assert.Equal(t, "submit", log.Action)
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, log.FromStatus)
	assert.Equal(t, model.EngagementStatusReportSubmitted, log.ToStatus)
	assert.Equal(t, uint(42), log.ActorID)

	require.Len(t, store.snapshots, 1)
	assert.Equal(t, model.ActivityKindTransition, store.snapshots[0].kind)
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, store.snapshots[0].before["status"])
	assert.Equal(t, model.EngagementStatusReportSubmitted, store.snapshots[0].after["status"])

	require.Len(t, store.outbox, 1)
	assert.Equal(t, "audit/engagement/reported", store.outbox[0].Template)
	assert.Equal(t, AudienceFocalPoints, store.outbox[0].Audience)
	assert.Equal(t, log.ID, store.outbox[0].TransitionLogID)
}

func TestTransitionEffectFailureRestoresStatus(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	obj.StatusDate = *daysAgo(5)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	store.attachments[attachmentKey(obj, model.AttachmentSlotAuditReport)] = 1
	store.enqueueErr = errors.New("outbox table unavailable")
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 1}

	err := engine.Transition(context.Background(), obj, "submit", actor, nil)
	require.Error(t, err)
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, obj.Status)
	assert.Equal(t, *daysAgo(5), obj.StatusDate)
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, store.statuses[obj.ID])
	assert.Empty(t, store.logs)
	assert.Empty(t, store.snapshots)

	// the caller's view still matches the store, so a plain retry succeeds
	store.enqueueErr = nil
	require.NoError(t, engine.Transition(context.Background(), obj, "submit", actor, nil))
	assert.Equal(t, model.EngagementStatusReportSubmitted, obj.Status)
	assert.Len(t, store.logs, 1)
}

func TestTransitionStaleStatusConflicts(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	// another writer already moved the row on
	store.statuses[obj.ID] = model.EngagementStatusReportSubmitted
	engine := testEngine(store, allowAll())

	err := engine.Transition(context.Background(), obj, "submit", &model.User{ID: 1}, nil)
	assert.Equal(t, apperr.ConflictingTransition, apperr.KindOf(err))
	assert.Empty(t, store.logs)
	// the caller's view is untouched
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, obj.Status)
}

func TestTransitionUnknownActionAndSource(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 1}

	err := engine.Transition(context.Background(), obj, "no_such_action", actor, nil)
	assert.Equal(t, apperr.InvalidSourceStatus, apperr.KindOf(err))

	// finalize is declared, but only from report_submitted
	err = engine.Transition(context.Background(), obj, "finalize", actor, nil)
	assert.Equal(t, apperr.InvalidSourceStatus, apperr.KindOf(err))
}

func TestTransitionPermissionDenied(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	store.attachments[attachmentKey(obj, model.AttachmentSlotAuditReport)] = 1
	engine := testEngine(store, staticAuth{allowed: true, denied: map[string]bool{"submit": true}})

	err := engine.Transition(context.Background(), obj, "submit", &model.User{ID: 1}, nil)
	assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, store.statuses[obj.ID])
}

func TestTransitionPayloadRules(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 1}

	err := engine.Transition(context.Background(), obj, "cancel", actor, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.PayloadInvalid, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "comment", appErr.Field)

	err = engine.Transition(context.Background(), obj, "cancel",
		actor, map[string]interface{}{"comment": "duplicate record"})
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusCancelled, obj.Status)
	require.Len(t, store.logs, 1)
	assert.Equal(t, "duplicate record", store.logs[0].Comment)
}

func TestTransitionDateChainGuard(t *testing.T) {
	RegisterMachines()
	store := newMemStore()
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 1}

	t.Run("missing date", func(t *testing.T) {
		obj := readyEngagement(model.EngagementKindAudit)
		obj.DateOfFieldVisit = nil
		store.statuses[obj.ID] = obj.Status
		store.attachments[attachmentKey(obj, model.AttachmentSlotAuditReport)] = 1

		err := engine.Transition(context.Background(), obj, "submit", actor, nil)
		assert.Equal(t, apperr.GuardFailed, apperr.KindOf(err))
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "date_of_field_visit", appErr.Field)
	})

	t.Run("future date", func(t *testing.T) {
		obj := readyEngagement(model.EngagementKindAudit)
		obj.DateOfCommentsByUnicef = daysAgo(-3)
		store.statuses[obj.ID] = obj.Status

		err := engine.Transition(context.Background(), obj, "submit", actor, nil)
		assert.Equal(t, apperr.GuardFailed, apperr.KindOf(err))
	})

	t.Run("today is allowed", func(t *testing.T) {
		obj := readyEngagement(model.EngagementKindAudit)
		obj.DateOfCommentsByUnicef = daysAgo(0)
		store.statuses[obj.ID] = obj.Status
		store.attachments[attachmentKey(obj, model.AttachmentSlotAuditReport)] = 1

		require.NoError(t, engine.Transition(context.Background(), obj, "submit", actor, nil))
	})

	t.Run("out of order", func(t *testing.T) {
		obj := readyEngagement(model.EngagementKindAudit)
		obj.DateOfCommentsByIP = daysAgo(40) // before the field visit
		store.statuses[obj.ID] = obj.Status

		err := engine.Transition(context.Background(), obj, "submit", actor, nil)
		assert.Equal(t, apperr.GuardFailed, apperr.KindOf(err))
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "date_of_comments_by_ip", appErr.Field)
	})
}

func TestTransitionRequiredAttachment(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	engine := testEngine(store, allowAll())

	err := engine.Transition(context.Background(), obj, "submit", &model.User{ID: 1}, nil)
	assert.Equal(t, apperr.RequiredAttachmentMissing, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, model.AttachmentSlotAuditReport, appErr.Field)
}

func TestTransitionRequiredField(t *testing.T) {
	RegisterMachines()
	visit := &model.TPMVisit{}
	visit.ID = 3
	visit.Status = model.TPMVisitStatusDraft
	store := newMemStore()
	store.statuses[visit.ID] = visit.Status
	engine := testEngine(store, allowAll())

	err := engine.Transition(context.Background(), visit, "assign", &model.User{ID: 1}, nil)
	assert.Equal(t, apperr.RequiredFieldMissing, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "tpm_partner", appErr.Field)

	firm := uint(12)
	visit.TPMPartnerID = &firm
	err = engine.Transition(context.Background(), visit, "assign", &model.User{ID: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.TPMVisitStatusAssigned, visit.Status)
}

func TestTPMVisitRejectionLoop(t *testing.T) {
	RegisterMachines()
	firm := uint(12)
	visit := &model.TPMVisit{TPMPartnerID: &firm}
	visit.ID = 5
	visit.Status = model.TPMVisitStatusDraft
	store := newMemStore()
	store.statuses[visit.ID] = visit.Status
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 1}

	steps := []struct {
		action  string
		payload map[string]interface{}
		to      string
	}{
		{"assign", nil, model.TPMVisitStatusAssigned},
		{"reject", map[string]interface{}{"comment": "wrong site"}, model.TPMVisitStatusRejected},
		{"assign", nil, model.TPMVisitStatusAssigned},
		{"accept", nil, model.TPMVisitStatusAccepted},
	}
	for _, step := range steps {
		require.NoError(t, engine.Transition(context.Background(), visit, step.action, actor, step.payload))
		assert.Equal(t, step.to, visit.Status)
	}

	require.Len(t, store.logs, 4)
	assert.Equal(t, model.TPMVisitStatusDraft, store.logs[0].FromStatus)
	assert.Equal(t, model.TPMVisitStatusRejected, store.logs[2].FromStatus)
	assert.Equal(t, model.TPMVisitStatusAssigned, store.logs[2].ToStatus)
	// each log row gets its own identity even when the edge repeats
	ids := map[uint]bool{}
	for _, rec := range store.logs {
		ids[rec.ID] = true
	}
	assert.Len(t, ids, 4)
	assert.Len(t, store.snapshots, 4)
}

func TestFinalizeIncrementsHactByKind(t *testing.T) {
	RegisterMachines()
	cases := []struct {
		kind    string
		counter string
	}{
		{model.EngagementKindAudit, "audits.completed"},
		{model.EngagementKindMicroAssessment, "micro_assessments.completed"},
		{model.EngagementKindSpotCheck, "spot_checks.completed.q2"},
		{model.EngagementKindSpecialAudit, ""},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			obj := readyEngagement(tc.kind)
			end := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
			obj.EndDate = &end
			obj.Status = model.EngagementStatusReportSubmitted
			store := newMemStore()
			store.statuses[obj.ID] = obj.Status
			engine := testEngine(store, allowAll())

			err := engine.Transition(context.Background(), obj, "finalize", &model.User{ID: 1}, nil)
			require.NoError(t, err)

			if tc.counter == "" {
				assert.Empty(t, store.hactCalls)
				return
			}
			require.Len(t, store.hactCalls, 1)
			call := store.hactCalls[0]
			assert.Equal(t, obj.PartnerID, call.partnerID)
			assert.Equal(t, tc.counter, call.counter)
			assert.Equal(t, "engagement", call.sourceKind)
			assert.Equal(t, obj.ID, call.sourceID)
		})
	}
}

func TestActionPointCompleteGuard(t *testing.T) {
	RegisterMachines()
	ap := &model.ActionPoint{AssignedToID: 9, AssignerID: 4}
	ap.ID = 5
	ap.Status = model.ActionPointStatusOpen
	store := newMemStore()
	store.statuses[ap.ID] = ap.Status
	engine := testEngine(store, allowAll())
	actor := &model.User{ID: 9}

	err := engine.Transition(context.Background(), ap, "complete", actor, nil)
	assert.Equal(t, apperr.GuardFailed, apperr.KindOf(err))

	ap.Comments = []string{"all follow-ups closed"}
	err = engine.Transition(context.Background(), ap, "complete", actor, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ActionPointStatusCompleted, ap.Status)
	require.Len(t, store.outbox, 1)
	assert.Equal(t, AudienceAssignedBy, store.outbox[0].Audience)
}

func TestPSEAStartCopiesPreviousAnswers(t *testing.T) {
	RegisterMachines()
	partner := uint(3)
	prev := datatypes.JSON(`{"core_standard_1":"yes"}`)
	a := &model.PSEAAssessment{PartnerID: partner}
	a.ID = 8
	a.Status = model.PSEAStatusAssigned
	store := newMemStore()
	store.statuses[a.ID] = a.Status
	store.prevAnswers = prev
	engine := testEngine(store, allowAll())

	err := engine.Transition(context.Background(), a, "start", &model.User{ID: 2}, nil)
	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Equal(t, prev, store.updates[0]["answers"])
}

func TestCanTransitionDoesNotMutate(t *testing.T) {
	RegisterMachines()
	obj := readyEngagement(model.EngagementKindAudit)
	store := newMemStore()
	store.statuses[obj.ID] = obj.Status
	store.attachments[attachmentKey(obj, model.AttachmentSlotAuditReport)] = 1
	engine := testEngine(store, allowAll())

	err := engine.CanTransition(context.Background(), obj, "submit", &model.User{ID: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.EngagementStatusCommentsByUnicef, obj.Status)
	assert.Empty(t, store.logs)
	assert.Empty(t, store.outbox)
}
