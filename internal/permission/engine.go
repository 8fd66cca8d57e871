// Package permission evaluates the data-driven permission table: rows of
// (target, kind, effect, conditions) matched against an (actor, object) pair.
// Disallow rows override allow rows; no matching allow means deny.
package permission

import (
	"context"
	"strconv"
	"strings"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/prometheus"
)

// Subject is what the engine needs to know about an object under evaluation.
// Workflow models implement it with fixed accessors, no reflection.
type Subject interface {
	ObjectKind() string
	ObjectID() uint
	CurrentStatus() string
	IsNew() bool
	AuthorID() *uint
	AssigneeIDs() []uint
	AssignedByID() *uint
	FocalPointIDs() []uint
	StaffOrganizationID() *uint
}

// GroupSource resolves group membership; realm.Resolver satisfies it.
type GroupSource interface {
	Groups(ctx context.Context, userID, workspaceID uint, orgID *uint) ([]string, error)
}

// RowSource loads the permission rows for one entity.
type RowSource interface {
	Rows(ctx context.Context, entity string) ([]model.PermissionRow, error)
}

// TenantRows loads rows from the pinned workspace's permission table.
type TenantRows struct{}

// Rows returns every row whose target prefix is the entity.
func (TenantRows) Rows(ctx context.Context, entity string) ([]model.PermissionRow, error) {
	db, err := tenancy.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []model.PermissionRow
	if err := db.Where("target LIKE ?", entity+".%").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Request is one (actor, object) evaluation scope.
type Request struct {
	Actor          *model.User
	Workspace      *model.Workspace
	OrganizationID *uint  // actor's currently selected organization
	Module         string // request-scoped module for module(M)
	Object         Subject
}

// Engine evaluates permission queries.
type Engine struct {
	Rows   RowSource
	Groups GroupSource
}

// NewEngine wires the production sources.
func NewEngine(groups GroupSource) *Engine {
	return &Engine{Rows: TenantRows{}, Groups: groups}
}

// FieldPerm is the per-field result of a bulk evaluation.
type FieldPerm struct {
	View bool `json:"view"`
	Edit bool `json:"edit"`
}

// Set is the permissions block returned with every workflow object.
type Set struct {
	View    map[string]bool `json:"view"`
	Edit    map[string]bool `json:"edit"`
	Actions map[string]bool `json:"actions"`
}

// Batch memoizes rows, realm lookups and predicate results for one
// (actor, object) pair, so a form-style bulk evaluation hits the database a
// constant number of times.
type Batch struct {
	engine *Engine
	ctx    context.Context
	req    Request
	rows   []model.PermissionRow

	groupCache map[string][]string // keyed by org id ("" = selected org)
	predCache  map[string]bool
}

// NewBatch loads the object's rows once and returns the evaluation batch.
func (e *Engine) NewBatch(ctx context.Context, req Request) (*Batch, error) {
	rows, err := e.Rows.Rows(ctx, req.Object.ObjectKind())
	if err != nil {
		return nil, err
	}
	return &Batch{
		engine:     e,
		ctx:        ctx,
		req:        req,
		rows:       rows,
		groupCache: map[string][]string{},
		predCache:  map[string]bool{},
	}, nil
}

// Allowed answers a single (field-or-action, kind) query. target is the bare
// field or action name; the entity prefix comes from the object.
func (b *Batch) Allowed(target, kind string) (bool, error) {
	entity := b.req.Object.ObjectKind()
	full := entity + "." + target
	wildcard := entity + ".*"

	allowMatched := false
	for _, row := range b.rows {
		if row.Kind != kind {
			continue
		}
		if row.Target != full && row.Target != wildcard {
			continue
		}
		matched, err := b.rowMatches(row)
		if err != nil {
			return false, err
		}
		if !matched {
			continue
		}
		if row.Effect == model.PermissionEffectDisallow {
			// disallow overrides any matching allow
			prometheus.RecordPermissionEval(entity, false)
			return false, nil
		}
		allowMatched = true
	}
	prometheus.RecordPermissionEval(entity, allowMatched)
	return allowMatched, nil
}

// Evaluate returns the per-field {view, edit} map and per-action allow set
// for the declared fields and actions of the object.
func (b *Batch) Evaluate(fields, actions []string) (*Set, error) {
	out := &Set{
		View:    make(map[string]bool, len(fields)),
		Edit:    make(map[string]bool, len(fields)),
		Actions: make(map[string]bool, len(actions)),
	}
	for _, f := range fields {
		view, err := b.Allowed(f, model.PermissionKindView)
		if err != nil {
			return nil, err
		}
		edit, err := b.Allowed(f, model.PermissionKindEdit)
		if err != nil {
			return nil, err
		}
		out.View[f] = view
		out.Edit[f] = edit
	}
	for _, a := range actions {
		ok, err := b.Allowed(a, model.PermissionKindAction)
		if err != nil {
			return nil, err
		}
		out.Actions[a] = ok
	}
	return out, nil
}

// rowMatches evaluates the row's conditions, ANDed in order.
func (b *Batch) rowMatches(row model.PermissionRow) (bool, error) {
	for _, expr := range row.Conditions {
		ok, err := b.predicate(expr)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (b *Batch) predicate(expr string) (bool, error) {
	if v, ok := b.predCache[expr]; ok {
		return v, nil
	}
	p, err := ParsePredicate(expr)
	if err != nil {
		return false, err
	}
	v, err := b.eval(p)
	if err != nil {
		return false, err
	}
	b.predCache[expr] = v
	return v, nil
}

func (b *Batch) eval(p Predicate) (bool, error) {
	obj := b.req.Object
	actor := b.req.Actor
	switch p.Op {
	case OpGroup:
		groups, err := b.groups(b.req.OrganizationID)
		if err != nil {
			return false, err
		}
		return contains(groups, p.Args[0]), nil
	case OpObjectStatus:
		return p.Args[0] == obj.ObjectKind() && p.Args[1] == obj.CurrentStatus(), nil
	case OpNewObject:
		return p.Args[0] == obj.ObjectKind() && obj.IsNew(), nil
	case OpIsAuthor:
		return p.Args[0] == obj.ObjectKind() && idMatches(obj.AuthorID(), actor.ID), nil
	case OpIsAssignee:
		return p.Args[0] == obj.ObjectKind() && containsID(obj.AssigneeIDs(), actor.ID), nil
	case OpIsAssignedBy:
		return p.Args[0] == obj.ObjectKind() && idMatches(obj.AssignedByID(), actor.ID), nil
	case OpIsFocalPoint:
		return p.Args[0] == obj.ObjectKind() && containsID(obj.FocalPointIDs(), actor.ID), nil
	case OpIsStaff:
		if p.Args[0] != obj.ObjectKind() {
			return false, nil
		}
		orgID := obj.StaffOrganizationID()
		if orgID == nil {
			return false, nil
		}
		// staff membership = any active realm for the firm in this workspace
		groups, err := b.groups(orgID)
		if err != nil {
			return false, err
		}
		return len(groups) > 0, nil
	case OpModule:
		return strings.EqualFold(p.Args[0], b.req.Module), nil
	default:
		return false, nil
	}
}

func (b *Batch) groups(orgID *uint) ([]string, error) {
	key := ""
	if orgID != nil {
		key = uitoa(*orgID)
	}
	if g, ok := b.groupCache[key]; ok {
		return g, nil
	}
	g, err := b.engine.Groups.Groups(b.ctx, b.req.Actor.ID, b.req.Workspace.ID, orgID)
	if err != nil {
		return nil, err
	}
	b.groupCache[key] = g
	return g, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsID(list []uint, v uint) bool {
	for _, id := range list {
		if id == v {
			return true
		}
	}
	return false
}

func idMatches(id *uint, v uint) bool {
	return id != nil && *id == v
}

func uitoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
