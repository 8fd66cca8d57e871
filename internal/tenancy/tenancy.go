// Package tenancy binds the current workspace to the request context and
// hands out schema-pinned database handles. Switching workspaces mid-request
// is forbidden: the pin is set once by the middleware (or by ForEachTenant
// for background jobs) and never mutated in place.
package tenancy

import (
	"context"

	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/pkg/database"
)

type ctxKey int

const (
	workspaceKey ctxKey = iota
	organizationKey
)

// WithWorkspace returns a child context pinned to the given workspace.
func WithWorkspace(ctx context.Context, ws *model.Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey, ws)
}

// WithOrganization pins the organization the actor acts for. Group
// resolution scopes to it.
func WithOrganization(ctx context.Context, orgID uint) context.Context {
	return context.WithValue(ctx, organizationKey, orgID)
}

// Organization returns the pinned acting organization, or nil when the
// context carries none.
func Organization(ctx context.Context) *uint {
	id, ok := ctx.Value(organizationKey).(uint)
	if !ok {
		return nil
	}
	return &id
}

// Current returns the pinned workspace, or NoWorkspaceSelected when the
// context carries none.
func Current(ctx context.Context) (*model.Workspace, error) {
	ws, ok := ctx.Value(workspaceKey).(*model.Workspace)
	if !ok || ws == nil {
		return nil, apperr.New(apperr.NoWorkspaceSelected, "operation requires a workspace")
	}
	return ws, nil
}

// DB returns the tenant-scoped database handle for the pinned workspace.
// All tenant-table reads and writes go through here.
func DB(ctx context.Context) (*gorm.DB, error) {
	ws, err := Current(ctx)
	if err != nil {
		return nil, err
	}
	if ws.IsPublic() {
		return nil, apperr.New(apperr.NoWorkspaceSelected, "public workspace holds shared tables only")
	}
	db, err := database.ForSchema(ws.SchemaName)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "tenant schema unavailable", err)
	}
	return db.WithContext(ctx), nil
}

// Shared returns the shared-schema handle for cross-workspace tables.
func Shared(ctx context.Context) *gorm.DB {
	return database.Shared().WithContext(ctx)
}

// listWorkspaces is overridable in tests.
var listWorkspaces = func(ctx context.Context) ([]model.Workspace, error) {
	var out []model.Workspace
	err := database.Shared().WithContext(ctx).
		Where("active = ? AND schema_name <> ?", true, model.PublicSchemaName).
		Order("schema_name").
		Find(&out).Error
	return out, err
}

// ForEachTenant runs fn once per active non-public workspace, one workspace
// pinned at a time. Each iteration gets its own child context; the caller's
// pin (if any) is untouched on normal and exceptional exits. The first error
// stops the iteration.
func ForEachTenant(ctx context.Context, fn func(ctx context.Context, ws *model.Workspace) error) error {
	workspaces, err := listWorkspaces(ctx)
	if err != nil {
		return err
	}
	for i := range workspaces {
		ws := &workspaces[i]
		if err := fn(WithWorkspace(ctx, ws), ws); err != nil {
			return err
		}
	}
	return nil
}
