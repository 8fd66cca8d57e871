package handler

import (
	"context"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/permission"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/internal/workflow"
)

// PermissionAuthorizer adapts the permission engine to the workflow engine's
// action check.
type PermissionAuthorizer struct {
	Engine *permission.Engine
}

func (a PermissionAuthorizer) ActionAllowed(ctx context.Context, obj workflow.Object, actor *model.User, action string) (bool, error) {
	subject, ok := obj.(permission.Subject)
	if !ok {
		return false, nil
	}
	ws, err := tenancy.Current(ctx)
	if err != nil {
		return false, err
	}
	batch, err := a.Engine.NewBatch(ctx, permission.Request{
		Actor:          actor,
		Workspace:      ws,
		OrganizationID: tenancy.Organization(ctx),
		Module:         permission.ModuleForEntity(obj.ObjectKind()),
		Object:         subject,
	})
	if err != nil {
		return false, err
	}
	return batch.Allowed(action, model.PermissionKindAction)
}
