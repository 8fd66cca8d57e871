package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
)

func TestCurrentRequiresPin(t *testing.T) {
	_, err := Current(context.Background())
	assert.Equal(t, apperr.NoWorkspaceSelected, apperr.KindOf(err))

	ws := &model.Workspace{SchemaName: "kenya"}
	got, err := Current(WithWorkspace(context.Background(), ws))
	require.NoError(t, err)
	assert.Same(t, ws, got)
}

func TestDBRejectsPublicWorkspace(t *testing.T) {
	ctx := WithWorkspace(context.Background(),
		&model.Workspace{SchemaName: model.PublicSchemaName})
	_, err := DB(ctx)
	assert.Equal(t, apperr.NoWorkspaceSelected, apperr.KindOf(err))
}

func TestOrganizationPin(t *testing.T) {
	assert.Nil(t, Organization(context.Background()))

	ctx := WithOrganization(context.Background(), 42)
	org := Organization(ctx)
	require.NotNil(t, org)
	assert.Equal(t, uint(42), *org)
}

func TestForEachTenantPinsEachWorkspace(t *testing.T) {
	orig := listWorkspaces
	defer func() { listWorkspaces = orig }()
	listWorkspaces = func(ctx context.Context) ([]model.Workspace, error) {
		return []model.Workspace{
			{SchemaName: "chad"},
			{SchemaName: "kenya"},
		}, nil
	}

	var seen []string
	err := ForEachTenant(context.Background(), func(ctx context.Context, ws *model.Workspace) error {
		pinned, err := Current(ctx)
		require.NoError(t, err)
		assert.Same(t, ws, pinned)
		seen = append(seen, ws.SchemaName)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"chad", "kenya"}, seen)
}

func TestForEachTenantStopsOnError(t *testing.T) {
	orig := listWorkspaces
	defer func() { listWorkspaces = orig }()
	listWorkspaces = func(ctx context.Context) ([]model.Workspace, error) {
		return []model.Workspace{
			{SchemaName: "chad"}, {SchemaName: "kenya"}, {SchemaName: "sudan"},
		}, nil
	}

	boom := errors.New("boom")
	var calls int
	err := ForEachTenant(context.Background(), func(ctx context.Context, ws *model.Workspace) error {
		calls++
		if ws.SchemaName == "kenya" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestForEachTenantDoesNotLeakPin(t *testing.T) {
	orig := listWorkspaces
	defer func() { listWorkspaces = orig }()
	listWorkspaces = func(ctx context.Context) ([]model.Workspace, error) {
		return []model.Workspace{{SchemaName: "chad"}}, nil
	}

	outer := WithWorkspace(context.Background(), &model.Workspace{SchemaName: "kenya"})
	err := ForEachTenant(outer, func(ctx context.Context, ws *model.Workspace) error {
		return nil
	})
	require.NoError(t, err)

	pinned, err := Current(outer)
	require.NoError(t, err)
	assert.Equal(t, "kenya", pinned.SchemaName)
}
