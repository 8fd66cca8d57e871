package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/permission"
)

type fixedRows []model.PermissionRow

func (f fixedRows) Rows(ctx context.Context, entity string) ([]model.PermissionRow, error) {
	return f, nil
}

type fixedGroups []string

func (f fixedGroups) Groups(ctx context.Context, userID, workspaceID uint, orgID *uint) ([]string, error) {
	return f, nil
}

func engagementBatch(t *testing.T, rows []model.PermissionRow, groups []string) *permission.Batch {
	t.Helper()
	engine := &permission.Engine{Rows: fixedRows(rows), Groups: fixedGroups(groups)}
	obj := &model.Engagement{Kind: model.EngagementKindAudit}
	obj.Status = model.EngagementStatusPartnerContacted
	batch, err := engine.NewBatch(context.Background(), permission.Request{
		Actor:     &model.User{ID: 1},
		Workspace: &model.Workspace{ID: 1},
		Module:    "audit",
		Object:    obj,
	})
	require.NoError(t, err)
	return batch
}

func TestEditableColumnsMapsFieldsToColumns(t *testing.T) {
	rows := []model.PermissionRow{{
		Target: "engagement.*",
		Kind:   model.PermissionKindEdit,
		Effect: model.PermissionEffectAllow,
		Conditions: []string{
			permission.Group(model.GroupAuditFocalPoint),
		},
	}}
	batch := engagementBatch(t, rows, []string{model.GroupAuditFocalPoint})

	r := NewEngagementResource(&Deps{})
	updates, err := r.editableColumns(batch, map[string]interface{}{
		"partner":     float64(7),
		"total_value": 120000.0,
		"findings":    "x",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"partner_id":  float64(7),
		"total_value": 120000.0,
		"findings":    "x",
	}, updates)
}

func TestEditableColumnsRejectsUnknownField(t *testing.T) {
	batch := engagementBatch(t, nil, nil)
	r := NewEngagementResource(&Deps{})

	_, err := r.editableColumns(batch, map[string]interface{}{"status": "final"})
	assert.Equal(t, apperr.PayloadInvalid, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "status", appErr.Field)
}

func TestEditableColumnsEnforcesEditPermission(t *testing.T) {
	// view-only rows: every edit is a rigid edit
	rows := []model.PermissionRow{{
		Target:     "engagement.*",
		Kind:       model.PermissionKindView,
		Effect:     model.PermissionEffectAllow,
		Conditions: []string{permission.Group(model.GroupUNICEFUser)},
	}}
	batch := engagementBatch(t, rows, []string{model.GroupUNICEFUser})
	r := NewEngagementResource(&Deps{})

	_, err := r.editableColumns(batch, map[string]interface{}{"findings": "x"})
	assert.Equal(t, apperr.RigidFieldEdit, apperr.KindOf(err))
}

func TestResourceColumnsCoverDeclaredFields(t *testing.T) {
	resources := map[string]*Resource{
		"engagement":         NewEngagementResource(&Deps{}),
		"tpmvisit":           NewTPMVisitResource(&Deps{}),
		"monitoringactivity": NewMonitoringActivityResource(&Deps{}),
		"pseaassessment":     NewPSEAAssessmentResource(&Deps{}),
		"actionpoint":        NewActionPointResource(&Deps{}),
	}
	for entity, r := range resources {
		assert.Equal(t, entity, r.Kind)
		for _, field := range permission.EntityFields(entity) {
			_, ok := r.Columns[field]
			assert.True(t, ok, "%s: declared field %q has no column mapping", entity, field)
		}
	}
}
