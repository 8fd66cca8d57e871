package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestBuildReferenceNumber(t *testing.T) {
	assert.Equal(t, "KEN/2024/0042/AUDIT", BuildReferenceNumber("KEN", 2024, 42, "AUDIT"))
	assert.Equal(t, "TCD/2025/0001/TPM", BuildReferenceNumber("TCD", 2025, 1, "TPM"))
	// sequence widens past four digits instead of truncating
	assert.Equal(t, "KEN/2024/12345/SC", BuildReferenceNumber("KEN", 2024, 12345, "SC"))
}

func TestWorkflowBaseStatus(t *testing.T) {
	var b WorkflowBase
	assert.True(t, b.IsNew())

	b.ID = 3
	assert.False(t, b.IsNew())

	b.SetStatus("assigned", b.StatusDate)
	assert.Equal(t, "assigned", b.CurrentStatus())

	b.SetReference("KEN/2024/0001/AUDIT")
	assert.Equal(t, "KEN/2024/0001/AUDIT", b.Reference())
}

func TestKnownGroup(t *testing.T) {
	for _, g := range KnownGroups {
		assert.True(t, KnownGroup(g), g)
	}
	assert.False(t, KnownGroup("Superhero"))
	assert.False(t, KnownGroup(""))
}

func TestDecodePreferences(t *testing.T) {
	u := &User{}
	assert.Zero(t, DecodePreferences(u))

	u.Preferences = datatypes.JSON(`{"workspace_id":4,"organization_id":9}`)
	prefs := DecodePreferences(u)
	assert.Equal(t, uint(4), prefs.WorkspaceID)
	assert.Equal(t, uint(9), prefs.OrganizationID)
	assert.Nil(t, prefs.PrimaryOrgID)

	u.Preferences = datatypes.JSON(`garbage`)
	assert.Zero(t, DecodePreferences(u))
}

func TestWorkspaceIsPublic(t *testing.T) {
	assert.True(t, (&Workspace{SchemaName: PublicSchemaName}).IsPublic())
	assert.False(t, (&Workspace{SchemaName: "kenya"}).IsPublic())
}

func TestEngagementFieldValue(t *testing.T) {
	e := &Engagement{Kind: EngagementKindSpotCheck, PartnerID: 8, Findings: "late reports"}

	v, ok := e.FieldValue("kind")
	assert.True(t, ok)
	assert.Equal(t, EngagementKindSpotCheck, v)

	v, ok = e.FieldValue("partner")
	assert.True(t, ok)
	assert.Equal(t, uint(8), v)

	_, ok = e.FieldValue("no_such_field")
	assert.False(t, ok)
}
