package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePredicate(t *testing.T) {
	p, err := ParsePredicate("object_status(engagement, field_visit)")
	require.NoError(t, err)
	assert.Equal(t, OpObjectStatus, p.Op)
	assert.Equal(t, []string{"engagement", "field_visit"}, p.Args)

	p, err = ParsePredicate("group(UNICEF User)")
	require.NoError(t, err)
	assert.Equal(t, []string{"UNICEF User"}, p.Args)
}

func TestParsePredicateRejectsMalformed(t *testing.T) {
	for _, expr := range []string{
		"",
		"group",
		"group()",
		"(x)",
		"group(x",
		"explode(x)",
		"object_status(engagement)",
		"group(a,b)",
	} {
		_, err := ParsePredicate(expr)
		assert.Error(t, err, expr)
	}
}

func TestFormattersRoundTrip(t *testing.T) {
	for _, expr := range []string{
		Group("Auditor"),
		ObjectStatus("engagement", "final"),
		NewObject("tpmvisit"),
		IsAuthor("actionpoint"),
		IsAssignee("actionpoint"),
		IsAssignedBy("actionpoint"),
		IsFocalPoint("engagement"),
		IsStaffMember("tpmvisit"),
		Module("audit"),
	} {
		p, err := ParsePredicate(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, expr, p.String())
	}
}
