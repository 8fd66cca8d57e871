package hact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDecodeValues(t *testing.T) {
	values, err := decodeValues(nil)
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = decodeValues(datatypes.JSON(`{"audits":{"completed":3}}`))
	require.NoError(t, err)
	audits := values["audits"].(map[string]interface{})
	assert.Equal(t, float64(3), audits["completed"])

	_, err = decodeValues(datatypes.JSON(`not json`))
	assert.Error(t, err)
}

func TestBumpPathCreatesIntermediateObjects(t *testing.T) {
	values := map[string]interface{}{}
	bumpPath(values, "programmatic_visits.completed.q3")

	visits := values["programmatic_visits"].(map[string]interface{})
	completed := visits["completed"].(map[string]interface{})
	assert.Equal(t, float64(1), completed["q3"])
}

func TestBumpPathIncrementsExistingLeaf(t *testing.T) {
	raw := datatypes.JSON(`{"audits":{"completed":5},"spot_checks":{"completed":{"q1":2}}}`)
	values, err := decodeValues(raw)
	require.NoError(t, err)

	bumpPath(values, "audits.completed")
	bumpPath(values, "spot_checks.completed.q1")

	out, err := json.Marshal(values)
	require.NoError(t, err)
	assert.JSONEq(t, `{"audits":{"completed":6},"spot_checks":{"completed":{"q1":3}}}`, string(out))
}

func TestBumpPathReplacesNonObjectMiddle(t *testing.T) {
	values := map[string]interface{}{"audits": "garbage"}
	bumpPath(values, "audits.completed")

	audits := values["audits"].(map[string]interface{})
	assert.Equal(t, float64(1), audits["completed"])
}

func TestBumpPathRestartsNonNumericLeaf(t *testing.T) {
	values := map[string]interface{}{
		"audits": map[string]interface{}{"completed": "three"},
	}
	bumpPath(values, "audits.completed")
	audits := values["audits"].(map[string]interface{})
	assert.Equal(t, float64(1), audits["completed"])
}

func TestBumpPathSingleSegment(t *testing.T) {
	values := map[string]interface{}{"total": float64(9)}
	bumpPath(values, "total")
	assert.Equal(t, float64(10), values["total"])
}
