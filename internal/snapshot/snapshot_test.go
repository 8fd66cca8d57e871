package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffReportsChangedFields(t *testing.T) {
	before := map[string]interface{}{
		"status":      "draft",
		"total_value": 100.0,
		"findings":    "",
	}
	after := map[string]interface{}{
		"status":      "assigned",
		"total_value": 100.0,
		"findings":    "overdue reports",
	}

	change := Diff(before, after)
	require.Len(t, change, 2)
	assert.Equal(t, "draft", change["status"]["before"])
	assert.Equal(t, "assigned", change["status"]["after"])
	assert.Equal(t, "overdue reports", change["findings"]["after"])
	assert.NotContains(t, change, "total_value")
}

func TestDiffHandlesAsymmetricKeys(t *testing.T) {
	change := Diff(
		map[string]interface{}{"removed": 1},
		map[string]interface{}{"added": 2},
	)
	require.Len(t, change, 2)
	assert.Equal(t, 1, change["removed"]["before"])
	assert.Nil(t, change["removed"]["after"])
	assert.Nil(t, change["added"]["before"])
	assert.Equal(t, 2, change["added"]["after"])
}

func TestDiffComparesThroughJSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	same := Diff(
		map[string]interface{}{"due": &at, "count": 3},
		map[string]interface{}{"due": &at, "count": 3.0},
	)
	// int 3 and float 3 encode identically, pointer vs value likewise
	assert.Empty(t, same)

	later := at.Add(time.Hour)
	changed := Diff(
		map[string]interface{}{"due": &at},
		map[string]interface{}{"due": &later},
	)
	assert.Len(t, changed, 1)
}

func TestApplyReproducesAfterState(t *testing.T) {
	before := map[string]interface{}{
		"status":   "draft",
		"findings": "",
	}
	after := map[string]interface{}{
		"status":   "assigned",
		"findings": "",
	}

	got := Apply(before, Diff(before, after))
	assert.Equal(t, after, got)
	// the input map is untouched
	assert.Equal(t, "draft", before["status"])
}

func TestDiffNilMaps(t *testing.T) {
	assert.Empty(t, Diff(nil, nil))

	created := Diff(nil, map[string]interface{}{"status": "draft"})
	require.Len(t, created, 1)
	assert.Nil(t, created["status"]["before"])

	deleted := Diff(map[string]interface{}{"status": "final"}, nil)
	require.Len(t, deleted, 1)
	assert.Nil(t, deleted["status"]["after"])
}
