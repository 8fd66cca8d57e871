package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/apperr"
)

func failWith(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, fail(c, err))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestFailMapsKindToStatus(t *testing.T) {
	code, body := failWith(t, apperr.Newf(apperr.NotFound, "engagement 9 not found"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["code"])
	assert.Contains(t, body["error"], "engagement 9 not found")

	code, _ = failWith(t, apperr.New(apperr.ConflictingTransition, "stale"))
	assert.Equal(t, http.StatusConflict, code)

	code, _ = failWith(t, apperr.New(apperr.PermissionDenied, "denied"))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestFailCarriesFieldForFieldScopedErrors(t *testing.T) {
	code, body := failWith(t,
		apperr.WithField(apperr.RequiredFieldMissing, "tpm_partner", "required field is empty"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "tpm_partner", body["field"])
	assert.Equal(t, "required_field_missing", body["code"])
}

func TestFailHidesInternalDetail(t *testing.T) {
	code, body := failWith(t, errors.New("pq: connection reset by peer"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"])
	assert.NotContains(t, body, "code")
}

func TestPayloadUint(t *testing.T) {
	payload := map[string]interface{}{
		"partner":  float64(7), // JSON numbers decode to float64
		"zero":     float64(0),
		"assigned": 3,
		"name":     "x",
	}

	v, ok := payloadUint(payload, "partner")
	assert.True(t, ok)
	assert.Equal(t, uint(7), v)

	v, ok = payloadUint(payload, "assigned")
	assert.True(t, ok)
	assert.Equal(t, uint(3), v)

	_, ok = payloadUint(payload, "zero")
	assert.False(t, ok)
	_, ok = payloadUint(payload, "name")
	assert.False(t, ok)
	_, ok = payloadUint(payload, "missing")
	assert.False(t, ok)
}
