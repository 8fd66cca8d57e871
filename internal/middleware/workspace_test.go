package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
)

func runRequireWorkspace(t *testing.T, ws *model.Workspace) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if ws != nil {
		c.Set("workspace", ws)
	}
	handler := RequireWorkspace(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	require.NoError(t, handler(c))
	return rec
}

func TestRequireWorkspaceRejectsUnpinned(t *testing.T) {
	rec := runRequireWorkspace(t, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireWorkspaceRejectsPublic(t *testing.T) {
	rec := runRequireWorkspace(t, &model.Workspace{SchemaName: model.PublicSchemaName, Active: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireWorkspaceInactiveCarriesErrorKind(t *testing.T) {
	rec := runRequireWorkspace(t, &model.Workspace{SchemaName: "kenya", Active: false})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(apperr.WorkspaceInactive), body["code"])
	assert.Contains(t, body["error"], "kenya")
}

func TestRequireWorkspacePassesActive(t *testing.T) {
	rec := runRequireWorkspace(t, &model.Workspace{SchemaName: "kenya", Active: true})
	assert.Equal(t, http.StatusOK, rec.Code)
}
