package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/realm"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

// ListWorkspaces returns the workspaces the caller holds an active realm in.
// Superusers see every active workspace.
func ListWorkspaces(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	db := database.Shared()

	var workspaces []model.Workspace
	q := db.Where("active = ? AND schema_name <> ?", true, model.PublicSchemaName).Order("schema_name")
	if !user.IsSuperuser {
		q = q.Where("id IN (?)", db.Model(&model.Realm{}).
			Select("workspace_id").
			Where("user_id = ? AND active = ?", user.ID, true))
	}
	if err := q.Find(&workspaces).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"workspaces": workspaces})
}

// SelectWorkspace stores the caller's workspace choice in their preferences.
// Subsequent requests are pinned to it.
func SelectWorkspace(c echo.Context) error {
	log := logger.FromContext(c)
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		WorkspaceID uint `json:"workspace_id"`
	}
	if err := c.Bind(&req); err != nil || req.WorkspaceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "workspace_id is required"})
	}
	db := database.Shared()
	ctx := c.Request().Context()

	var ws model.Workspace
	if err := db.First(&ws, req.WorkspaceID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown workspace"})
	}
	if !ws.Active {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "workspace is inactive"})
	}

	if !user.IsSuperuser {
		var n int64
		if err := db.Model(&model.Realm{}).
			Where("user_id = ? AND workspace_id = ? AND active = ?", user.ID, ws.ID, true).
			Count(&n).Error; err != nil {
			return fail(c, err)
		}
		if n == 0 {
			prometheus.RecordWorkspaceOperation("select_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no role in the requested workspace"})
		}
	}

	prefs := model.DecodePreferences(user)
	prefs.WorkspaceID = ws.ID
	prefs.OrganizationID = 0

	// Pre-select the default organization for the new workspace.
	resolver := realm.NewResolver(db)
	if org, err := resolver.DefaultOrganization(ctx, user, ws.ID); err == nil && org != nil {
		prefs.OrganizationID = org.ID
	}

	if err := storePreferences(user, prefs); err != nil {
		log.Error("Failed to persist workspace selection", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "selection failed"})
	}

	prometheus.RecordWorkspaceOperation("select")
	log.Info("Workspace selected",
		zap.Uint("user_id", user.ID),
		zap.String("workspace", ws.SchemaName))
	return c.JSON(http.StatusOK, echo.Map{"workspace": ws})
}

// SelectOrganization changes which organization the caller acts for inside
// their selected workspace.
func SelectOrganization(c echo.Context) error {
	log := logger.FromContext(c)
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	ws, ok := middleware.CurrentWorkspace(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no workspace selected"})
	}

	var req struct {
		OrganizationID uint `json:"organization_id"`
	}
	if err := c.Bind(&req); err != nil || req.OrganizationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "organization_id is required"})
	}

	resolver := realm.NewResolver(database.Shared())
	orgs, err := resolver.Organizations(c.Request().Context(), user.ID, ws.ID)
	if err != nil {
		return fail(c, err)
	}
	var selected *model.Organization
	for i := range orgs {
		if orgs[i].ID == req.OrganizationID {
			selected = &orgs[i]
			break
		}
	}
	if selected == nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no role for the requested organization"})
	}

	prefs := model.DecodePreferences(user)
	prefs.OrganizationID = selected.ID
	if err := storePreferences(user, prefs); err != nil {
		return fail(c, err)
	}

	log.Info("Organization selected",
		zap.Uint("user_id", user.ID),
		zap.Uint("organization_id", selected.ID))
	return c.JSON(http.StatusOK, echo.Map{"organization": selected})
}

func storePreferences(user *model.User, prefs model.UserPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	user.Preferences = datatypes.JSON(raw)
	return database.Shared().Model(user).Update("preferences", user.Preferences).Error
}
