package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/realm"
	"github.com/unicef/etools-core/internal/snapshot"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/logger"
)

// ListRealms returns a user's realm rows in the pinned workspace.
func ListRealms(c echo.Context) error {
	ws, ok := middleware.CurrentWorkspace(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no workspace selected"})
	}
	userID, err := uintParam(c, "user_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var realms []model.Realm
	if err := database.Shared().
		Where("user_id = ? AND workspace_id = ?", userID, ws.ID).
		Order("organization_id, group_name").
		Find(&realms).Error; err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"realms": realms})
}

// GrantRealm gives a user a group for an organization in the pinned
// workspace. The grant is recorded in the activity stream.
func GrantRealm(c echo.Context) error {
	log := logger.FromContext(c)
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	ws, ok := middleware.CurrentWorkspace(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no workspace selected"})
	}

	var req struct {
		UserID         uint   `json:"user_id"`
		OrganizationID uint   `json:"organization_id"`
		Group          string `json:"group"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.OrganizationID == 0 || req.Group == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id, organization_id and group are required"})
	}
	if !model.KnownGroup(req.Group) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown group"})
	}

	ctx := c.Request().Context()
	resolver := realm.NewResolver(database.Shared())
	granted, err := resolver.Grant(ctx, req.UserID, ws.ID, req.OrganizationID, req.Group)
	if err != nil {
		return fail(c, err)
	}

	writer := snapshot.NewWriter()
	if _, err := writer.Record(tenancy.Shared(ctx), actor.ID, model.ActivityKindUpdate,
		"realm", granted.ID, nil, realmFields(granted)); err != nil {
		log.Warn("Failed to record realm grant", zap.Error(err))
	}

	log.Info("Realm granted",
		zap.Uint("user_id", req.UserID),
		zap.Uint("organization_id", req.OrganizationID),
		zap.String("group", req.Group),
		zap.String("workspace", ws.SchemaName))
	return c.JSON(http.StatusCreated, echo.Map{"realm": granted})
}

// RevokeRealm deactivates a realm row. Group membership disappears from
// permission evaluation immediately.
func RevokeRealm(c echo.Context) error {
	log := logger.FromContext(c)
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	ws, ok := middleware.CurrentWorkspace(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no workspace selected"})
	}

	var req struct {
		UserID         uint   `json:"user_id"`
		OrganizationID uint   `json:"organization_id"`
		Group          string `json:"group"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.OrganizationID == 0 || req.Group == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id, organization_id and group are required"})
	}

	ctx := c.Request().Context()
	db := database.Shared()

	var existing model.Realm
	if err := db.Where("user_id = ? AND workspace_id = ? AND organization_id = ? AND group_name = ?",
		req.UserID, ws.ID, req.OrganizationID, req.Group).First(&existing).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "realm not found"})
	}
	before := realmFields(&existing)

	resolver := realm.NewResolver(db)
	if err := resolver.Revoke(ctx, req.UserID, ws.ID, req.OrganizationID, req.Group); err != nil {
		return fail(c, err)
	}
	existing.Active = false

	writer := snapshot.NewWriter()
	if _, err := writer.Record(tenancy.Shared(ctx), actor.ID, model.ActivityKindUpdate,
		"realm", existing.ID, before, realmFields(&existing)); err != nil {
		log.Warn("Failed to record realm revoke", zap.Error(err))
	}

	log.Info("Realm revoked",
		zap.Uint("user_id", req.UserID),
		zap.Uint("organization_id", req.OrganizationID),
		zap.String("group", req.Group),
		zap.String("workspace", ws.SchemaName))
	return c.JSON(http.StatusOK, echo.Map{"message": "realm revoked"})
}

func realmFields(r *model.Realm) map[string]interface{} {
	return map[string]interface{}{
		"user_id":         r.UserID,
		"workspace_id":    r.WorkspaceID,
		"organization_id": r.OrganizationID,
		"group_name":      r.GroupName,
		"active":          r.Active,
	}
}
