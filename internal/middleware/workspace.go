package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/apperr"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/realm"
	"github.com/unicef/etools-core/internal/tenancy"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

// WorkspaceOverrideHeader lets superusers act against a workspace other than
// their selected one, by schema name.
const WorkspaceOverrideHeader = "X-Workspace"

// WorkspaceMiddleware pins the caller's workspace onto the request context.
// The workspace comes from the override header for superusers, otherwise
// from the user's stored preference. Requests without a resolvable workspace
// pass through unpinned; handlers needing one go through RequireWorkspace.
func WorkspaceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := CurrentUser(c)
		if !ok {
			return next(c)
		}
		log := logger.FromContext(c)
		db := database.Shared()

		var ws *model.Workspace
		if override := c.Request().Header.Get(WorkspaceOverrideHeader); override != "" && user.IsSuperuser {
			var found model.Workspace
			err := db.Where("schema_name = ?", override).First(&found).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown workspace"})
			}
			if err != nil {
				return err
			}
			ws = &found
			prometheus.RecordWorkspaceOperation("override")
		} else {
			prefs := model.DecodePreferences(user)
			if prefs.WorkspaceID != 0 {
				var found model.Workspace
				if err := db.First(&found, prefs.WorkspaceID).Error; err == nil {
					ws = &found
				}
			}
		}

		if ws == nil {
			return next(c)
		}

		c.Set("workspace", ws)
		log = log.With(zap.String("workspace", ws.SchemaName))
		c.Set("logger", log)

		ctx := tenancy.WithWorkspace(c.Request().Context(), ws)
		ctx = logger.WithCtx(ctx, log)

		// Resolve the organization the caller acts for in this workspace:
		// the explicitly selected one when it still holds a realm, else the
		// default.
		resolver := realm.NewResolver(db)
		var org *model.Organization
		prefs := model.DecodePreferences(user)
		if prefs.OrganizationID != 0 {
			orgs, err := resolver.Organizations(ctx, user.ID, ws.ID)
			if err == nil {
				for i := range orgs {
					if orgs[i].ID == prefs.OrganizationID {
						org = &orgs[i]
						break
					}
				}
			}
		}
		if org == nil {
			org, _ = resolver.DefaultOrganization(ctx, user, ws.ID)
		}
		if org != nil {
			c.Set("organization", org)
			c.Set("organization_id", org.ID)
			ctx = tenancy.WithOrganization(ctx, org.ID)
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireWorkspace rejects requests that reach a tenant-scoped route without
// a pinned, active, non-public workspace.
func RequireWorkspace(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ws, ok := c.Get("workspace").(*model.Workspace)
		if !ok || ws == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no workspace selected"})
		}
		if ws.IsPublic() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "the public workspace holds no tenant data"})
		}
		if !ws.Active {
			err := apperr.Newf(apperr.WorkspaceInactive, "workspace %s is inactive", ws.SchemaName)
			return c.JSON(apperr.HTTPStatus(apperr.WorkspaceInactive), echo.Map{
				"error": err.Error(),
				"code":  string(apperr.WorkspaceInactive),
			})
		}
		return next(c)
	}
}

// CurrentWorkspace returns the workspace pinned by WorkspaceMiddleware.
func CurrentWorkspace(c echo.Context) (*model.Workspace, bool) {
	ws, ok := c.Get("workspace").(*model.Workspace)
	return ws, ok
}
