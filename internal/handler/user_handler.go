package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/unicef/etools-core/internal/middleware"
	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/realm"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/logger"
)

// GetProfile returns the authenticated user with their realm-derived
// workspaces and organizations.
func GetProfile(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	resolver := realm.NewResolver(database.Shared())
	ctx := c.Request().Context()

	resp := echo.Map{"user": user}
	if ws, ok := middleware.CurrentWorkspace(c); ok {
		resp["workspace"] = ws
		orgs, err := resolver.Organizations(ctx, user.ID, ws.ID)
		if err != nil {
			return fail(c, err)
		}
		resp["organizations"] = orgs

		var orgID *uint
		if id, ok := c.Get("organization_id").(uint); ok {
			orgID = &id
		}
		groups, err := resolver.Groups(ctx, user.ID, ws.ID, orgID)
		if err != nil {
			return fail(c, err)
		}
		resp["groups"] = groups
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateProfile updates the mutable identity fields.
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		FirstName  *string `json:"first_name"`
		MiddleName *string `json:"middle_name"`
		LastName   *string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.MiddleName != nil {
		updates["middle_name"] = *req.MiddleName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"user": user})
	}

	if err := database.Shared().Model(user).Updates(updates).Error; err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	log.Info("Profile updated", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// CreateAPIToken issues a long-lived API token. The plaintext key is
// returned once; only the bcrypt hash is stored.
func CreateAPIToken(c echo.Context) error {
	log := logger.FromContext(c)
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	prefix, secret, err := generateTokenKey()
	if err != nil {
		log.Error("Failed to generate API token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}

	token := model.APIToken{
		UserID:    user.ID,
		KeyPrefix: prefix,
		KeyHash:   string(hash),
		Active:    true,
	}
	if err := database.Shared().Create(&token).Error; err != nil {
		log.Error("Failed to store API token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token creation failed"})
	}

	log.Info("API token issued", zap.Uint("user_id", user.ID), zap.String("prefix", prefix))
	return c.JSON(http.StatusCreated, echo.Map{
		"key":    prefix + "." + secret,
		"prefix": prefix,
	})
}

// RevokeAPIToken deactivates one of the caller's tokens by prefix.
func RevokeAPIToken(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	prefix := c.Param("prefix")

	res := database.Shared().Model(&model.APIToken{}).
		Where("user_id = ? AND key_prefix = ?", user.ID, prefix).
		Update("active", false)
	if res.Error != nil {
		return fail(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "token revoked"})
}

func generateTokenKey() (prefix, secret string, err error) {
	buf := make([]byte, 22)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw := hex.EncodeToString(buf)
	return raw[:8], raw[8:], nil
}
