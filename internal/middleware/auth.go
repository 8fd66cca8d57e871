package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/unicef/etools-core/internal/model"
	"github.com/unicef/etools-core/internal/realm"
	"github.com/unicef/etools-core/pkg/database"
	"github.com/unicef/etools-core/pkg/jwtutil"
	"github.com/unicef/etools-core/pkg/logger"
	"github.com/unicef/etools-core/prometheus"
)

const unicefDomain = "@unicef.org"

// SessionCookieName carries a JWT for browser sessions that predate the
// Authorization header flow.
const SessionCookieName = "etools_session"

// AuthMiddleware resolves the caller's identity from a Bearer JWT, a legacy
// session cookie or a long-lived API token. UNICEF staff arriving from the
// trusted identity provider are provisioned on first sight. A caller without
// any active realm is treated as an inactive account.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		user, err := resolveUser(c)
		if err != nil {
			log.Warn("Authentication failed", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
		}

		if !user.IsActive {
			prometheus.RecordAuthError("inactive_user")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account is inactive"})
		}

		resolver := realm.NewResolver(database.Shared())
		hasRealm, err := resolver.HasAnyRealm(c.Request().Context(), user.ID)
		if err != nil {
			log.Error("Realm lookup failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		if !hasRealm && !user.IsSuperuser {
			prometheus.RecordAuthError("no_realm")
			log.Warn("User has no active realm", zap.String("email", user.Email))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account has no active role in any workspace"})
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("email", user.Email)

		log = log.With(zap.Uint("user_id", user.ID), zap.String("email", user.Email))
		c.Set("logger", log)

		return next(c)
	}
}

func resolveUser(c echo.Context) (*model.User, error) {
	authHeader := c.Request().Header.Get("Authorization")
	switch {
	case strings.HasPrefix(authHeader, "Bearer "):
		return userFromJWT(c, authHeader[7:])
	case strings.HasPrefix(authHeader, "Token "):
		return userFromAPIToken(c, authHeader[6:])
	case authHeader != "":
		prometheus.RecordAuthError("invalid_auth_format")
		return nil, errors.New("invalid authorization format, expected Bearer token or Token key")
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return userFromJWT(c, cookie.Value)
	}
	prometheus.RecordAuthError("missing_token")
	return nil, errors.New("missing authorization token")
}

func userFromJWT(c echo.Context, tokenString string) (*model.User, error) {
	claims, err := jwtutil.ValidateToken(tokenString)
	if err != nil {
		prometheus.RecordAuthError("invalid_token")
		return nil, errors.New("invalid or expired token")
	}

	db := database.Shared()
	var user model.User
	err = db.Where("email = ?", strings.ToLower(claims.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if claims.FromTrustedIdP() && strings.HasSuffix(strings.ToLower(claims.Email), unicefDomain) {
			return provisionStaffUser(c, claims)
		}
		prometheus.RecordAuthError("unknown_user")
		return nil, errors.New("unknown user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// provisionStaffUser creates the user record and their UNICEF User realm in
// the workspace matching the identity provider's business area code.
func provisionStaffUser(c echo.Context, claims *jwtutil.UserClaims) (*model.User, error) {
	log := logger.FromContext(c)
	db := database.Shared()
	ctx := c.Request().Context()

	user := model.User{
		Email:    claims.Email,
		IsActive: true,
		IsStaff:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}

	var ws model.Workspace
	err := db.Where("business_area_code = ? AND active = ?", claims.BusinessAreaCode, true).
		First(&ws).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("No workspace for business area, user created without realm",
			zap.String("business_area_code", claims.BusinessAreaCode))
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	var unicef model.Organization
	if err := db.Where("vendor_number = ?", model.UNICEFVendorNumber).
		First(&unicef).Error; err != nil {
		return nil, err
	}

	resolver := realm.NewResolver(db)
	if _, err := resolver.Grant(ctx, user.ID, ws.ID, unicef.ID, model.GroupUNICEFUser); err != nil {
		return nil, err
	}
	log.Info("Provisioned staff user from trusted IdP",
		zap.String("email", user.Email),
		zap.String("workspace", ws.SchemaName))
	return &user, nil
}

func userFromAPIToken(c echo.Context, key string) (*model.User, error) {
	// Key format is "<prefix>.<secret>"; only the bcrypt hash is stored.
	dot := strings.IndexByte(key, '.')
	if dot <= 0 || dot == len(key)-1 {
		prometheus.RecordAuthError("invalid_api_token")
		return nil, errors.New("invalid API token format")
	}
	prefix, secret := key[:dot], key[dot+1:]

	db := database.Shared()
	var token model.APIToken
	if err := db.Where("key_prefix = ? AND active = ?", prefix, true).
		First(&token).Error; err != nil {
		prometheus.RecordAuthError("unknown_api_token")
		return nil, errors.New("invalid API token")
	}
	if bcrypt.CompareHashAndPassword([]byte(token.KeyHash), []byte(secret)) != nil {
		prometheus.RecordAuthError("invalid_api_token")
		return nil, errors.New("invalid API token")
	}

	var user model.User
	if err := db.First(&user, token.UserID).Error; err != nil {
		return nil, errors.New("invalid API token")
	}

	now := time.Now()
	db.Model(&token).Update("last_used_at", &now)
	return &user, nil
}

// CurrentUser returns the authenticated user stored by AuthMiddleware.
func CurrentUser(c echo.Context) (*model.User, bool) {
	user, ok := c.Get("user").(*model.User)
	return user, ok
}
