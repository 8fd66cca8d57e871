package jwtutil

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/unicef/etools-core/pkg/config"
)

var (
	secret     []byte
	trustedIdP string
	expiry     time.Duration
)

// Initialize configures the signing key and trusted identity provider.
func Initialize(cfg *config.JWTConfig) {
	secret = []byte(cfg.SigningKey)
	trustedIdP = cfg.TrustedIdP
	expiry = time.Duration(cfg.ExpirationHours) * time.Hour
}

// UserClaims represents the JWT claims the identity provider issues. The
// business area code selects the user's country-office workspace on first
// sighting.
type UserClaims struct {
	Email            string `json:"email"`
	IdP              string `json:"idp,omitempty"`
	BusinessAreaCode string `json:"business_area_code,omitempty"`
	jwt.RegisteredClaims
}

// FromTrustedIdP reports whether the claims were issued by the configured
// UNICEF identity provider.
func (c *UserClaims) FromTrustedIdP() bool {
	return trustedIdP != "" && c.IdP == trustedIdP
}

// GenerateToken creates a signed JWT for the given identity.
func GenerateToken(email, idp, businessAreaCode string) (string, error) {
	claims := UserClaims{
		Email:            email,
		IdP:              idp,
		BusinessAreaCode: businessAreaCode,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
