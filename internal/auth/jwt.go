// Package auth issues and validates operator tokens. When a signing key is
// configured, the mutating weather endpoints require one as a bearer token.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token defaults.
const (
	// DefaultTokenExpiry is how long an operator token is valid.
	DefaultTokenExpiry = 30 * 24 * time.Hour

	// DefaultIssuer and DefaultAudience are used when the config leaves them empty.
	DefaultIssuer   = "morningdash"
	DefaultAudience = "morningdash-api"

	// ScopeWeatherWrite allows triggering fetches and changing the location.
	ScopeWeatherWrite = "weather:write"

	// ScopeOpsRead allows reading the detailed system status.
	ScopeOpsRead = "ops:read"
)

// Token errors. Validation failures wrap ErrInvalidAccessToken.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingScope       = errors.New("token lacks required scope")
	ErrEmptySigningKey    = errors.New("signing key is empty")
)

// JWTClaims are the claims of an operator token. Subject names the
// operator (a kiosk, a person, a scheduler).
type JWTClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scp"`
}

// HasScope reports whether the claims grant scope.
func (c *JWTClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// JWTConfig configures a JWTService. SigningKey is the HS256 secret; the
// other fields default.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	Now        func() time.Time
}

// JWTService signs and validates operator tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// NewJWTService returns ErrEmptySigningKey without a key.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrEmptySigningKey
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		now:        cfg.Now,
	}, nil
}

// GenerateAccessToken signs a token for operator carrying scopes. A
// non-positive ttl means DefaultTokenExpiry.
func (s *JWTService) GenerateAccessToken(operator string, ttl time.Duration, scopes ...string) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}
	issued := s.now()
	expires := issued.Add(ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   operator,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Scopes: scopes,
	}).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing operator token: %w", err)
	}
	return signed, expires, nil
}

// ValidateAccessToken checks signature, issuer, audience and expiry and
// returns the claims. Expiry is reported as ErrAccessTokenExpired.
func (s *JWTService) ValidateAccessToken(raw string) (*JWTClaims, error) {
	var claims JWTClaims
	_, err := jwt.ParseWithClaims(raw, &claims, s.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	return &claims, nil
}

func (s *JWTService) key(*jwt.Token) (any, error) {
	return s.signingKey, nil
}
