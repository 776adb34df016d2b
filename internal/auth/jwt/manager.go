package jwt

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/config"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

// Claims represents the JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Username    string   `json:"username"`
	SiteID      *int64   `json:"site_id,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Actor converts verified claims into the caller of a request.
func (c *Claims) Actor() (*actor.Actor, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id < 1 {
		return nil, errors.TokenInvalid()
	}

	perms := make([]string, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		if permissions.IsValidPermission(p) {
			perms = append(perms, p)
		}
	}

	return &actor.Actor{
		ID:          id,
		Username:    c.Username,
		SiteID:      c.SiteID,
		Role:        c.Role,
		Permissions: perms,
	}, nil
}

// Manager handles JWT operations
type Manager struct {
	config *config.JWTConfig
}

// NewManager creates a new JWT manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg}
}

// Issue signs an access token for a. Tokens are normally minted by the
// identity service; the warehouse only issues them for tooling and tests.
func (m *Manager) Issue(a *actor.Actor) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(m.config.AccessExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   strconv.FormatInt(a.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Username:    a.Username,
		SiteID:      a.SiteID,
		Role:        a.Role,
		Permissions: a.Permissions,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// Validate validates an access token and returns the claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(m.config.Secret), nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}
	return claims, nil
}
