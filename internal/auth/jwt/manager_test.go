package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wareflow/wareflow-backend/internal/auth/jwt"
	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/config"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/logger"
	"github.com/wareflow/wareflow-backend/pkg/permissions"
)

func newManager(expiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		Issuer:       "wareflow",
		AccessExpiry: expiry,
	})
}

func operator() *actor.Actor {
	site := int64(7)
	return &actor.Actor{
		ID:          42,
		Username:    "picker1",
		SiteID:      &site,
		Role:        "operator",
		Permissions: []string{permissions.InventoryPick},
	}
}

func TestIssueAndValidate(t *testing.T) {
	m := newManager(time.Hour)

	token, expiry, err := m.Issue(operator())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)

	a, err := claims.Actor()
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, "picker1", a.Username)
	require.NotNil(t, a.SiteID)
	assert.Equal(t, int64(7), *a.SiteID)
	assert.Equal(t, []string{permissions.InventoryPick}, a.Permissions)
}

func TestValidate_Expired(t *testing.T) {
	m := newManager(-time.Minute)

	token, _, err := m.Issue(operator())
	require.NoError(t, err)

	_, err = m.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, _, err := newManager(time.Hour).Issue(operator())
	require.NoError(t, err)

	other := jwt.NewManager(&config.JWTConfig{Secret: "other", Issuer: "wareflow", AccessExpiry: time.Hour})
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "wareflow",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newManager(time.Hour).Validate(token)
	assert.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestClaimsActor_RejectsBadSubject(t *testing.T) {
	c := &jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{Subject: "abc"}}
	_, err := c.Actor()
	assert.ErrorIs(t, err, errors.ErrTokenInvalid)
}

func TestClaimsActor_DropsMalformedPermissions(t *testing.T) {
	c := &jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Subject: "5"},
		Permissions:      []string{"inventory", permissions.InventoryPick, "*"},
	}
	a, err := c.Actor()
	require.NoError(t, err)
	assert.Equal(t, []string{permissions.InventoryPick, "*"}, a.Permissions)
}

func TestMiddleware(t *testing.T) {
	m := newManager(time.Hour)
	token, _, err := m.Issue(operator())
	require.NoError(t, err)

	var seen *actor.Actor
	h := m.Middleware(logger.New("test", "test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actor.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"bearer", "Bearer " + token, http.StatusOK},
		{"jwt scheme", "JWT " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"unknown scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/units", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "picker1", seen.Username)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	h := jwt.RequirePermission(permissions.AuditManage)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(a *actor.Actor) int {
		req := httptest.NewRequest(http.MethodPost, "/audits", nil)
		if a != nil {
			req = req.WithContext(actor.WithActor(req.Context(), a))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(operator()))

	manager := operator()
	manager.Permissions = []string{"audit.*"}
	assert.Equal(t, http.StatusNoContent, serve(manager))
}
