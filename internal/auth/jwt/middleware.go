package jwt

import (
	"net/http"
	"strings"

	"github.com/wareflow/wareflow-backend/pkg/actor"
	"github.com/wareflow/wareflow-backend/pkg/errors"
	"github.com/wareflow/wareflow-backend/pkg/httputil"
	"github.com/wareflow/wareflow-backend/pkg/logger"
)

// Accepted authorization schemes.
var schemes = []string{"Bearer ", "JWT "}

// Middleware validates the access token of every request and attaches the
// caller to the request context.
func (m *Manager) Middleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearer(r.Header.Get("Authorization"))
			if err != nil {
				httputil.Error(w, err)
				return
			}

			claims, err := m.Validate(raw)
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.Error(w, err)
				return
			}

			a, err := claims.Actor()
			if err != nil {
				httputil.Error(w, err)
				return
			}

			next.ServeHTTP(w, httputil.WithActor(r, a))
		})
	}
}

func bearer(header string) (string, error) {
	if header == "" {
		return "", errors.Unauthorized("missing authorization header")
	}
	for _, scheme := range schemes {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			return strings.TrimSpace(header[len(scheme):]), nil
		}
	}
	return "", errors.Unauthorized("invalid authorization header format")
}

// RequirePermission rejects callers that lack permission.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := actor.FromContext(r.Context())
			if a == nil {
				httputil.Error(w, errors.Unauthorized("authentication required"))
				return
			}
			if !a.Can(permission) {
				httputil.Error(w, errors.Forbidden("missing permission "+permission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
