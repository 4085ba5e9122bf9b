package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bartosz121/minerva/internal/accesstoken"
	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/platform/httpx"
)

// GateConfig aggregates the authentication gate dependencies.
type GateConfig struct {
	Logger     *slog.Logger
	HeaderName string
	CookieName string
	TokenTTL   time.Duration
}

// Gate resolves the request identity from a bearer token carried in the
// configured header, falling back to the configured cookie. A missing,
// invalid or expired token leaves the request anonymous; routes that need
// authentication enforce it with RequireAuthenticated. Validation runs
// against the request-scoped session, so the lookup shares the request
// transaction.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := r.Header.Get(cfg.HeaderName)
			if value == "" {
				if cookie, err := r.Cookie(cfg.CookieName); err == nil {
					value = cookie.Value
				}
			}
			if value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess := db.SessionFromContext(r.Context())
			if sess == nil {
				cfg.Logger.Error("session missing in authentication gate")
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}

			tokens := accesstoken.NewService(accesstoken.NewRepository(sess), cfg.TokenTTL)
			token, err := tokens.Validate(r.Context(), value)
			if err != nil {
				if errors.Is(err, accesstoken.ErrInvalidAccessToken) || errors.Is(err, accesstoken.ErrExpiredAccessToken) {
					next.ServeHTTP(w, r)
					return
				}
				cfg.Logger.Error("validate access token", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}

			identity := &Identity{User: token.User, AccessToken: token}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAuthenticated rejects anonymous requests with 403.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
