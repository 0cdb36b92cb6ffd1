package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shelfmark/shelfmark/internal/shared"
)

// Middleware resolves the session cookie into a request identity and slides
// the session expiry. It runs on every request; RequireAuth composes on top
// for protected routes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Secure  bool
}

// Authenticate walks the per-request states: no cookie token means anonymous;
// a token that fails to resolve clears the stale client cookie and falls back
// to anonymous; a valid token attaches the identity and renews the session
// before the handler runs.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := shared.SessionTokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.Service.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				m.Logger.Error("resolve session", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, shared.ClearSessionCookie(m.Secure))
			next.ServeHTTP(w, r)
			return
		}

		if err := m.Service.Renew(r.Context(), token); err != nil {
			m.Logger.Error("renew session", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := shared.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth gates protected routes: anonymous requests are redirected to
// the sign-in page instead of reaching the handler. Must be mounted after
// Authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.IdentityFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
