// internal/middleware/principal.go
//
// Principal attachment and admin gate for the ops router.
//
// Context
// -------
// Credentials are verified by the proxy in front of the ops listener; it
// forwards the verified user name in a trusted header.  Principal turns
// that header into an unresolved auth.Principal, and RequireAdmin asks the
// tenant guard to resolve it (a directory lookup) before letting the
// request through.
//
//	no header / unknown user  → 401
//	resolved, not ADMIN       → 403
//	directory failure         → 503
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/hotelstats/internal/auth"
	"github.com/yanizio/hotelstats/internal/tenant"
)

// UserHeader carries the verified user name from the proxy.
const UserHeader = "X-Authenticated-User"

// Resolver turns the ambient principal into a tenant.Context.
// *tenant.Guard satisfies it.
type Resolver interface {
	Resolve(ctx context.Context) (tenant.Context, error)
}

// Principal attaches auth.Unresolved(<UserHeader>) when the header is set.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := r.Header.Get(UserHeader); name != "" {
			r = r.WithContext(auth.WithPrincipal(r.Context(), auth.Unresolved(name)))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets only ADMIN principals through.
func RequireAdmin(g Resolver, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, err := g.Resolve(r.Context())
			switch {
			case err == nil && tc.IsAdmin():
				next.ServeHTTP(w, r)
				return
			case err == nil:
				log.Warnw("ops request refused", "subject", tc.Subject(), "role", string(tc.Role()), "path", r.URL.Path)
				status(w, http.StatusForbidden)
			case errors.Is(err, tenant.ErrUnauthenticated),
				errors.Is(err, tenant.ErrUserNotFound),
				errors.Is(err, tenant.ErrUserDisabled):
				status(w, http.StatusUnauthorized)
			default:
				log.Errorw("principal resolution failed", "path", r.URL.Path, "err", err)
				status(w, http.StatusServiceUnavailable)
			}
		})
	}
}

func status(w http.ResponseWriter, code int) {
	http.Error(w, http.StatusText(code), code)
}
