// internal/tenant/guard.go
//
// TenantAccessGuard.
//
// Context
// -------
// The guard turns the ambient principal (internal/auth) into a tenant
// Context and answers every "may this scope touch hotel N" question.
// Principal resolution has three states:
//
//   - no principal            → ErrUnauthenticated,
//   - resolved principal      → used as-is,
//   - unresolved (bare name)  → Directory.UserByName.
//
// Concurrent lookups for the same name collapse into one directory query
// through singleflight, the same barrier the hotel catalog uses for cold
// loads.  A failed lookup is an UnresolvedPrincipalError; the guard never
// returns a partial identity.
//
// Notes
// -----
// • Authorisation failures always propagate; they are never downgraded to
//   an empty result.
// • Oxford commas, two spaces after periods.
package tenant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/hotelstats/internal/auth"
)

// Directory materialises a full user record from a user name.
type Directory interface {
	UserByName(ctx context.Context, name string) (auth.User, error)
}

// LookupTimeout bounds one shared directory lookup.
const LookupTimeout = 5 * time.Second

// Guard resolves principals and enforces hotel scope.  Safe for concurrent
// use.  A nil Directory makes every unresolved principal fail.
type Guard struct {
	dir Directory
	sfg singleflight.Group
	log *zap.SugaredLogger
}

// NewGuard constructs a Guard.
func NewGuard(dir Directory, log *zap.SugaredLogger) *Guard {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Guard{dir: dir, log: log}
}

// CurrentUser returns the full user behind the ambient principal.
func (g *Guard) CurrentUser(ctx context.Context) (auth.User, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return auth.User{}, ErrUnauthenticated
	}
	if u, ok := p.User(); ok {
		return u, nil
	}
	return g.lookup(ctx, p.Name())
}

func (g *Guard) lookup(ctx context.Context, name string) (auth.User, error) {
	if g.dir == nil {
		return auth.User{}, &UnresolvedPrincipalError{
			Name: name,
			Err:  errors.New("no user directory configured"),
		}
	}
	v, err, _ := g.sfg.Do(name, func() (any, error) {
		// Shared by every waiter, so the first caller's cancellation
		// must not fail the rest.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LookupTimeout)
		defer cancel()
		return g.dir.UserByName(lctx, name)
	})
	if err != nil {
		g.log.Warnw("principal lookup failed", "user", name, "err", err)
		return auth.User{}, &UnresolvedPrincipalError{Name: name, Err: err}
	}
	u := v.(auth.User)
	if !u.Enabled {
		return auth.User{}, &UnresolvedPrincipalError{Name: name, Err: ErrUserDisabled}
	}
	return u, nil
}

// Resolve builds the tenant Context for the ambient principal.
func (g *Guard) Resolve(ctx context.Context) (Context, error) {
	u, err := g.CurrentUser(ctx)
	if err != nil {
		return Context{}, err
	}
	return NewContext(u.Username, ParseRole(u.Role), u.HotelID), nil
}

// CurrentHotelID reports the hotel tc is bound to.  An admin without a
// binding gets Unbound and the caller picks a hotel; any other role without
// a binding is refused.
func (g *Guard) CurrentHotelID(tc Context) (Binding, error) {
	b := tc.Binding()
	if b.IsBound() {
		return b, nil
	}
	if tc.IsAdmin() {
		g.log.Warnw("admin principal has no hotel binding", "subject", tc.Subject())
		return Unbound(), nil
	}
	return Binding{}, &AccessDeniedError{
		Subject: tc.Subject(),
		Role:    tc.Role(),
		Reason:  "no hotel binding",
	}
}

// CanAccessHotel reports whether tc may act on hotelID.
func (g *Guard) CanAccessHotel(tc Context, hotelID int64) bool {
	if tc.IsAdmin() {
		return true
	}
	id, ok := tc.Binding().HotelID()
	return ok && id == hotelID
}

// ValidateHotelAccess fails exactly when CanAccessHotel is false.
func (g *Guard) ValidateHotelAccess(tc Context, hotelID int64) error {
	if g.CanAccessHotel(tc, hotelID) {
		return nil
	}
	return &AccessDeniedError{
		Subject: tc.Subject(),
		Role:    tc.Role(),
		HotelID: hotelID,
		Reason:  "hotel outside principal scope",
	}
}
