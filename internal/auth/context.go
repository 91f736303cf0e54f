// internal/auth/context.go
//
// Ambient principal carried on a context.Context.
//
// Context
// -------
// Credential verification happens upstream (API gateway, session layer).
// By the time a request or job reaches this service the verified identity
// is attached to the context in one of two shapes:
//
//   - a resolved principal, which already carries the full User record, or
//   - an unresolved principal, which carries only a user name and must be
//     materialised through a directory lookup (see tenant.Guard).
//
// Nothing in this package authorises anything.  tenant.Guard reads the
// principal exactly once per request or job and turns it into an immutable
// tenant.Context that is threaded explicitly from then on.
//
// Usage
// -----
//
//	ctx = auth.WithPrincipal(ctx, auth.Resolved(user))
//	ctx = auth.WithPrincipal(ctx, auth.Unresolved("front-desk-7"))
//
//	p, ok := auth.PrincipalFrom(ctx)
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package auth

import "context"

// User is a fully materialised identity.  HotelID is nil when the user has
// no tenant binding.
type User struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
	Role     string `db:"role"`
	HotelID  *int64 `db:"hotel_id"`
	Enabled  bool   `db:"enabled"`
}

// Principal is whatever the upstream authenticator attached.  The zero
// value is not a valid principal; use Resolved or Unresolved.
type Principal struct {
	user *User
	name string
}

// Resolved wraps a full user record.
func Resolved(u User) Principal {
	return Principal{user: &u, name: u.Username}
}

// Unresolved wraps a bare user name.
func Unresolved(name string) Principal {
	return Principal{name: name}
}

// User returns the record for a resolved principal.
func (p Principal) User() (User, bool) {
	if p.user == nil {
		return User{}, false
	}
	return *p.user, true
}

// Name is the user name in both shapes.
func (p Principal) Name() string { return p.name }

// principalKey is unexported to avoid context-key collisions.
type principalKey struct{}

// WithPrincipal returns a new context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal from ctx.  It returns false when
// none is set or when an unresolved principal has an empty name.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok {
		return Principal{}, false
	}
	if p.user == nil && p.name == "" {
		return Principal{}, false
	}
	return p, true
}
