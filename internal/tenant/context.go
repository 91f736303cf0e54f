// context.go defines the immutable scope every aggregate computation runs
// under.  A Context is produced by Guard.Resolve once per request or job and
// is passed by value from then on; nothing looks it up from global state.
package tenant

import "fmt"

// Role is the principal's platform role.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStandard Role = "STANDARD"
	RoleManager  Role = "MANAGER"
)

// ParseRole maps a stored role name onto a Role.  Unknown names map to
// RoleStandard so that an unexpected value never grants admin rights.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleManager:
		return Role(s)
	default:
		return RoleStandard
	}
}

// Binding is the result of asking which hotel a principal is bound to.
// Callers must handle both variants; there is no nil hotel id.
type Binding struct {
	hotelID int64
	bound   bool
}

// Bound returns a binding to hotelID.
func Bound(hotelID int64) Binding { return Binding{hotelID: hotelID, bound: true} }

// Unbound is the binding of a principal without a hotel.
func Unbound() Binding { return Binding{} }

// HotelID returns the bound id and true, or 0 and false when unbound.
func (b Binding) HotelID() (int64, bool) { return b.hotelID, b.bound }

// IsBound reports whether the binding names a hotel.
func (b Binding) IsBound() bool { return b.bound }

func (b Binding) String() string {
	if !b.bound {
		return "unbound"
	}
	return fmt.Sprintf("hotel:%d", b.hotelID)
}

// Context is the resolved scope of one principal.
type Context struct {
	subject string
	role    Role
	binding Binding
}

// NewContext builds a Context.  hotelID may be nil.
func NewContext(subject string, role Role, hotelID *int64) Context {
	b := Unbound()
	if hotelID != nil {
		b = Bound(*hotelID)
	}
	return Context{subject: subject, role: role, binding: b}
}

// SystemContext is the scope scheduled jobs run under.  It carries the
// admin role and no binding; jobs always name the hotel explicitly.
func SystemContext() Context {
	return Context{subject: "system", role: RoleAdmin, binding: Unbound()}
}

func (c Context) Subject() string { return c.subject }
func (c Context) Role() Role       { return c.role }
func (c Context) IsAdmin() bool    { return c.role == RoleAdmin }
func (c Context) Binding() Binding { return c.binding }
