package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no usable principal is attached.
	ErrUnauthenticated = errors.New("tenant: unauthenticated")

	// ErrAccessDenied means the principal resolved but may not act on the
	// requested hotel scope.
	ErrAccessDenied = errors.New("tenant: access denied")

	// ErrUnresolvedPrincipal means a bare user name could not be turned
	// into a full identity.
	ErrUnresolvedPrincipal = errors.New("tenant: unresolved principal")

	// ErrUserNotFound is returned by a Directory for unknown names.
	ErrUserNotFound = errors.New("tenant: user not found")

	// ErrUserDisabled is returned by a Directory for disabled accounts.
	ErrUserDisabled = errors.New("tenant: user disabled")
)

// AccessDeniedError carries the subject and the hotel that was refused.
// HotelID is zero when the refusal was about a missing binding.
type AccessDeniedError struct {
	Subject string
	Role    Role
	HotelID int64
	Reason  string
}

func (e *AccessDeniedError) Error() string {
	if e.HotelID == 0 {
		return fmt.Sprintf("tenant: access denied for %s (%s): %s", e.Subject, e.Role, e.Reason)
	}
	return fmt.Sprintf("tenant: access denied for %s (%s) to hotel %d: %s",
		e.Subject, e.Role, e.HotelID, e.Reason)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

// UnresolvedPrincipalError wraps the directory failure behind an
// unresolved principal.
type UnresolvedPrincipalError struct {
	Name string
	Err  error
}

func (e *UnresolvedPrincipalError) Error() string {
	return fmt.Sprintf("tenant: cannot resolve principal %q: %v", e.Name, e.Err)
}

func (e *UnresolvedPrincipalError) Unwrap() error { return e.Err }

func (e *UnresolvedPrincipalError) Is(target error) bool { return target == ErrUnresolvedPrincipal }
