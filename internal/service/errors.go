package service

import (
	"errors"
	"fmt"

	"familybudget/internal/database"
)

// Error kinds. Every error a service returns to a caller wraps exactly one
// of these, so transports can map them with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
)

var (
	ErrNoFamily            = fmt.Errorf("%w: you are not a member of any family", ErrNotFound)
	ErrNotOwner            = fmt.Errorf("%w: only the family owner can do this", ErrForbidden)
	ErrAlreadyInFamily     = fmt.Errorf("%w: user already belongs to a family", ErrConflict)
	ErrMemberNotFound      = fmt.Errorf("%w: member not found", ErrNotFound)
	ErrSelfTarget          = fmt.Errorf("%w: cannot target your own membership", ErrInvalidArgument)
	ErrOwnerCannotLeave    = fmt.Errorf("%w: the owner must transfer ownership or delete the family before leaving", ErrForbidden)
	ErrInviteNotFound      = fmt.Errorf("%w: invite code not found", ErrNotFound)
	ErrInviteUsed          = fmt.Errorf("%w: invite code has already been used", ErrConflict)
	ErrUsernameTaken       = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	ErrInvalidToken        = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrCategoryNotFound    = fmt.Errorf("%w: category not found", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction not found", ErrNotFound)
	ErrNotCreator          = fmt.Errorf("%w: only the creator can modify this", ErrForbidden)
	ErrMembershipRequired  = fmt.Errorf("%w: you must belong to a family to do this", ErrForbidden)
)

// invalid wraps a validation failure so it carries both the kind and the
// field-level detail
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

// conflictOnUnique turns a driver unique-constraint failure into conflict,
// leaving other errors untouched
func conflictOnUnique(d database.Dialect, err error, conflict error) error {
	if err != nil && d.IsUniqueViolation(err) {
		return conflict
	}
	return err
}
