/*
errors.go - Error taxonomy for the leave engine

PURPOSE:
  All errors the engine reports live here. Every operation fails with exactly
  one of the sentinels below (possibly wrapped in a structured error that
  carries details). Callers branch with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Input errors     - InvalidArgument, InvalidDateRange, PastDateNotAllowed
  2. Lookup errors    - NotFound
  3. State errors     - AlreadyDecided, InsufficientBalance
  4. Access errors    - Unauthorized
  5. Storage errors   - StorageFailure (opaque wrapper around the store's error)

PROPAGATION:
  Errors are terminal for the operation. There is no retry inside the engine.
  Anything a store returns that is not already part of this taxonomy is
  wrapped in a StorageError before it leaves the package.

SEE ALSO:
  - api/errors.go: HTTP status mapping
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidDateRange    = errors.New("invalid date range: start date is after end date")
	ErrPastDateNotAllowed  = errors.New("start date is in the past")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyDecided      = errors.New("request already decided")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrStorageFailure      = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID      UserID
	LeaveTypeID LeaveTypeID
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s, shortfall %s",
		e.Available, e.Requested, e.Requested.Sub(e.Available))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// AlreadyDecidedError reports a transition attempted on a terminal request.
type AlreadyDecidedError struct {
	RequestID RequestID
	Status    Status
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("request %s already decided: %s", e.RequestID, e.Status)
}

func (e *AlreadyDecidedError) Unwrap() error { return ErrAlreadyDecided }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "user", "leave type", "request", "notification"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps a persistence failure. It matches both ErrStorageFailure
// and the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageFailure, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func unauthorized(action string) error {
	return fmt.Errorf("%w: %s requires admin role", ErrUnauthorized, action)
}

// storageErr passes taxonomy errors through and wraps everything else.
func storageErr(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrPastDateNotAllowed) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrStorageFailure)
}

// IsClientError returns true if the error is due to the caller's input or the
// request's state rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrPastDateNotAllowed) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
