/*
errors.go - Centralized error taxonomy for the rewards core

ERROR CATEGORIES:
  1. Business rule violations - insufficient balance, double check-in,
     illegal workflow transitions. Surfaced to the caller, never retried.
  2. Concurrency - optimistic-lock conflicts. Retried a bounded number of
     times inside the ledger, then surfaced as transient.
  3. Validation - malformed or out-of-range input. Local, surfaced verbatim.
  4. Storage - durable-store failures. Surfaced as internal errors; the
     caller retries the whole request if it wants to.

USAGE:
  Services wrap sentinels with structured errors carrying context:

    if errors.Is(err, domain.ErrInsufficientBalance) { ... }

SEE ALSO:
  - store.go: which operations return which sentinels
*/
package domain

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a debit would take the
	// account balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyCheckedIn is returned when the account already checked in
	// on the same calendar day.
	ErrAlreadyCheckedIn = errors.New("already checked in today")

	// ErrInvalidTransition is returned when a workflow operation is called
	// from a state it is not legal in. It indicates a caller ordering bug.
	ErrInvalidTransition = errors.New("invalid submission transition")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSubmissionNotFound is returned when a referenced submission doesn't exist.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrAccountExists is returned when creating an account with an email
	// that is already registered.
	ErrAccountExists = errors.New("account already exists")

	// ErrConcurrencyConflict is returned when an optimistic version check
	// failed. The ledger retries internally; callers see this only after
	// the retry budget is exhausted.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// ErrVoucherCodeTaken is returned when a generated voucher code
	// collided with an existing one. The issuer redraws on this error.
	ErrVoucherCodeTaken = errors.New("voucher code already reserved")

	// ErrCodeSpaceExhausted is returned when voucher code generation ran
	// out of redraw attempts. Practically never observed at 12 characters.
	ErrCodeSpaceExhausted = errors.New("voucher code space exhausted")

	// ErrAccountInactive is returned for operations on a deactivated account.
	ErrAccountInactive = errors.New("account is deactivated")

	// ErrValidation is the base of all input validation failures.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports how short the account balance is.
type InsufficientBalanceError struct {
	AccountID string
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: account %s has %d points, needs %d",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// AlreadyCheckedInError reports the prior check-in that blocks today's.
type AlreadyCheckedInError struct {
	AccountID   string
	LastCheckin time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("account %s already checked in on %s",
		e.AccountID, e.LastCheckin.Format("2006-01-02"))
}

func (e *AlreadyCheckedInError) Unwrap() error { return ErrAlreadyCheckedIn }

// InvalidTransitionError reports the illegal workflow move.
type InvalidTransitionError struct {
	SubmissionID string
	From         SubmissionStatus
	To           SubmissionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("submission %s: cannot transition %s -> %s",
		e.SubmissionID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports one malformed or out-of-range input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the caller's fault and safe
// to surface verbatim.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAlreadyCheckedIn) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the whole request might succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrSubmissionNotFound)
}
