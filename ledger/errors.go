/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Collaborating packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Stock errors - Balance invariant violations (insufficient, reversal)
  2. Reference errors - Unknown items or owners
  3. Concurrency errors - Optimistic retry budget exhausted
  4. Contract errors - Programming mistakes, not user-facing conditions

USAGE:
  if errors.Is(err, ledger.ErrInsufficientStock) {
      // ask the caller to lower the quantity or pick another source
  }

SEE ALSO:
  - engine.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a requested decrement exceeds the
	// current balance at commit time. Recoverable: reduce the quantity or
	// pick another source.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReversalConflict is returned when an edit or delete cannot safely
	// revert because the destination balance has already been spent further
	// down the chain. Requires manual reconciliation; never silently ignored.
	ErrReversalConflict = errors.New("reversal conflict")

	// ErrConflict is returned when the optimistic-concurrency retry budget is
	// exhausted. The caller should retry the whole operation.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrInvalidReference is returned when a referenced item or owner does
	// not exist. Rejected before any balance mutation is attempted.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrContractViolation marks a programming error: both refs nil on a
	// transfer, mismatched fan-out totals, unknown tier pairs.
	ErrContractViolation = errors.New("contract violation")

	// ErrTransactionNotFound is returned when an edit or delete targets an
	// id that is not in the log.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports a balance shortage at commit time.
type InsufficientStockError struct {
	Ref       Ref
	ItemID    ItemID
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock at %s for item %s: available %d, requested %d",
		e.Ref, e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ReversalConflictError reports that undoing a transaction would force a
// balance negative — the credited stock has already moved on.
type ReversalConflictError struct {
	TransactionID TransactionID
	Ref           Ref
	ItemID        ItemID
	Available     int64
	Required      int64
}

func (e *ReversalConflictError) Error() string {
	return fmt.Sprintf("cannot revert transaction %s: %s holds %d of item %s but %d must be debited back",
		e.TransactionID, e.Ref, e.Available, e.ItemID, e.Required)
}

func (e *ReversalConflictError) Unwrap() error { return ErrReversalConflict }

// InvalidReferenceError names the missing item or owner.
type InvalidReferenceError struct {
	Kind string // "item" or "owner"
	ID   string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid reference: %s %q does not exist", e.Kind, e.ID)
}

func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReference }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the whole operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrReversalConflict) ||
		errors.Is(err, ErrInvalidReference)
}

// IsNotFound returns true if the error indicates a missing transaction.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}
