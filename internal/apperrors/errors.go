// Package apperrors defines the sentinel errors callers are allowed to branch
// on. Everything else propagates wrapped with context via fmt.Errorf.
package apperrors

import "errors"

var (
	// ErrOrderNotFound indicates the target order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrLineNotFound indicates an order line id does not exist under the
	// target order.
	ErrLineNotFound = errors.New("order line not found")

	// ErrProposalNotFound indicates the proposal does not exist.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrProposalResolved indicates the proposal already left pending state.
	ErrProposalResolved = errors.New("proposal already resolved")

	// ErrTargetNotFound indicates a reassignment target order does not exist.
	ErrTargetNotFound = errors.New("target order not found")

	// ErrMissingTarget indicates reassign_to_order was requested without a
	// target order id.
	ErrMissingTarget = errors.New("target order id required")

	// ErrInvalidAction indicates an unrecognized action string.
	ErrInvalidAction = errors.New("invalid action")

	// ErrDateHeaderNotFound indicates the sheet has no header row for the
	// order's delivery date. Structural, fatal for the sync.
	ErrDateHeaderNotFound = errors.New("date header not found in sheet")

	// ErrOrderLocked indicates another change application holds the
	// per-order lock. Retryable by the caller.
	ErrOrderLocked = errors.New("order is locked by another operation")
)
