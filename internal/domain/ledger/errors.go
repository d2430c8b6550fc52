package ledger

import "errors"

var (
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrDuplicateEntry is returned by Create when the provider payment
	// reference already exists. The event reconciler treats it as a benign
	// idempotent no-op.
	ErrDuplicateEntry = errors.New("ledger entry already exists for provider payment reference")
	// ErrStaleEntry is returned when an optimistic update lost a concurrent race.
	ErrStaleEntry           = errors.New("ledger entry was modified concurrently")
	ErrInvalidOutcomeChange = errors.New("invalid outcome change")
	ErrOverRefund           = errors.New("refund exceeds remaining balance")
)
