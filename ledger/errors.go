package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName            = errors.New("name cannot be empty")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidPaymentStatus = errors.New("payment status must be paid or unpaid")
	ErrMissingContractor    = errors.New("contractor is required")
	ErrAlreadyPaid          = errors.New("expense is already paid")
	ErrRefundExceedsAmount  = errors.New("refund exceeds the outstanding advance")
	ErrInsufficientBalance  = errors.New("insufficient project balance")
	ErrNotFound             = errors.New("record not found")

	ErrNoActiveProject    = errors.New("no active project")
	ErrPersistenceFailure = errors.New("failed to persist balance")
	ErrIntegrityViolation = errors.New("record violates integrity constraint")
	ErrPartialSnapshot    = errors.New("balance snapshot is partial")
	ErrStreamRead         = errors.New("failed to read transaction stream")
)

// StreamReadError reports a transaction stream that could not be read while
// computing a snapshot.
type StreamReadError struct {
	Stream Stream
	Err    error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("reading %s stream: %v", e.Stream, e.Err)
}

func (e *StreamReadError) Unwrap() []error {
	return []error{ErrStreamRead, e.Err}
}
