package domain

import "errors"

// Error kinds shared by all engine services. Services wrap these with
// fmt.Errorf("...: %w", Err...) so handlers can map them with errors.Is.
var (
	ErrValidation         = errors.New("Invalid input")
	ErrNotFound           = errors.New("Not found")
	ErrForbidden          = errors.New("Forbidden")
	ErrTurnViolation      = errors.New("Not your turn to respond on this thread")
	ErrThreadClosed       = errors.New("Negotiation thread is closed")
	ErrOrderClosed        = errors.New("Purchase order is closed")
	ErrAlreadySigned      = errors.New("This side has already signed")
	ErrConflict           = errors.New("Lost a concurrent update, re-fetch and retry")
	ErrAllocationConflict = errors.New("Listing is no longer available")
	ErrUniqueness         = errors.New("Identifier already in use")
)
