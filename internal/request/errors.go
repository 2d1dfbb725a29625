package request

import "errors"

var (
	// ErrInvalidInput rejects malformed input before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition means the status change is not permitted from the
	// request's current status.
	ErrInvalidTransition = errors.New("invalid request status transition")

	// ErrConcurrencyConflict means a competing writer won the race; the caller
	// should re-read and retry.
	ErrConcurrencyConflict = errors.New("concurrent update detected, retry")

	ErrRequestNotFound  = errors.New("service request not found")
	ErrDocumentNotFound = errors.New("document not found")
)
