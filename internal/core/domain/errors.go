package domain

import "errors"

// Request-boundary error taxonomy. Callers wrap these with detail via
// fmt.Errorf("%w: ...") so the message can be shown to the actor while the
// category stays matchable with errors.Is.
var (
	ErrValidation      = errors.New("invalid request")
	ErrPermission      = errors.New("insufficient permission")
	ErrNotFound        = errors.New("not found")
	ErrContentRejected = errors.New("content rejected")
	ErrPersistence     = errors.New("failed to persist change")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrNotEligible     = errors.New("not eligible")
	ErrNothingToDo     = errors.New("nothing to do")
)
