package domain

import "fmt"

// ErrorKind groups engine errors by how a caller should react to them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindPolicy     ErrorKind = "policy"
	KindState      ErrorKind = "state"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
)

// Error is a business error surfaced verbatim to API clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Business reports that e is an expected rejection rather than a fault.
func (e *Error) Business() bool { return true }

var (
	ErrValidation          = &Error{Kind: KindValidation, Code: "VALIDATION", Message: "request is missing or has malformed fields"}
	ErrNotesRequired       = &Error{Kind: KindValidation, Code: "NOTES_REQUIRED", Message: "reviewer notes are required for this action"}
	ErrItemUnavailable     = &Error{Kind: KindPolicy, Code: "ITEM_UNAVAILABLE", Message: "item is not available for checkout"}
	ErrPatronNotActive     = &Error{Kind: KindPolicy, Code: "PATRON_NOT_ACTIVE", Message: "patron account is not active"}
	ErrBorrowLimitReached  = &Error{Kind: KindPolicy, Code: "BORROW_LIMIT_REACHED", Message: "patron has reached the plan borrowing limit"}
	ErrRenewalBlocked      = &Error{Kind: KindPolicy, Code: "RENEWAL_BLOCKED", Message: "item has a pending hold by another patron"}
	ErrRenewalLimitReached = &Error{Kind: KindPolicy, Code: "RENEWAL_LIMIT_REACHED", Message: "borrowing has reached the plan renewal limit"}
	ErrBorrowingNotActive  = &Error{Kind: KindState, Code: "BORROWING_NOT_ACTIVE", Message: "borrowing is not active"}
	ErrInvalidTransition   = &Error{Kind: KindState, Code: "INVALID_TRANSITION", Message: "transition is not allowed from the current status"}
	ErrConflict            = &Error{Kind: KindConflict, Code: "CONFLICT", Message: "record was modified concurrently, re-read and retry"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "record not found"}
	ErrForbidden           = &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: "caller may not act on this record"}
)

// Invalid wraps ErrValidation with a field-specific reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the entity that was missing.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}
