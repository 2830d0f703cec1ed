// Package apperror defines the typed failures returned by the engine's
// operations. Handlers map Kind to a transport status.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation              Kind = "validation"
	KindConflict                Kind = "conflict"
	KindNotFound                Kind = "not_found"
	KindPersistence             Kind = "persistence"
	KindReconciliationPermanent Kind = "reconciliation_permanent"
)

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidState     = "INVALID_STATE"
	CodeDispatchInFlight = "DISPATCH_IN_FLIGHT"
	CodeNotFound         = "NOT_FOUND"
	CodePersistence      = "PERSISTENCE_ERROR"
	CodeUnknownAction    = "UNKNOWN_ACTION"
	CodeMissingKey       = "MISSING_IDEMPOTENCY_KEY"
	CodeMissingPayload   = "MISSING_PAYLOAD"
)

// Error is the engine's typed failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Details carries every accumulated message for validation failures.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and, when set on the target, Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func Validation(details []string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidationFailed, Message: "validation failed", Details: append([]string(nil), details...)}
}

func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistence, Message: op, Err: err}
}

func ReconciliationPermanent(code, message string, cause error) *Error {
	return &Error{Kind: KindReconciliationPermanent, Code: code, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool  { return KindOf(err) == KindValidation }
func IsConflict(err error) bool    { return KindOf(err) == KindConflict }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }
