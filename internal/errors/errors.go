package errors

import (
	"errors"
	"fmt"
)

// GrantError carries the context a failure needs downstream: a stable
// code for the MCP error mapping, a category and severity for the
// pipeline's degrade-or-abort decision, and an optional suggestion
// surfaced to the user.
type GrantError struct {
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

// New builds a GrantError for the given code. Category, severity and the
// retryable flag all derive from the code, so call sites state only what
// happened.
func New(code string, message string, cause error) *GrantError {
	return &GrantError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap lifts an existing error into a GrantError, reusing its message.
// Wrapping nil yields nil.
func Wrap(code string, err error) *GrantError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ValidationError is shorthand for the common invalid-input case.
func ValidationError(message string, cause error) *GrantError {
	return New(ErrCodeInvalidInput, message, cause)
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to the errors.Is/As chain.
func (e *GrantError) Unwrap() error {
	return e.Cause
}

// Is matches two GrantErrors by code alone, so call sites can test for a
// condition with errors.Is regardless of message or details.
func (e *GrantError) Is(target error) bool {
	t, ok := target.(*GrantError)
	return ok && e.Code == t.Code
}

// WithDetail attaches a key-value pair and returns the error for chaining.
func (e *GrantError) WithDetail(key, value string) *GrantError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches an actionable next step for the user.
func (e *GrantError) WithSuggestion(suggestion string) *GrantError {
	e.Suggestion = suggestion
	return e
}

// asGrant digs a *GrantError out of err's chain.
func asGrant(err error) (*GrantError, bool) {
	var ge *GrantError
	ok := errors.As(err, &ge)
	return ge, ok
}

// IsRetryable reports whether err, anywhere in its chain, is a
// GrantError marked retryable.
func IsRetryable(err error) bool {
	ge, ok := asGrant(err)
	return ok && ge.Retryable
}

// IsFatal reports whether err carries fatal severity. Fatal errors abort
// the request instead of degrading it.
func IsFatal(err error) bool {
	ge, ok := asGrant(err)
	return ok && ge.Severity == SeverityFatal
}

// GetCode returns err's error code, or "" for non-GrantErrors.
func GetCode(err error) string {
	if ge, ok := asGrant(err); ok {
		return ge.Code
	}
	return ""
}

// GetCategory returns err's category, or "" for non-GrantErrors.
func GetCategory(err error) Category {
	if ge, ok := asGrant(err); ok {
		return ge.Category
	}
	return ""
}
