package errors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// toGrant returns err as a GrantError, wrapping foreign errors under the
// internal code so every formatter below has the full structure to work
// with.
func toGrant(err error) *GrantError {
	if ge, ok := asGrant(err); ok {
		return ge
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI renders an error for terminal output: the message, a hint
// when one is attached, and the code for bug reports.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ge := toGrant(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", ge.Message)
	if ge.Suggestion != "" {
		fmt.Fprintf(&b, "  Hint: %s\n", ge.Suggestion)
	}
	fmt.Fprintf(&b, "  Code: %s\n", ge.Code)
	return b.String()
}

// wireError is the JSON shape shared by machine consumers.
type wireError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON marshals an error for machine consumption.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	ge := toGrant(err)

	we := wireError{
		Code:       ge.Code,
		Message:    ge.Message,
		Category:   string(ge.Category),
		Severity:   string(ge.Severity),
		Details:    ge.Details,
		Suggestion: ge.Suggestion,
		Retryable:  ge.Retryable,
	}
	if ge.Cause != nil {
		we.Cause = ge.Cause.Error()
	}
	return json.Marshal(we)
}

// FormatForLog flattens an error into alternating key-value pairs for
// slog: slog.Error("ingest failed", FormatForLog(err)...). Detail keys
// are emitted in sorted order so log lines stay diffable.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}

	ge, ok := asGrant(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", ge.Code,
		"message", ge.Message,
		"category", string(ge.Category),
		"severity", string(ge.Severity),
		"retryable", ge.Retryable,
	}
	if ge.Cause != nil {
		attrs = append(attrs, "cause", ge.Cause.Error())
	}
	if ge.Suggestion != "" {
		attrs = append(attrs, "suggestion", ge.Suggestion)
	}

	keys := make([]string, 0, len(ge.Details))
	for k := range ge.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, "detail_"+k, ge.Details[k])
	}
	return attrs
}
