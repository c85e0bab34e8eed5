package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"storage fatal", ErrCodeStoreUnavailable, CategoryStorage, SeverityFatal, false},
		{"index fatal", ErrCodeCorruptIndex, CategoryStorage, SeverityFatal, false},
		{"storage plain", ErrCodeQueryFailed, CategoryStorage, SeverityError, false},
		{"embed timeout", ErrCodeEmbedTimeout, CategoryNetwork, SeverityWarning, true},
		{"embed down", ErrCodeEmbedUnavailable, CategoryNetwork, SeverityWarning, true},
		{"embed rejected", ErrCodeEmbedRejected, CategoryNetwork, SeverityError, false},
		{"validation", ErrCodeInvalidFilter, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestNew_MalformedCodeClassifiesInternal(t *testing.T) {
	assert.Equal(t, CategoryInternal, New("ERR", "short", nil).Category)
	assert.Equal(t, CategoryInternal, New("ERR_9XX_WEIRD", "odd digit", nil).Category)
}

func TestGrantError_ErrorIncludesCode(t *testing.T) {
	err := New(ErrCodeInvalidFilter, "state must be a two-letter code", nil)

	assert.Equal(t, "[ERR_402_INVALID_FILTER] state must be a two-letter code", err.Error())
}

func TestGrantError_UnwrapYieldsCause(t *testing.T) {
	cause := errors.New("sqlite: database is locked")
	err := New(ErrCodeQueryFailed, "award lookup failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestGrantError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeEmbedTimeout, "first request", nil)
	b := New(ErrCodeEmbedTimeout, "different message", errors.New("different cause"))
	c := New(ErrCodeEmbedRejected, "first request", nil)

	assert.True(t, errors.Is(a, b), "same code should match despite message")
	assert.False(t, errors.Is(a, c), "different code should not match")
}

func TestGrantError_DetailAndSuggestionChain(t *testing.T) {
	err := New(ErrCodeInvalidFilter, "unknown agency", nil).
		WithDetail("agency", "NFS").
		WithDetail("did_you_mean", "NSF").
		WithSuggestion("agency codes are uppercase, e.g. NSF or NIH")

	assert.Equal(t, "NFS", err.Details["agency"])
	assert.Equal(t, "NSF", err.Details["did_you_mean"])
	assert.Equal(t, "agency codes are uppercase, e.g. NSF or NIH", err.Suggestion)
}

func TestWrap_ReusesMessageAndKeepsCause(t *testing.T) {
	cause := errors.New("open corpus.jsonl: no such file")
	err := Wrap(ErrCodeIngestFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeIngestFailed, err.Code)
	assert.Equal(t, cause.Error(), err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilStaysNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestValidationError_UsesInvalidInputCode(t *testing.T) {
	err := ValidationError("query must not be empty", nil)

	assert.Equal(t, ErrCodeInvalidInput, err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable code", New(ErrCodeEmbedTimeout, "slow endpoint", nil), true},
		{"non-retryable code", New(ErrCodeInvalidInput, "bad query", nil), false},
		{"plain error", errors.New("plain"), false},
		{"wrapped retryable", fmt.Errorf("embed batch 3: %w", New(ErrCodeEmbedUnavailable, "connection refused", nil)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeStoreUnavailable, "records db missing", nil)))
	assert.False(t, IsFatal(New(ErrCodeEmbedUnavailable, "degrading to lexical", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))

	// Severity survives wrapping with %w at an outer layer.
	wrapped := fmt.Errorf("search aborted: %w", New(ErrCodeCorruptIndex, "terms index truncated", nil))
	assert.True(t, IsFatal(wrapped))
}

func TestGetCode_WalksTheChain(t *testing.T) {
	inner := New(ErrCodeDimensionMismatch, "got 384, want 1536", nil)

	assert.Equal(t, ErrCodeDimensionMismatch, GetCode(inner))
	assert.Equal(t, ErrCodeDimensionMismatch, GetCode(fmt.Errorf("reindex: %w", inner)))
	assert.Empty(t, GetCode(errors.New("plain")))
	assert.Empty(t, GetCode(nil))
}

func TestGetCategory(t *testing.T) {
	assert.Equal(t, CategoryNetwork, GetCategory(New(ErrCodeEmbedRejected, "401 from endpoint", nil)))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
