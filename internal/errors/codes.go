// Package errors provides GrantScout's structured error type. Every
// failure that crosses a package boundary carries a stable code; the MCP
// layer maps codes to protocol errors and the CLI maps them to hints.
//
// Codes look like ERR_204_STORE_CLOSED. The leading digit of the numeric
// block selects the category: 1xx configuration, 2xx storage and index,
// 3xx embedding service, 4xx validation, 5xx internal.
package errors

// Category classifies an error by subsystem.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryStorage    Category = "STORAGE"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity grades how a failure affects the request in flight.
type Severity string

const (
	// SeverityFatal aborts the request; no degraded result is possible.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the operation but the process carries on.
	SeverityError Severity = "ERROR"
	// SeverityWarning marks degraded operation, e.g. lexical-only search.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "INFO"
)

const (
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeDataDir        = "ERR_103_DATA_DIR"

	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeQueryFailed      = "ERR_202_QUERY_FAILED"
	ErrCodeCorruptIndex     = "ERR_203_CORRUPT_INDEX"
	ErrCodeStoreClosed      = "ERR_204_STORE_CLOSED"
	ErrCodeIndexFailed      = "ERR_205_INDEX_FAILED"

	ErrCodeEmbedTimeout     = "ERR_301_EMBED_TIMEOUT"
	ErrCodeEmbedUnavailable = "ERR_302_EMBED_UNAVAILABLE"
	ErrCodeEmbedRejected    = "ERR_303_EMBED_REJECTED"

	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidFilter     = "ERR_402_INVALID_FILTER"
	ErrCodeInvalidLimit      = "ERR_403_INVALID_LIMIT"
	ErrCodeDimensionMismatch = "ERR_404_DIMENSION_MISMATCH"
	ErrCodeUnknownResultSet  = "ERR_405_UNKNOWN_RESULT_SET"

	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIngestFailed = "ERR_503_INGEST_FAILED"
)

var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryStorage,
	'3': CategoryNetwork,
	'4': CategoryValidation,
	'5': CategoryInternal,
}

// fatalCodes lists conditions no pipeline stage can degrade around.
// An unreachable record store or a corrupt index leaves nothing to
// search, so the whole request aborts.
var fatalCodes = map[string]bool{
	ErrCodeStoreUnavailable: true,
	ErrCodeCorruptIndex:     true,
}

// retryableCodes lists transient embedding-service conditions worth
// another attempt.
var retryableCodes = map[string]bool{
	ErrCodeEmbedTimeout:     true,
	ErrCodeEmbedUnavailable: true,
}

// categoryFromCode reads the category digit at position 4
// ("ERR_2..." is storage). Malformed codes classify as internal.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	if cat, ok := categoryByDigit[code[4]]; ok {
		return cat
	}
	return CategoryInternal
}

func severityFromCode(code string) Severity {
	switch {
	case fatalCodes[code]:
		return SeverityFatal
	case retryableCodes[code]:
		// Retryable conditions degrade the request rather than fail it.
		return SeverityWarning
	default:
		return SeverityError
	}
}

func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
