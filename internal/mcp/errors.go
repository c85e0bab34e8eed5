// Package mcp implements the Model Context Protocol (MCP) server for
// GrantScout. It exposes the hybrid search engine to AI clients as the
// search_grants and refilter_grants tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	gserrors "github.com/grantscout/grantscout/internal/errors"
)

// Custom MCP error codes for GrantScout.
const (
	// ErrCodeCorpusNotReady indicates no ingested corpus exists.
	ErrCodeCorpusNotReady = -32001

	// ErrCodeEmbeddingFailed indicates the embedding service rejected or
	// failed the request.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeUnknownResultSet indicates a result_set_id that was never
	// issued or has been evicted from the refilter cache.
	ErrCodeUnknownResultSet = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. GrantError codes and
// categories decide the JSON-RPC code; anything unrecognized becomes an
// internal error so no raw internals leak to the client.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ge *gserrors.GrantError
	if errors.As(err, &ge) {
		return mapGrantError(ge)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewUnknownResultSetError creates an error for a result_set_id that is
// not in the refilter cache. Sets expire when evicted, so clients must
// re-run search_grants rather than retry.
func NewUnknownResultSetError(id string) *MCPError {
	return &MCPError{
		Code:    ErrCodeUnknownResultSet,
		Message: fmt.Sprintf("Result set '%s' is unknown or expired. Run search_grants again to get a fresh result_set_id.", id),
	}
}

// mapGrantError converts a GrantError to an MCPError.
func mapGrantError(ge *gserrors.GrantError) *MCPError {
	message := ge.Message
	if ge.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ge.Message, ge.Suggestion)
	}

	// Specific codes first, then the category decides.
	switch ge.Code {
	case gserrors.ErrCodeUnknownResultSet:
		return &MCPError{
			Code:    ErrCodeUnknownResultSet,
			Message: message,
		}
	case gserrors.ErrCodeCorruptIndex:
		return &MCPError{
			Code:    ErrCodeCorpusNotReady,
			Message: fmt.Sprintf("%s Run 'grantscout ingest --force' to rebuild.", message),
		}
	case gserrors.ErrCodeEmbedTimeout:
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: message,
		}
	case gserrors.ErrCodeEmbedUnavailable, gserrors.ErrCodeEmbedRejected:
		return &MCPError{
			Code:    ErrCodeEmbeddingFailed,
			Message: message,
		}
	}

	switch ge.Category {
	case gserrors.CategoryValidation:
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: message,
		}
	case gserrors.CategoryNetwork:
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: message,
		}
	default: // CategoryConfig, CategoryStorage, CategoryInternal
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: message,
		}
	}
}
