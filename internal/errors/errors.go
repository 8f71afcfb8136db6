// Package errors defines the error taxonomy shared by the sync jobs.
// Categories drive retry and fallback routing: network errors are retried,
// parse errors are fatal, entitlement errors reroute to a fallback path,
// rate limits are handled at the batch level, and validation errors drop
// the offending item without aborting the run.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category represents the category of an error
type Category string

const (
	// CategoryNetwork represents connection or timeout failures, retryable
	CategoryNetwork Category = "network"
	// CategoryParse represents a malformed success response, fatal
	CategoryParse Category = "parse"
	// CategoryEntitlement represents a plan/tier denial (403), fallback-triggering
	CategoryEntitlement Category = "entitlement"
	// CategoryRateLimit represents provider throttling (429)
	CategoryRateLimit Category = "rate_limit"
	// CategoryValidation represents a malformed input item, skipped per item
	CategoryValidation Category = "validation"
	// CategoryUpstream represents any other non-2xx upstream response
	CategoryUpstream Category = "upstream"
)

// SyncError is an error with a category and, for HTTP failures, the upstream status
type SyncError struct {
	Category   Category
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a network error (connection/timeout)
func NewNetworkError(message string, cause error) *SyncError {
	return &SyncError{
		Category: CategoryNetwork,
		Message:  message,
		Cause:    cause,
	}
}

// NewParseError creates a parse error for a malformed 2xx response body
func NewParseError(message string, cause error) *SyncError {
	return &SyncError{
		Category: CategoryParse,
		Message:  message,
		Cause:    cause,
	}
}

// NewValidationError creates a validation error for a malformed input item
func NewValidationError(message string) *SyncError {
	return &SyncError{
		Category: CategoryValidation,
		Message:  message,
	}
}

// NewUpstreamError creates an error for a non-2xx upstream response,
// classifying 403 as entitlement and 429 as rate limit
func NewUpstreamError(statusCode int, message string) *SyncError {
	category := CategoryUpstream
	switch statusCode {
	case http.StatusForbidden:
		category = CategoryEntitlement
	case http.StatusTooManyRequests:
		category = CategoryRateLimit
	}
	return &SyncError{
		Category:   category,
		StatusCode: statusCode,
		Message:    message,
	}
}

// CategoryOf returns the category of an error, or CategoryNetwork for
// uncategorized errors (plain transport failures)
func CategoryOf(err error) Category {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Category
	}
	return CategoryNetwork
}

// StatusOf returns the upstream HTTP status carried by an error, or 0
func StatusOf(err error) int {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.StatusCode
	}
	return 0
}

// IsEntitlementDenied reports whether an error is a plan/tier denial
func IsEntitlementDenied(err error) bool {
	return CategoryOf(err) == CategoryEntitlement
}

// IsRateLimited reports whether an error is provider throttling
func IsRateLimited(err error) bool {
	return CategoryOf(err) == CategoryRateLimit
}

// IsRetryable reports whether an error should trigger another attempt.
// Parse errors are fatal; entitlement denials and throttling are handled
// by the caller, not by blind retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CategoryOf(err) {
	case CategoryParse, CategoryEntitlement, CategoryRateLimit, CategoryValidation:
		return false
	default:
		return true
	}
}
