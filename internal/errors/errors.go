// Package errors consolidates error definitions for the blockvol service.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Cache path errors are absorbed at the series boundary and trigger
	// the upstream fallback; they never reach the caller.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// Upstream errors. The only failure that becomes a failed response.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Codec errors. A malformed series means corrupted or incompatible
	// encoded input and is treated as a data-integrity defect.
	ErrMalformedSeries = errors.New("malformed series")

	// Validation errors
	ErrInvalidRange  = errors.New("invalid range")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewCacheUnavailable wraps a storage-layer failure.
func NewCacheUnavailable(cause error) error {
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, cause)
}

// NewUpstreamUnavailable wraps a remote fetch failure, preserving the
// underlying message for the caller-visible response.
func NewUpstreamUnavailable(cause error) error {
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, cause)
}

// NewMalformedSeries creates a malformed-series error with detail.
func NewMalformedSeries(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedSeries, fmt.Sprintf(format, args...))
}
