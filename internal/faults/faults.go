// Package faults defines the sentinel errors shared by the engine. Callers
// classify failures with errors.Is and wrap context with %w.
package faults

import "errors"

var (
	// ErrNotFound indicates a referenced chain, contract, event, or alert does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed address, numeric string, or non-positive size.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indicates the chain RPC or cache manager contract could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrCalculationFailure indicates prerequisite data for a computation is missing.
	ErrCalculationFailure = errors.New("calculation failure")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err wraps ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsUpstreamUnavailable reports whether err wraps ErrUpstreamUnavailable.
func IsUpstreamUnavailable(err error) bool { return errors.Is(err, ErrUpstreamUnavailable) }

// IsCalculationFailure reports whether err wraps ErrCalculationFailure.
func IsCalculationFailure(err error) bool { return errors.Is(err, ErrCalculationFailure) }
