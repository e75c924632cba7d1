package model

import "errors"

// Sentinel errors for caller-facing failure modes. Validation errors are
// raised before any pipeline stage runs; ErrUpstreamUnavailable is fatal for
// a single evaluation only.
var (
	// ErrUpstreamUnavailable signals that the weather provider could not be
	// reached and no stale sample was available to fall back on.
	ErrUpstreamUnavailable = errors.New("forecast upstream unavailable")

	// ErrInvalidHorizon rejects a zero or negative planning horizon.
	ErrInvalidHorizon = errors.New("invalid planning horizon")

	// ErrInvalidProfile rejects a malformed appliance profile.
	ErrInvalidProfile = errors.New("invalid appliance profile")
)
