package reconcile

import "errors"

var (
	// ErrStaleRefresh marks a refresh response older than one already applied.
	// It is logged and discarded, never returned to callers.
	ErrStaleRefresh = errors.New("stale refresh discarded")
	// ErrClaimUnconfirmed is returned when a claim is applied locally but the
	// store has not confirmed it within the claim timeout. The claim keeps
	// being retried; the caller may retry as well.
	ErrClaimUnconfirmed = errors.New("claim not yet confirmed by store")
	// ErrClosed is returned by an engine that has been shut down.
	ErrClosed = errors.New("engine closed")
)
