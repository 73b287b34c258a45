package core

import "errors"

// Failure taxonomy shared by the analytics engine, the HTTP layer and the
// API client. Callers match with errors.Is; wrapped variants carry the
// offending identifiers.
var (
	// ErrInvalidRange means a custom period's end date precedes its start.
	ErrInvalidRange = errors.New("invalid range: end date before start date")

	// ErrIncompleteRange means a custom period is missing a bound. The
	// resolver never defaults missing custom dates; pre-filling them is a
	// caller convenience.
	ErrIncompleteRange = errors.New("incomplete range: custom period requires start and end dates")

	// ErrDanglingCategory means a transaction references a category that
	// does not exist in the taxonomy snapshot. This is a data-integrity
	// failure; the transaction must not appear in any aggregate.
	ErrDanglingCategory = errors.New("transaction references unknown category")

	// ErrUpstreamUnavailable means the data store collaborator was
	// unreachable or answered with a non-2xx status other than 401.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAuthRequired means the collaborator rejected the bearer
	// credential. Not retryable; the caller must re-authenticate.
	ErrAuthRequired = errors.New("authentication required")
)
