package geomodel

import "errors"

var (
	// ErrMissingCoordinates marks an input point without lat/lon. Skipped,
	// never fatal to a batch.
	ErrMissingCoordinates = errors.New("missing coordinates")

	// ErrNoCandidate means the matcher found nothing within threshold.
	// Recorded as absence, not failure.
	ErrNoCandidate = errors.New("no candidate found")

	// ErrGeometryParse marks a malformed or schema-violating feature. The
	// feature is skipped and the batch continues.
	ErrGeometryParse = errors.New("geometry parse error")

	// ErrUnlinkedEndpoint is returned by route queries on points that were
	// never linked to the road network.
	ErrUnlinkedEndpoint = errors.New("point is not linked to the road network")

	// ErrProviderUnavailable wraps feature-source and graph-store timeouts
	// and failures. Retryable by the caller.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
