package aggregate

import "github.com/rotisserie/eris"

// Sentinel errors surfaced by Aggregate. Partial source degradation is not
// an error; it shows up only as missing provenance entries.
var (
	// ErrInvalidProfile means the request itself is malformed: a missing
	// region or stage, or an unsupported crop. Client-visible, never retried.
	ErrInvalidProfile = eris.New("aggregate: invalid profile")

	// ErrNoCoverage means the (region, crop) pair has no resolver entry.
	// Client-visible, never retried.
	ErrNoCoverage = eris.New("aggregate: no coverage for region/crop")

	// ErrNoDemoData means a demo request named a profile without a scripted
	// bundle.
	ErrNoDemoData = eris.New("aggregate: no demo data for region/crop")

	// ErrUpstreamUnavailable means every source failed, leaving nothing to
	// aggregate. The caller may retry later.
	ErrUpstreamUnavailable = eris.New("aggregate: all upstream sources unavailable")
)
