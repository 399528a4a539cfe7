package models

// Error types attached with errors.WithType. They are also used as metric
// labels.
const (
	ErrTypeInvalidConfig          = "invalid_config"
	ErrTypeInvariantViolation     = "invariant_violation"
	ErrTypeStaleReference         = "stale_reference"
	ErrTypeDegenerateGeometry     = "degenerate_geometry"
	ErrTypeInsufficientCandidates = "insufficient_candidates"
	ErrTypeSectorNotFound         = "sector_not_found"
	ErrTypeInvalidMessage         = "invalid_message"
)
