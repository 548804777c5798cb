package kongrag

import "github.com/kailas-cloud/kongrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput     = domain.ErrInvalidInput
	ErrConfiguration    = domain.ErrConfiguration
	ErrSchemaMismatch   = domain.ErrSchemaMismatch
	ErrRetryableService = domain.ErrRetryableService
	ErrFatalService     = domain.ErrFatalService
	ErrNotFound         = domain.ErrNotFound
)
