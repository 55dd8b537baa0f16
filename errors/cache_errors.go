// api/errors/cache_errors.go
package errors

import "errors"

var (
	ErrCacheOperation       = errors.New("cache operation failed")
	ErrCacheUnavailable     = errors.New("cache store unavailable")
	ErrOptimizationDisabled = errors.New("cache optimization is disabled")
	ErrWarmupDisabled       = errors.New("cache warmup is disabled")
)
