package model

import (
	"context"
	"errors"
)

// Generation failure classes. The pipeline adapter maps sidecar and runtime
// failures onto these sentinels so the worker loop can pick a retry policy
// without knowing transport details.
var (
	// ErrOutOfMemory indicates the device ran out of memory mid-generation.
	// Transient: retried with backoff after a forced memory reclaim.
	ErrOutOfMemory = errors.New("device out of memory")

	// ErrInvalidPrompt indicates the pipeline rejected the prompt.
	// Terminal: an input defect, never retried.
	ErrInvalidPrompt = errors.New("prompt rejected by pipeline")

	// ErrGenerationTimeout indicates the per-job generation deadline elapsed.
	// Treated like ErrOutOfMemory for retry purposes.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrMaxRetriesExceeded is recorded on a job once the attempt budget is
	// exhausted by transient failures.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// IsTransientGeneration reports whether a generation error should be retried
// with backoff rather than failing the job outright.
func IsTransientGeneration(err error) bool {
	return errors.Is(err, ErrOutOfMemory) ||
		errors.Is(err, ErrGenerationTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
