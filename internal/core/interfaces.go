package core

import (
	"context"
	"time"

	"github.com/vidforge/vidforge/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
// The record is the source of truth for job state; queue entries only carry IDs.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	Stats(ctx context.Context) (*model.JobStats, error)

	// MarkProcessing transitions a queued job to processing, increments its
	// attempt counter and grants a lease. Returns ErrStatusConflict when the
	// job is not queued (already claimed, or finished).
	MarkProcessing(ctx context.Context, id string, leaseSeconds int) (*model.Job, error)

	// Heartbeat extends the lease on a processing job. Returns false when the
	// job is no longer processing.
	Heartbeat(ctx context.Context, id string, leaseSeconds int) (bool, error)

	// Complete transitions processing -> completed, recording the result path.
	Complete(ctx context.Context, id, resultPath string) (bool, error)

	// Fail transitions processing -> failed terminally, regardless of the
	// remaining attempt budget.
	Fail(ctx context.Context, id, errMsg string) (bool, error)

	// Retry records a transient failure: the job returns to queued when
	// attempts remain, otherwise it fails with the budget exhausted. The
	// resulting status tells the caller whether to reschedule.
	Retry(ctx context.Context, id, errMsg string) (model.JobStatus, error)

	// Requeue undoes a claim whose work never started, returning the job to
	// queued and handing back the attempt the claim consumed. Used when a
	// worker cannot begin (device slot contention), so contention is never
	// charged against the retry budget. Returns false when the job is no
	// longer processing.
	Requeue(ctx context.Context, id string) (bool, error)

	// SweepExpired finds processing jobs whose lease has lapsed and either
	// requeues them or fails them when the attempt budget is spent.
	SweepExpired(ctx context.Context) (*SweepResult, error)

	Ping(ctx context.Context) error
}

// SweepResult reports the outcome of one expired-lease sweep.
type SweepResult struct {
	// RequeuedIDs are jobs returned to queued; the caller must push them back
	// onto the work queue.
	RequeuedIDs []string
	// FailedIDs are jobs whose attempt budget was exhausted.
	FailedIDs []string
}

// WorkQueue defines the interface for queue operations. Entries are job IDs;
// dispatch order is FIFO for immediately-ready work, with a separate delayed
// set for backoff retries.
type WorkQueue interface {
	// Push appends a job ID to the tail of the ready queue.
	Push(ctx context.Context, jobID string) error

	// PopBlocking removes the head of the ready queue, waiting up to timeout.
	// Returns model.ErrNoJobsAvailable when the wait elapses empty.
	PopBlocking(ctx context.Context, timeout time.Duration) (string, error)

	// PushDelayed schedules a job ID to become ready at readyAt.
	PushDelayed(ctx context.Context, jobID string, readyAt time.Time) error

	// PromoteDue moves delayed entries whose ready time has passed onto the
	// ready queue. Returns the number promoted.
	PromoteDue(ctx context.Context, now time.Time) (int, error)

	// Depth returns the current length of the ready queue.
	Depth(ctx context.Context) (int64, error)

	// WorkerHeartbeat refreshes this worker's liveness key.
	WorkerHeartbeat(ctx context.Context, workerID string, ttl time.Duration) error

	// LiveWorkers counts workers with an unexpired liveness key.
	LiveWorkers(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
}

// GenerateParams groups parameters for one generation call to keep param count ≤3.
type GenerateParams struct {
	JobID     string
	Prompt    string
	Width     int
	Height    int
	FPS       int
	NumFrames int
}

// FrameGenerator defines the interface to the inference pipeline that renders
// raw frames from a prompt.
type FrameGenerator interface {
	// Generate renders frames and returns the directory holding them. Failure
	// classes are mapped onto the model sentinels (ErrOutOfMemory,
	// ErrInvalidPrompt, ErrGenerationTimeout).
	Generate(ctx context.Context, params GenerateParams) (string, error)

	// Reclaim asks the pipeline to drop cached device memory.
	Reclaim(ctx context.Context) error
}

// VideoEncoder defines the interface for encoding rendered frames into a
// playable video file.
type VideoEncoder interface {
	Encode(ctx context.Context, framesDir, outputPath string, fps int) error
}
