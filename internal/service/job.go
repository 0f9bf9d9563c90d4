// Package service contains the business logic sitting between the HTTP layer
// and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/data"
	"github.com/vidforge/vidforge/internal/domain/model"
	"github.com/vidforge/vidforge/internal/observability/metrics"
	"github.com/vidforge/vidforge/internal/observability/statsd"
)

// ErrResultNotReady is returned when a job's output is requested before the
// job has completed.
var ErrResultNotReady = errors.New("job result not ready")

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo    core.JobRepository // Required: job repository
	Queue   core.WorkQueue     // Required: work queue
	Logger  *slog.Logger       // Optional: structured logger
	Metrics statsd.Sink        // Optional: metrics sink (StatsD-compatible)
}

// JobService provides business logic for job submission and status reporting.
//
// Submission is a two-step write: the job record is inserted as the source of
// truth, then its ID is pushed onto the work queue for dispatch.
type JobService struct {
	repo    core.JobRepository
	queue   core.WorkQueue
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("WorkQueue is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:    opts.Repo,
		queue:   opts.Queue,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Submit validates the request, persists a queued job, and enqueues its ID
// for dispatch. Validation failures surface immediately and nothing is
// persisted.
func (s *JobService) Submit(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if pushErr := s.queue.Push(ctx, job.ID); pushErr != nil {
		// The record exists but dispatch failed; the job stays queued and
		// visible via the API rather than being silently dropped.
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "enqueue after insert failed",
				"job_id", job.ID,
				"error", pushErr,
			)
		}
		s.emitLifecycle(metrics.JobMetric{
			Transition: "submitted",
			Resolution: string(job.Resolution),
			Result:     metrics.ResultError,
			Err:        pushErr,
		})
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, pushErr)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job submitted",
			"job_id", job.ID,
			"resolution", job.Resolution,
			"duration", job.Duration,
			"fps", job.FPS,
		)
	}
	s.emitLifecycle(metrics.JobMetric{
		Transition: "submitted",
		Resolution: string(job.Resolution),
		Result:     metrics.ResultSuccess,
	})

	return job, nil
}

// GetStatus returns the current state of a job.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *JobService) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns counts of jobs in each state.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

// Result returns the output path for a completed job. Returns
// ErrResultNotReady while the job is still queued or processing, and the
// job's recorded failure for failed jobs.
func (s *JobService) Result(ctx context.Context, id string) (string, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	switch job.Status {
	case model.JobStatusCompleted:
		if job.ResultPath == nil {
			return "", fmt.Errorf("completed job %s has no result path", id)
		}
		return *job.ResultPath, nil
	case model.JobStatusFailed:
		msg := "job failed"
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		return "", fmt.Errorf("job %s: %s", id, msg)
	default:
		return "", ErrResultNotReady
	}
}

// Health reports readiness of the stores backing the service. Both the job
// database and the work queue must be reachable to accept and dispatch work.
func (s *JobService) Health(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.queue.Ping(ctx); err != nil {
		return fmt.Errorf("queue ping: %w", err)
	}
	return nil
}

// QueueDepth returns the number of jobs waiting on the ready queue.
func (s *JobService) QueueDepth(ctx context.Context) (int64, error) {
	return s.queue.Depth(ctx)
}

// LiveWorkers returns the number of workers with fresh liveness keys.
func (s *JobService) LiveWorkers(ctx context.Context) (int, error) {
	return s.queue.LiveWorkers(ctx)
}

func (s *JobService) emitLifecycle(m metrics.JobMetric) {
	metrics.EmitJobLifecycle(s.metrics, m)
}
