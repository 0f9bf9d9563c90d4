// Package genrunner runs the video generation workers: it pulls job IDs off
// the work queue, claims them, drives the frame generation and encoding
// pipeline, and records outcomes.
package genrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidforge/vidforge/config"
	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/data"
	"github.com/vidforge/vidforge/internal/device"
	"github.com/vidforge/vidforge/internal/domain/model"
	"github.com/vidforge/vidforge/internal/observability/metrics"
	"github.com/vidforge/vidforge/internal/observability/statsd"
)

// RunnerOptions configures the generation worker runner.
type RunnerOptions struct {
	Repo      core.JobRepository  // Required: job repository
	Queue     core.WorkQueue      // Required: work queue
	Generator core.FrameGenerator // Required: inference pipeline
	Encoder   core.VideoEncoder   // Required: video encoder
	Guard     *device.Guard       // Required: device memory guard
	Config    config.WorkerConfig
	WorkerID  string // Optional: defaults to the hostname
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Runner pulls job IDs from the work queue and executes them on a fixed pool
// of worker goroutines. All goroutines share one device guard, so within a
// single process at most one generation holds device memory at a time; the
// others block on the queue or wait for a backoff retry.
type Runner struct {
	repo      core.JobRepository
	queue     core.WorkQueue
	generator core.FrameGenerator
	encoder   core.VideoEncoder
	guard     *device.Guard
	config    config.WorkerConfig
	workerID  string
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewRunner validates options and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("WorkQueue is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("FrameGenerator is required")
	}
	if opts.Encoder == nil {
		return nil, errors.New("VideoEncoder is required")
	}
	if opts.Guard == nil {
		return nil, errors.New("device Guard is required")
	}

	opts.Config.Sanitize()

	workerID := opts.WorkerID
	if workerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "worker"
		}
		workerID = host
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		repo:      opts.Repo,
		queue:     opts.Queue,
		generator: opts.Generator,
		encoder:   opts.Encoder,
		guard:     opts.Guard,
		config:    opts.Config,
		workerID:  workerID,
		logger:    logger.With("component", "gen_runner", "worker_id", workerID),
		metrics:   opts.Metrics,
	}, nil
}

// Run starts the worker pool and processes jobs until the context is
// cancelled. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting generation workers",
		"concurrency", r.config.Concurrency,
		"visibility_timeout", r.config.VisibilityTimeout,
	)

	if err := r.preflight(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.livenessLoop(ctx)
	})

	for i := range r.config.Concurrency {
		slot := i
		g.Go(func() error {
			return r.workerLoop(ctx, slot)
		})
	}

	if err := g.Wait(); err != nil && !isContextCancellation(err) {
		return err
	}
	return nil
}

// preflight verifies the queue is reachable before any loop starts. The
// generator's readiness probe, when it has one, is advisory: the sidecar may
// still be loading model weights, and the first claimed job will wait on it.
func (r *Runner) preflight(ctx context.Context) error {
	if err := r.queue.Ping(ctx); err != nil {
		return fmt.Errorf("queue preflight: %w", err)
	}

	if probe, ok := r.generator.(interface{ Ready(context.Context) error }); ok {
		if err := probe.Ready(ctx); err != nil {
			r.logger.WarnContext(ctx, "pipeline not ready at startup", "error", err)
		}
	}
	return nil
}

// livenessLoop refreshes this worker's liveness key so the HTTP layer can
// report live worker counts. The key TTL is twice the refresh interval so one
// missed beat does not drop the worker from the count.
func (r *Runner) livenessLoop(ctx context.Context) error {
	ttl := 2 * r.config.HeartbeatInterval

	beat := func() {
		if err := r.queue.WorkerHeartbeat(ctx, r.workerID, ttl); err != nil && !isContextCancellation(err) {
			r.logger.WarnContext(ctx, "worker liveness heartbeat failed", "error", err)
		}
	}
	beat()

	ticker := time.NewTicker(r.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			beat()
		}
	}
}

func (r *Runner) workerLoop(ctx context.Context, slot int) error {
	logger := r.logger.With("slot", slot)

	for ctx.Err() == nil {
		jobID, err := r.queue.PopBlocking(ctx, r.config.PopTimeout)
		switch {
		case err == nil:
			r.processJob(ctx, jobID)
		case errors.Is(err, model.ErrNoJobsAvailable):
			// Idle tick; loop around and re-check for shutdown.
		case isContextCancellation(err):
			return ctx.Err()
		default:
			logger.ErrorContext(ctx, "queue pop failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	return ctx.Err()
}

// processJob drives one job through claim, generation, encoding and outcome
// recording. Errors are recorded on the job rather than propagated; only the
// queue and claim paths can abort the worker.
func (r *Runner) processJob(ctx context.Context, jobID string) {
	start := time.Now()

	job, err := r.claim(ctx, jobID)
	if err != nil || job == nil {
		return
	}

	logger := r.logger.With("job_id", job.ID, "attempt", job.Attempt)
	logger.InfoContext(ctx, "processing job",
		"resolution", job.Resolution,
		"duration", job.Duration,
		"fps", job.FPS,
	)

	lease, err := r.guard.Acquire(device.EstimateMB(job.Resolution))
	if err != nil {
		// Memory cannot be claimed right now, typically because a sibling
		// slot is mid-generation. No work started, so the claim is undone
		// outright; slot contention must never eat into the retry budget.
		logger.WarnContext(ctx, "device memory unavailable", "error", err)
		r.requeueContended(ctx, job)
		r.emit(job, "requeued", metrics.ResultNoop, time.Since(start), err)
		return
	}

	resultPath, genErr := r.generateAndEncode(ctx, job)
	r.guard.Release(ctx, lease, genErr != nil)

	if genErr != nil {
		r.recordFailure(ctx, job, genErr)
		r.emit(job, "failed", metrics.ResultError, time.Since(start), genErr)
		return
	}

	if completed, err := r.repo.Complete(ctx, job.ID, resultPath); err != nil {
		logger.ErrorContext(ctx, "complete job failed", "error", err)
		r.emit(job, "completed", metrics.ResultError, time.Since(start), err)
	} else {
		result := metrics.ResultNoop
		if completed {
			result = metrics.ResultSuccess
			logger.InfoContext(ctx, "job completed",
				"result_path", resultPath,
				"elapsed", time.Since(start),
			)
		}
		r.emit(job, "completed", result, time.Since(start), nil)
	}
}

// claim transitions the job to processing. A conflict means another worker or
// the sweeper got there first; that is a normal race, not an error.
func (r *Runner) claim(ctx context.Context, jobID string) (*model.Job, error) {
	leaseSeconds := int(r.config.VisibilityTimeout / time.Second)
	job, err := r.repo.MarkProcessing(ctx, jobID, leaseSeconds)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrStatusConflict), errors.Is(err, data.ErrJobNotFound):
			r.logger.DebugContext(ctx, "job no longer claimable", "job_id", jobID, "error", err)
			return nil, nil
		case isContextCancellation(err):
			return nil, err
		default:
			r.logger.ErrorContext(ctx, "claim job failed", "job_id", jobID, "error", err)
			return nil, err
		}
	}
	return job, nil
}

// generateAndEncode runs the generation pipeline for a claimed job and
// returns the final output path. The generation call is bounded by the
// configured timeout; a lease heartbeat runs alongside it so slow but live
// generations are not swept.
func (r *Runner) generateAndEncode(ctx context.Context, job *model.Job) (string, error) {
	genCtx, cancel := context.WithTimeoutCause(
		ctx, r.config.GenerationTimeout, model.ErrGenerationTimeout,
	)
	defer cancel()

	stopBeat := r.startLeaseHeartbeat(ctx, job.ID)
	defer stopBeat()

	width, height := job.Resolution.Dimensions()
	framesDir, err := r.generator.Generate(genCtx, core.GenerateParams{
		JobID:     job.ID,
		Prompt:    job.Prompt,
		Width:     width,
		Height:    height,
		FPS:       job.FPS,
		NumFrames: job.Duration * job.FPS,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("generation exceeded %s: %w", r.config.GenerationTimeout, context.Cause(genCtx))
		}
		return "", fmt.Errorf("generate frames: %w", err)
	}
	defer r.cleanupFrames(framesDir)

	outputPath := filepath.Join(r.config.OutputDir, job.ID+".mp4")
	if err := os.MkdirAll(r.config.OutputDir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := r.encoder.Encode(ctx, framesDir, outputPath, job.FPS); err != nil {
		return "", fmt.Errorf("encode video: %w", err)
	}

	return outputPath, nil
}

// startLeaseHeartbeat extends the job's lease on an interval while generation
// runs. Returns a stop function; always call it.
func (r *Runner) startLeaseHeartbeat(ctx context.Context, jobID string) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.config.HeartbeatInterval)
		defer ticker.Stop()

		leaseSeconds := int(r.config.VisibilityTimeout / time.Second)
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				alive, err := r.repo.Heartbeat(hbCtx, jobID, leaseSeconds)
				if err != nil {
					if !isContextCancellation(err) {
						r.logger.WarnContext(hbCtx, "lease heartbeat failed", "job_id", jobID, "error", err)
					}
					continue
				}
				if !alive {
					// Lost the claim: the sweeper already requeued or failed
					// this job. Keep generating; the outcome write will no-op.
					r.logger.WarnContext(hbCtx, "lease lost during generation", "job_id", jobID)
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// recordFailure classifies a generation error and records the outcome:
// transient failures go back through the retry budget, everything else fails
// the job terminally.
func (r *Runner) recordFailure(ctx context.Context, job *model.Job, genErr error) {
	logger := r.logger.With("job_id", job.ID, "attempt", job.Attempt)

	if errors.Is(genErr, context.Canceled) {
		// Shutdown mid-generation. Leave the job processing; the sweeper
		// requeues it once its lease lapses.
		logger.InfoContext(ctx, "generation interrupted by shutdown")
		return
	}

	if errors.Is(genErr, model.ErrOutOfMemory) {
		// The runtime retains memory after OOM; reclaim before anyone retries.
		r.guard.ForceReclaim(ctx)
	}

	if model.IsTransientGeneration(genErr) {
		logger.WarnContext(ctx, "transient generation failure", "error", genErr)
		r.retryJob(ctx, job, genErr)
		return
	}

	logger.ErrorContext(ctx, "permanent generation failure", "error", genErr)
	if _, err := r.repo.Fail(ctx, job.ID, genErr.Error()); err != nil {
		logger.ErrorContext(ctx, "fail job failed", "error", err)
	}
}

// requeueContended undoes a claim whose generation never started: the job
// returns to queued with its attempt handed back, then waits out one backoff
// base before re-dispatch so it does not spin against the same busy slot.
func (r *Runner) requeueContended(ctx context.Context, job *model.Job) {
	logger := r.logger.With("job_id", job.ID)

	requeued, err := r.repo.Requeue(ctx, job.ID)
	if err != nil {
		logger.ErrorContext(ctx, "requeue contended job failed", "error", err)
		return
	}
	if !requeued {
		// Lost the lease in the meantime; whoever holds it now owns the job.
		return
	}

	readyAt := time.Now().Add(r.config.RetryBackoffBase)
	if err := r.queue.PushDelayed(ctx, job.ID, readyAt); err != nil {
		logger.ErrorContext(ctx, "schedule contended retry failed", "error", err)
		if pushErr := r.queue.Push(ctx, job.ID); pushErr != nil {
			logger.ErrorContext(ctx, "immediate requeue also failed", "error", pushErr)
		}
		return
	}

	logger.InfoContext(ctx, "requeued contended job", "ready_at", readyAt)
}

// retryJob hands a transient failure to the retry budget. When attempts
// remain the job returns to queued and is scheduled onto the delayed queue
// with exponential backoff; otherwise the repository fails it terminally.
func (r *Runner) retryJob(ctx context.Context, job *model.Job, cause error) {
	logger := r.logger.With("job_id", job.ID, "attempt", job.Attempt)

	status, err := r.repo.Retry(ctx, job.ID, cause.Error())
	if err != nil {
		logger.ErrorContext(ctx, "retry job failed", "error", err)
		return
	}

	if status != model.JobStatusQueued {
		logger.WarnContext(ctx, "retry budget exhausted", "status", status)
		return
	}

	delay := r.backoffDelay(job.Attempt)
	readyAt := time.Now().Add(delay)
	if err := r.queue.PushDelayed(ctx, job.ID, readyAt); err != nil {
		// Fall back to an immediate push so the job is not left queued with
		// no queue entry until the stale sweep finds it.
		logger.ErrorContext(ctx, "schedule delayed retry failed", "error", err)
		if pushErr := r.queue.Push(ctx, job.ID); pushErr != nil {
			logger.ErrorContext(ctx, "immediate requeue also failed", "error", pushErr)
		}
		return
	}

	logger.InfoContext(ctx, "scheduled retry", "delay", delay, "ready_at", readyAt)
}

// backoffDelay returns base * 2^(attempt-1) capped at the configured ceiling.
func (r *Runner) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := r.config.RetryBackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.config.RetryBackoffCeiling {
			return r.config.RetryBackoffCeiling
		}
	}
	if delay > r.config.RetryBackoffCeiling {
		delay = r.config.RetryBackoffCeiling
	}
	return delay
}

// cleanupFrames removes the intermediate frames directory after encoding.
func (r *Runner) cleanupFrames(framesDir string) {
	if framesDir == "" {
		return
	}
	if err := os.RemoveAll(framesDir); err != nil {
		r.logger.Warn("remove frames dir failed", "path", framesDir, "error", err)
	}
}

func (r *Runner) emit(job *model.Job, transition, result string, elapsed time.Duration, err error) {
	m := metrics.JobMetric{
		Transition: transition,
		Result:     result,
		Duration:   elapsed,
		Err:        err,
	}
	if job != nil {
		m.Resolution = string(job.Resolution)
	}
	metrics.EmitJobLifecycle(r.metrics, m)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
