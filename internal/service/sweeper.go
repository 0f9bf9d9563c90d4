package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidforge/vidforge/config"
	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/observability/metrics"
	"github.com/vidforge/vidforge/internal/observability/statsd"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Repo    core.JobRepository   // Required: job repository
	Queue   core.WorkQueue       // Required: work queue
	Config  config.SweeperConfig // Required: sweeper configuration
	Logger  *slog.Logger         // Optional: structured logger
	Metrics statsd.Sink          // Optional: metrics sink (StatsD-compatible)
}

// SweeperService recovers work lost to crashed or wedged workers.
//
// Each tick it:
//   - requeues processing jobs whose visibility timeout lapsed, or fails
//     them terminally once their attempt budget is spent;
//   - re-pushes queued jobs that sat untouched long enough for their queue
//     entry to be presumed lost;
//   - promotes delayed retries whose backoff has elapsed onto the ready queue;
//   - reports the ready-queue depth.
type SweeperService struct {
	repo    core.JobRepository
	queue   core.WorkQueue
	config  config.SweeperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("WorkQueue is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper_service")
	}

	return &SweeperService{
		repo:    opts.Repo,
		queue:   opts.Queue,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runSweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runSweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
				// Continue running despite errors
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// runSweep performs one full sweep pass.
func (s *SweeperService) runSweep(ctx context.Context) error {
	start := time.Now()
	var errs []error

	result, sweepErr := s.repo.SweepExpired(ctx)
	if sweepErr != nil {
		errs = append(errs, fmt.Errorf("sweep expired leases: %w", sweepErr))
	} else {
		s.handleSweepResult(ctx, result)
	}

	promoted, promoteErr := s.queue.PromoteDue(ctx, time.Now())
	if promoteErr != nil {
		errs = append(errs, fmt.Errorf("promote delayed retries: %w", promoteErr))
	} else if promoted > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "promoted delayed retries", "count", promoted)
	}

	if depth, depthErr := s.queue.Depth(ctx); depthErr == nil {
		metrics.EmitQueueDepth(s.metrics, depth)
	}

	s.emitSweepMetrics(time.Since(start), errs)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("sweep failed: %w", joined)
	}
	return nil
}

// handleSweepResult pushes requeued jobs back onto the ready queue. A job the
// database moved to queued but we fail to push stays visible to the next
// sweep via its queued status and empty lease, so a push failure here is
// logged rather than fatal.
func (s *SweeperService) handleSweepResult(ctx context.Context, result *core.SweepResult) {
	if result == nil {
		return
	}

	for _, id := range result.RequeuedIDs {
		if err := s.queue.Push(ctx, id); err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "re-enqueue swept job failed",
					"job_id", id,
					"error", err,
				)
			}
			continue
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: "requeued",
			Result:     metrics.ResultSuccess,
		})
	}

	if len(result.RequeuedIDs) > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued expired jobs", "count", len(result.RequeuedIDs))
	}
	if len(result.FailedIDs) > 0 {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed exhausted jobs", "count", len(result.FailedIDs))
		}
		for range result.FailedIDs {
			metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
				Transition: "failed",
				Result:     metrics.ResultError,
			})
		}
	}
}

func (s *SweeperService) emitSweepMetrics(elapsed time.Duration, errs []error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if len(errs) > 0 {
		result = metrics.ResultError
	}
	tags := map[string]string{"result": result}

	s.metrics.Count("sweeper.sweep", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("sweeper.sweep_duration", elapsed, metrics.CloneTags(tags))
	}
	if len(errs) == 0 {
		s.metrics.Gauge("sweeper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *SweeperService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
