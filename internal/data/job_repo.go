package data

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/vidforge/vidforge/internal/domain/model"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	// MaxAttempts is stamped onto new jobs as their attempt budget.
	MaxAttempts int
	// StaleQueuedAfter is how long a queued job may go untouched before the
	// sweep re-pushes it, covering queue entries lost to crashes between
	// insert-and-push or pop-and-claim.
	StaleQueuedAfter time.Duration
	Logger           *slog.Logger
	TimeProvider     TimeProvider
}

const (
	defaultMaxAttempts      = 3
	defaultStaleQueuedAfter = 10 * time.Minute
)

// JobRepo provides database operations for job management.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// Ping verifies the database connection is alive.
func (r *JobRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *JobRepo) maxAttempts() int {
	if r.cfg.MaxAttempts > 0 {
		return r.cfg.MaxAttempts
	}
	return defaultMaxAttempts
}

func (r *JobRepo) staleQueuedAfter() time.Duration {
	if r.cfg.StaleQueuedAfter > 0 {
		return r.cfg.StaleQueuedAfter
	}
	return defaultStaleQueuedAfter
}

const jobColumns = `
  id,
  prompt,
  duration,
  fps,
  resolution,
  status,
  attempt,
  max_attempts,
  result_path,
  error_message,
  lease_expires_at,
  created_at,
  started_at,
  finished_at,
  updated_at
`

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	resultPath, errorMessage              sql.NullString
	leaseExpiresAt, startedAt, finishedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Prompt,
		&job.Duration,
		&job.FPS,
		&job.Resolution,
		&job.Status,
		&job.Attempt,
		&job.MaxAttempts,
		&d.resultPath,
		&d.errorMessage,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&d.startedAt,
		&d.finishedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.ResultPath = cloneNullableString(d.resultPath)
	job.ErrorMessage = cloneNullableString(d.errorMessage)
	job.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.FinishedAt = cloneNullableTime(d.finishedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
