package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vidforge/vidforge/internal/data/pgxutil"
	"github.com/vidforge/vidforge/internal/domain/model"
)

// Create validates the request and inserts a new queued job.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	currentTime := r.timeProvider.Now().UTC()
	id := uuid.NewString()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (id, prompt, duration, fps, resolution, status, attempt, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'queued', 0, $6, $7, $7)
		RETURNING `+jobColumns,
		id,
		strings.TrimSpace(req.Prompt),
		req.Duration,
		req.FPS,
		req.Resolution,
		r.maxAttempts(),
		currentTime,
	)

	job, err := scanJobFromRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrJobAlreadyExists
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		job, qerr = collectJobFromRows(rows)
		return qerr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by status.
func (r *JobRepo) List(
	ctx context.Context,
	opts *model.JobListOptions,
) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, fmt.Errorf("invalid status filter: %s", opts.Status)
		}
		query += ` WHERE status = $1`
		args = append(args, opts.Status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	jobs := []*model.Job{}
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs rows: %w", err)
	}
	return jobs, nil
}

// Stats returns counts of jobs in each state.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')     AS queued,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'completed')  AS completed,
    count(*) FILTER (WHERE status = 'failed')     AS failed
  FROM jobs
  `).Scan(
		&s.Queued,
		&s.Processing,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// MarkProcessing transitions queued -> processing with a lease. The attempt
// counter increments here, so an attempt is "spent" the moment a worker claims
// the job; a crash before any outcome still consumes it.
func (r *JobRepo) MarkProcessing(
	ctx context.Context,
	id string,
	leaseSeconds int,
) (*model.Job, error) {
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	row := r.DB.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = 'processing',
		    attempt = attempt + 1,
		    started_at = COALESCE(started_at, $2),
		    lease_expires_at = $3,
		    updated_at = $2
		WHERE id = $1 AND status = 'queued'
		RETURNING `+jobColumns,
		id, currentTime, leaseExpiresAt,
	)

	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	return job, nil
}

// Heartbeat refreshes the lease on a processing job.
func (r *JobRepo) Heartbeat(ctx context.Context, id string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiresAt := currentTime.Add(time.Duration(leaseSeconds) * time.Second)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`, id, leaseExpiresAt, currentTime)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Complete transitions processing -> completed and records the result path.
func (r *JobRepo) Complete(ctx context.Context, id, resultPath string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed',
		    result_path = $2,
		    error_message = NULL,
		    lease_expires_at = NULL,
		    finished_at = $3,
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`, id, resultPath, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail transitions processing -> failed terminally, ignoring any remaining
// attempt budget. Used for input defects and other non-retryable failures.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    error_message = $2,
		    lease_expires_at = NULL,
		    finished_at = $3,
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`, id, errMsg, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Retry records a transient failure on a processing job. When attempts remain
// the job returns to queued with its error cleared (error_message is only
// ever set on failed jobs); otherwise it fails with the budget exhausted.
// Returns the resulting status so the caller knows whether to reschedule.
func (r *JobRepo) Retry(ctx context.Context, id, errMsg string) (model.JobStatus, error) {
	currentTime := r.timeProvider.Now().UTC()

	query := `
      UPDATE jobs
      SET
        status = CASE WHEN attempt >= max_attempts THEN 'failed' ELSE 'queued' END,
        error_message = CASE WHEN attempt >= max_attempts
                             THEN $4 || ': ' || $2
                             ELSE NULL END,
        lease_expires_at = NULL,
        finished_at = CASE WHEN attempt >= max_attempts THEN $3::timestamptz ELSE NULL END,
        updated_at = $3
      WHERE id = $1 AND status = 'processing'
      RETURNING status
    `

	var status model.JobStatus
	err := r.DB.QueryRowContext(ctx, query,
		id, errMsg, currentTime, model.ErrMaxRetriesExceeded.Error(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrStatusConflict
		}
		return "", fmt.Errorf("retry job: %w", err)
	}
	return status, nil
}

// Requeue returns a processing job to queued and hands back the attempt its
// claim consumed. This is the path for work that never started: the claim is
// undone rather than recorded as a failed attempt.
func (r *JobRepo) Requeue(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'queued',
		    attempt = GREATEST(attempt - 1, 0),
		    error_message = NULL,
		    lease_expires_at = NULL,
		    updated_at = $2
		WHERE id = $1 AND status = 'processing'
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("requeue job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("requeue rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// collectJobFromRows collects a single job from pgx rows using pgx v5 helpers.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}
