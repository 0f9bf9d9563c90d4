package data

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/vidforge/vidforge/internal/core"
	"github.com/vidforge/vidforge/internal/data/pgxutil"
	"github.com/vidforge/vidforge/internal/domain/model"
)

// Advisory lock namespace for SweepExpired so concurrent sweepers do not
// double-requeue the same jobs.
const advisoryLockSweepMajor int64 = 1001

func advisoryLockSweepMinor() int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte("video_generation"))
	hashValue := h.Sum32()
	maxInt32 := uint32(math.MaxInt32)
	if hashValue > maxInt32 {
		hashValue &= maxInt32
	}
	return int64(hashValue)
}

// SweepExpired reclaims work lost to crashed or wedged workers. Three arms,
// all under one advisory lock so only one sweeper makes progress at a time
// (a contended sweep is a no-op):
//   - processing jobs with a lapsed lease and a spent attempt budget fail
//     terminally;
//   - processing jobs with a lapsed lease and attempts remaining return to
//     queued (error_message stays NULL: only failed jobs carry one) and must
//     be pushed back onto the work queue by the caller;
//   - queued jobs untouched for longer than the stale threshold are re-pushed
//     too, covering queue entries lost between insert-and-push or pop-and-
//     claim. A duplicate push is benign: the claim CAS rejects the second pop.
func (r *JobRepo) SweepExpired(ctx context.Context) (*core.SweepResult, error) {
	result := &core.SweepResult{}
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				advisoryLockSweepMajor, advisoryLockSweepMinor(),
			).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			currentTime := r.timeProvider.Now().UTC()

			failedIDs, err := collectUpdatedIDs(tx.QueryContext(ctx, `
				UPDATE jobs
				SET status = 'failed',
				    error_message = $2 || ': visibility timeout elapsed',
				    lease_expires_at = NULL,
				    finished_at = $1,
				    updated_at = $1
				WHERE status = 'processing'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $1
				  AND attempt >= max_attempts
				RETURNING id
			`, currentTime, model.ErrMaxRetriesExceeded.Error()))
			if err != nil {
				return fmt.Errorf("fail exhausted jobs: %w", err)
			}

			requeuedIDs, err := collectUpdatedIDs(tx.QueryContext(ctx, `
				UPDATE jobs
				SET status = 'queued',
				    error_message = NULL,
				    lease_expires_at = NULL,
				    updated_at = $1
				WHERE status = 'processing'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $1
				RETURNING id
			`, currentTime))
			if err != nil {
				return fmt.Errorf("requeue expired jobs: %w", err)
			}

			// Touching updated_at keeps one stale job from being re-pushed on
			// every subsequent tick.
			staleIDs, err := collectUpdatedIDs(tx.QueryContext(ctx, `
				UPDATE jobs
				SET updated_at = $1
				WHERE status = 'queued'
				  AND updated_at < $2
				RETURNING id
			`, currentTime, currentTime.Add(-r.staleQueuedAfter())))
			if err != nil {
				return fmt.Errorf("repush stale queued jobs: %w", err)
			}

			result.FailedIDs = failedIDs
			result.RequeuedIDs = append(requeuedIDs, staleIDs...)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func collectUpdatedIDs(rows *sql.Rows, qerr error) ([]string, error) {
	if qerr != nil {
		return nil, qerr
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
