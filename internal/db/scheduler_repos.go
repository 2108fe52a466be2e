package db

import (
	"context"
	"time"

	"growcycle/internal/types"
)

// A lock row is taken when absent, expired, or already held by the same
// worker (a re-trigger from the instance that owns it refreshes the TTL).
const acquireJobLockSQL = `
INSERT INTO job_locks (id, worker_id, locked_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET worker_id  = EXCLUDED.worker_id,
    locked_at  = EXCLUDED.locked_at,
    expires_at = EXCLUDED.expires_at
WHERE job_locks.expires_at < EXCLUDED.locked_at
   OR job_locks.worker_id = EXCLUDED.worker_id`

const releaseJobLockSQL = `DELETE FROM job_locks WHERE id = $1 AND worker_id = $2`

// JobLockRepository serializes job categories across instances through the
// job_locks table. scheduler.Runner uses it on top of its in-process lock.
type JobLockRepository struct {
	db    DBTX
	clock types.Clock
}

// NewJobLockRepository creates a JobLockRepository using the wall clock.
func NewJobLockRepository(db DBTX) *JobLockRepository {
	return &JobLockRepository{db: db, clock: types.RealClock{}}
}

// Acquire reports whether workerID now holds lockID until ttl elapses.
// Timestamps are computed here rather than with SQL intervals so the TTL is
// exactly the Go duration.
func (r *JobLockRepository) Acquire(ctx context.Context, lockID, workerID string, ttl time.Duration) (bool, error) {
	lockedAt := r.clock.Now().UTC()

	tag, err := r.db.Exec(ctx, acquireJobLockSQL, lockID, workerID, lockedAt, lockedAt.Add(ttl))
	if err != nil {
		return false, types.NewAppErrorWithDetails(types.ErrCodeInternalDB,
			"failed to acquire job lock", err, map[string]any{"lock_id": lockID})
	}
	return tag.RowsAffected() == 1, nil
}

// Release drops lockID if workerID still holds it. A lock reclaimed by
// another worker after expiry is left alone.
func (r *JobLockRepository) Release(ctx context.Context, lockID, workerID string) error {
	if _, err := r.db.Exec(ctx, releaseJobLockSQL, lockID, workerID); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeInternalDB,
			"failed to release job lock", err, map[string]any{"lock_id": lockID})
	}
	return nil
}

const startJobRunSQL = `
INSERT INTO job_history (job, reference_time, started_at, status)
VALUES ($1, $2, $3, 'running')
RETURNING id`

const finishJobRunSQL = `
UPDATE job_history
SET finished_at   = $2,
    status        = $3,
    notifications = $4,
    failures      = $5,
    items_count   = $6,
    error         = $7
WHERE id = $1 AND finished_at IS NULL`

// JobHistoryRepository keeps one job_history row per category run.
type JobHistoryRepository struct {
	db    DBTX
	clock types.Clock
}

// NewJobHistoryRepository creates a JobHistoryRepository using the wall clock.
func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db, clock: types.RealClock{}}
}

// Start opens a running entry for job evaluated at referenceTime and returns
// its ID.
func (r *JobHistoryRepository) Start(ctx context.Context, job string, referenceTime time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, startJobRunSQL, job, referenceTime.UTC(), r.clock.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeInternalDB,
			"failed to start job history entry", err, map[string]any{"job": job})
	}
	return id, nil
}

// Finish closes the entry run.ID with the run's outcome. Closing an entry
// twice, or one that does not exist, is reported as not found.
func (r *JobHistoryRepository) Finish(ctx context.Context, run types.JobRun) error {
	tag, err := r.db.Exec(ctx, finishJobRunSQL,
		run.ID,
		r.clock.Now().UTC(),
		run.Status,
		run.Notifications,
		run.Failures,
		run.Items,
		nilIfEmpty(run.Error),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundJobRun,
			"open job history entry not found", nil, map[string]any{"id": run.ID})
	}
	return nil
}
