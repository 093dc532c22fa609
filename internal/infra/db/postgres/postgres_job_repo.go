package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// jobRepo persists jobs. The row shape is the durability contract; durations
// are stored as bigint milliseconds. A partial unique index on singleton_key
// over non-terminal states backs the dedup guarantee:
//
//	CREATE UNIQUE INDEX jobs_singleton_active ON jobs (singleton_key)
//	WHERE singleton_key IS NOT NULL AND state IN ('created','retry','active');
type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, name, data, state, priority, retry_count, retry_limit,
retry_delay_ms, retry_backoff, start_after, started_at,
COALESCE(singleton_key, ''), expire_in_ms, keep_until, last_error, created_at, completed_at`

func (r *jobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.Job) (bool, error) {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.StartAfter.IsZero() {
		job.StartAfter = job.CreatedAt
	}
	job.State = model.JobStateCreated

	const q = `
INSERT INTO jobs (id, name, data, state, priority, retry_count, retry_limit,
                  retry_delay_ms, retry_backoff, start_after, singleton_key,
                  expire_in_ms, keep_until, created_at)
VALUES ($1, $2, $3, 'created', $4, 0, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12);`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Name, []byte(job.Data), job.Priority, job.RetryLimit,
		job.RetryDelay.Milliseconds(), job.RetryBackoff, job.StartAfter,
		job.SingletonKey, job.ExpireIn.Milliseconds(), job.KeepUntil, job.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Singleton already queued; enqueue is idempotent and hands the
			// caller the live holder's id.
			const holderQuery = `
SELECT id FROM jobs
WHERE singleton_key = $1 AND state IN ('created', 'retry', 'active');`
			row, qErr := pickRow(ctx, r.pool, tx, holderQuery, job.SingletonKey)
			if qErr == nil {
				var holderID string
				if sErr := row.Scan(&holderID); sErr == nil {
					job.ID = holderID
				}
			}
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *jobRepo) ClaimNext(ctx context.Context) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + jobColumns + `
FROM jobs
WHERE state IN ('created', 'retry') AND start_after <= now()
ORDER BY priority DESC, id
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			return err
		}

		now := time.Now()
		const claimQuery = `
UPDATE jobs SET state = 'active', started_at = $2
WHERE id = $1 AND state IN ('created', 'retry');`
		cmd, err := execSQL(ctx, r.pool, tx, claimQuery, fetched.ID, now)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		fetched.State = model.JobStateActive
		fetched.StartedAt = &now
		job = fetched
		return nil
	})

	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindByID looks a job up in the live table first, then in the archive, so
// settled jobs stay inspectable after the retention sweep moves them.
func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if !errors.Is(err, domain.ErrNotFound) {
		return job, err
	}
	row, err = pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs_archive WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE jobs SET state = 'completed', completed_at = $2, last_error = ''
WHERE id = $1 AND state = 'active';`
	return r.settle(ctx, q, id, at)
}

func (r *jobRepo) MarkRetry(ctx context.Context, id string, retryCount int, startAfter time.Time, lastError string) error {
	const q = `
UPDATE jobs SET state = 'retry', retry_count = $2, start_after = $3, started_at = NULL, last_error = $4
WHERE id = $1 AND state = 'active';`
	cmd, err := execSQL(ctx, r.pool, nil, q, id, retryCount, startAfter, lastError)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	const q = `
UPDATE jobs SET state = 'failed', completed_at = $2, last_error = $3
WHERE id = $1 AND state = 'active';`
	cmd, err := execSQL(ctx, r.pool, nil, q, id, time.Now(), lastError)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) Cancel(ctx context.Context, id string) error {
	const q = `
UPDATE jobs SET state = 'cancelled', completed_at = $2
WHERE id = $1 AND state IN ('created', 'retry');`
	return r.settle(ctx, q, id, time.Now())
}

func (r *jobRepo) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	const q = `
UPDATE jobs SET state = 'expired', completed_at = $1
WHERE state = 'active'
  AND expire_in_ms > 0
  AND started_at + (expire_in_ms * interval '1 millisecond') <= $1;`
	cmd, err := execSQL(ctx, r.pool, nil, q, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *jobRepo) ArchiveSettled(ctx context.Context, now time.Time) (int, error) {
	const q = `
WITH moved AS (
    DELETE FROM jobs
    WHERE state IN ('completed', 'expired', 'cancelled', 'failed')
      AND keep_until <= $1
    RETURNING *
)
INSERT INTO jobs_archive (id, name, data, state, priority, retry_count, retry_limit,
                          retry_delay_ms, retry_backoff, start_after, started_at, singleton_key,
                          expire_in_ms, keep_until, last_error, created_at, completed_at)
SELECT * FROM moved;`
	cmd, err := execSQL(ctx, r.pool, nil, q, now)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *jobRepo) settle(ctx context.Context, q, id string, at time.Time) error {
	cmd, err := execSQL(ctx, r.pool, nil, q, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j            model.Job
		state        string
		retryDelayMs int64
		expireInMs   int64
	)
	err := row.Scan(
		&j.ID, &j.Name, &j.Data, &state, &j.Priority, &j.RetryCount, &j.RetryLimit,
		&retryDelayMs, &j.RetryBackoff, &j.StartAfter, &j.StartedAt,
		&j.SingletonKey, &expireInMs, &j.KeepUntil, &j.LastError, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.State = model.JobState(state)
	j.RetryDelay = time.Duration(retryDelayMs) * time.Millisecond
	j.ExpireIn = time.Duration(expireInMs) * time.Millisecond
	return &j, nil
}
