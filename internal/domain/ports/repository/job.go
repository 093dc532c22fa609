package repository

import (
	"context"
	"time"

	"hotorbot/internal/domain/model"
)

// JobRepository is the durable job store. All state transitions are single
// conditional updates; ClaimNext in particular must be atomic under
// concurrent workers.
type JobRepository interface {
	// Insert persists a new job in created state. When the job carries a
	// singleton key that already has a job in created/retry/active, the
	// insert no-ops atomically and returns false.
	Insert(ctx context.Context, tx Tx, job *model.Job) (bool, error)

	// ClaimNext atomically selects the highest-priority eligible job and
	// transitions it to active. Returns domain.ErrNotFound when nothing is
	// eligible.
	ClaimNext(ctx context.Context) (*model.Job, error)

	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	MarkCompleted(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, retryCount int, startAfter time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Cancel(ctx context.Context, id string) error

	// ExpireOverdue forces active jobs past their expire_in deadline to
	// expired. Returns the number of jobs moved.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)

	// ArchiveSettled moves terminal jobs past keep_until into the archive
	// table. Returns the number of jobs moved.
	ArchiveSettled(ctx context.Context, now time.Time) (int, error)
}
