package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/config"
	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/repository"
	"hotorbot/internal/infra/logging"
	"hotorbot/internal/infra/metrics"
	"hotorbot/internal/infra/worker"
)

// Handler runs one claimed job. A returned error sends the job to retry
// (or failed once attempts are exhausted); wrap with domain.Permanent to
// fail immediately.
type Handler func(ctx context.Context, job *model.Job) error

// Engine owns the jobs table: it enqueues, polls for claimable work and
// settles outcomes. Handlers register by job name before Run.
type Engine struct {
	jobs     repository.JobRepository
	pool     *worker.Pool
	cfg      *config.QueueConfig
	handlers map[string]Handler
	log      *zerolog.Logger
}

func NewEngine(jobs repository.JobRepository, pool *worker.Pool, cfg *config.QueueConfig, logger *zerolog.Logger) *Engine {
	engineLog := logger.With().Str("component", "QueueEngine").Logger()
	return &Engine{
		jobs:     jobs,
		pool:     pool,
		cfg:      cfg,
		handlers: make(map[string]Handler),
		log:      &engineLog,
	}
}

func (e *Engine) Register(name string, h Handler) {
	e.handlers[name] = h
}

// Enqueue persists a job. The payload is marshalled into the job's data
// column; nil means an empty object. When opts carries a singleton key and a
// live job already holds it, Enqueue is a no-op and reports inserted=false.
func (e *Engine) Enqueue(ctx context.Context, name string, payload any, opts *model.JobOptions) (*model.Job, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("%w: empty job name", domain.ErrInvalidArgument)
	}
	data := json.RawMessage(`{}`)
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, false, fmt.Errorf("marshal payload for %s: %w", name, err)
		}
		data = b
	}
	if opts == nil {
		opts = &model.JobOptions{}
	}

	now := time.Now()
	job := &model.Job{
		Name:         name,
		Data:         data,
		State:        model.JobStateCreated,
		Priority:     opts.Priority,
		RetryLimit:   opts.RetryLimit,
		RetryDelay:   opts.RetryDelay,
		RetryBackoff: opts.RetryBackoff,
		StartAfter:   opts.StartAfter,
		SingletonKey: opts.SingletonKey,
		ExpireIn:     opts.ExpireIn,
		CreatedAt:    now,
	}
	if job.RetryLimit <= 0 {
		job.RetryLimit = e.cfg.RetryLimit
	}
	if job.RetryDelay <= 0 {
		job.RetryDelay = e.cfg.RetryDelay
	}
	if job.StartAfter.IsZero() {
		job.StartAfter = now
	}
	if job.ExpireIn <= 0 {
		job.ExpireIn = e.cfg.ExpireIn
	}
	keepFor := opts.KeepFor
	if keepFor <= 0 {
		keepFor = e.cfg.KeepFor
	}
	job.KeepUntil = now.Add(keepFor)

	inserted, err := e.jobs.Insert(ctx, nil, job)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		e.log.Debug().Str("name", name).Str("singleton_key", job.SingletonKey).Msg("duplicate singleton job skipped")
		return job, false, nil
	}
	e.log.Info().Str("job_id", job.ID).Str("name", name).Msg("job enqueued")
	return job, true, nil
}

// Run polls for claimable jobs and feeds them to the worker pool until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().Dur("poll_interval", e.cfg.PollInterval).Msg("queue engine started")
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("queue engine stopping")
			return
		case <-ticker.C:
			_ = e.pool.Submit(func(ctx context.Context) error {
				for e.runOne(ctx) {
				}
				return nil
			})
		}
	}
}

// runOne claims and settles a single job. It reports whether a job was
// claimed so the caller can drain the backlog within one poll.
func (e *Engine) runOne(ctx context.Context) bool {
	job, err := e.jobs.ClaimNext(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
			e.log.Error().Err(err).Msg("claim failed")
		}
		return false
	}
	e.dispatch(ctx, job)
	return ctx.Err() == nil
}

func (e *Engine) dispatch(ctx context.Context, job *model.Job) {
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, e.log).With().Str("name", job.Name).Logger()

	h, ok := e.handlers[job.Name]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrUnknownJob, job.Name)
		log.Error().Err(err).Msg("job failed")
		e.settle(ctx, job, err, true)
		return
	}

	start := time.Now()
	err := e.runHandler(ctx, h, job)
	metrics.ObserveJobAttempt(job.Name, time.Since(start).Seconds())

	if err == nil {
		if mErr := e.jobs.MarkCompleted(ctx, job.ID, time.Now()); mErr != nil {
			log.Error().Err(mErr).Msg("could not mark job completed")
			return
		}
		metrics.IncJobSettled(job.Name, string(model.JobStateCompleted))
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")
		return
	}

	log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("job attempt failed")
	e.settle(ctx, job, err, domain.IsPermanent(err))
}

func (e *Engine) settle(ctx context.Context, job *model.Job, attemptErr error, permanent bool) {
	if !permanent && job.CanRetry() {
		startAfter := time.Now().Add(job.NextRetryDelay())
		if err := e.jobs.MarkRetry(ctx, job.ID, job.RetryCount+1, startAfter, attemptErr.Error()); err != nil {
			e.log.Error().Err(err).Str("job_id", job.ID).Msg("could not mark job for retry")
		}
		metrics.IncJobSettled(job.Name, string(model.JobStateRetry))
		return
	}
	if err := e.jobs.MarkFailed(ctx, job.ID, attemptErr.Error()); err != nil {
		e.log.Error().Err(err).Str("job_id", job.ID).Msg("could not mark job failed")
	}
	metrics.IncJobSettled(job.Name, string(model.JobStateFailed))
}

func (e *Engine) runHandler(ctx context.Context, h Handler, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}
