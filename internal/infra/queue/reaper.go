package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/config"
	"hotorbot/internal/domain/ports/repository"
	"hotorbot/internal/infra/metrics"
)

// Reaper sweeps the jobs table: overrunning active jobs are forced to
// expired, and settled jobs past their retention move to the archive table.
type Reaper struct {
	jobs repository.JobRepository
	cfg  *config.QueueConfig
	log  *zerolog.Logger
}

func NewReaper(jobs repository.JobRepository, cfg *config.QueueConfig, logger *zerolog.Logger) *Reaper {
	reaperLog := logger.With().Str("component", "Reaper").Logger()
	return &Reaper{jobs: jobs, cfg: cfg, log: &reaperLog}
}

func (r *Reaper) Run(ctx context.Context) {
	r.log.Info().Msg("reaper started")
	expire := time.NewTicker(r.cfg.ReaperInterval)
	archive := time.NewTicker(r.cfg.ArchiveInterval)
	defer expire.Stop()
	defer archive.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reaper stopping")
			return
		case <-expire.C:
			n, err := r.jobs.ExpireOverdue(ctx, time.Now())
			if err != nil {
				r.log.Error().Err(err).Msg("expire sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddJobsExpired(n)
				r.log.Warn().Int("count", n).Msg("active jobs expired")
			}
		case <-archive.C:
			n, err := r.jobs.ArchiveSettled(ctx, time.Now())
			if err != nil {
				r.log.Error().Err(err).Msg("archive sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddJobsArchived(n)
				r.log.Info().Int("count", n).Msg("settled jobs archived")
			}
		}
	}
}
