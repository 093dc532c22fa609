package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/infra/redis"
)

// cronLockTTL keeps a tick's lock alive long enough for slow clocks on other
// nodes to land inside the window and skip.
const cronLockTTL = 30 * time.Second

type cronEntry struct {
	name     string
	schedule cron.Schedule
}

// Cron enqueues a named job on a cron schedule. Cross-process duplication is
// cut twice: a redis lock per tick, and the job's singleton key equal to its
// name so a still-live instance suppresses the insert.
type Cron struct {
	engine  *Engine
	locker  redis.Locker
	entries []cronEntry
	log     *zerolog.Logger
}

func NewCron(engine *Engine, locker redis.Locker, logger *zerolog.Logger) *Cron {
	cronLog := logger.With().Str("component", "Cron").Logger()
	return &Cron{engine: engine, locker: locker, log: &cronLog}
}

// Schedule registers a standard 5-field cron expression for the job name.
func (c *Cron) Schedule(name, expr string) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse cron %q for %s: %w", expr, name, err)
	}
	c.entries = append(c.entries, cronEntry{name: name, schedule: sched})
	return nil
}

// Run drives every registered schedule until the context is cancelled.
func (c *Cron) Run(ctx context.Context) {
	for _, e := range c.entries {
		go c.runEntry(ctx, e)
	}
	<-ctx.Done()
	c.log.Info().Msg("cron stopping")
}

func (c *Cron) runEntry(ctx context.Context, e cronEntry) {
	c.log.Info().Str("name", e.name).Msg("cron schedule registered")
	for {
		next := e.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.tick(ctx, e.name, next)
	}
}

func (c *Cron) tick(ctx context.Context, name string, at time.Time) {
	lockKey := fmt.Sprintf("cron:%s:%d", name, at.Unix())
	token, err := c.locker.TryLock(ctx, lockKey, cronLockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			c.log.Error().Err(err).Str("name", name).Msg("cron lock failed")
		}
		return
	}
	defer func() { _ = c.locker.Unlock(ctx, lockKey, token) }()

	_, inserted, err := c.engine.Enqueue(ctx, name, nil, &model.JobOptions{SingletonKey: name})
	if err != nil {
		c.log.Error().Err(err).Str("name", name).Msg("cron enqueue failed")
		return
	}
	if inserted {
		c.log.Debug().Str("name", name).Time("tick", at).Msg("cron job enqueued")
	}
}
