package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/domain/ports/repository"
	"hotorbot/internal/infra/metrics"
)

// MatchmakerUseCase runs the recurring bot-match sweep.
type MatchmakerUseCase interface {
	HandleMatchBots(ctx context.Context, job *model.Job) error

	// Sweep processes every pending bot match once and reports how many
	// were acted on.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

var _ MatchmakerUseCase = (*matchmakerUC)(nil)

type matchmakerUC struct {
	matches  repository.MatchRepository
	profiles repository.ProfileRepository
	ai       adapter.AIAdapter
	maxDelay time.Duration
	model    string
	log      *zerolog.Logger
}

func NewMatchmakerUseCase(
	matches repository.MatchRepository,
	profiles repository.ProfileRepository,
	ai adapter.AIAdapter,
	maxDelay time.Duration,
	verdictModel string,
	logger *zerolog.Logger,
) *matchmakerUC {
	l := logger.With().Str("component", "Matchmaker").Logger()
	if maxDelay <= 0 {
		maxDelay = 48 * time.Hour
	}
	return &matchmakerUC{
		matches:  matches,
		profiles: profiles,
		ai:       ai,
		maxDelay: maxDelay,
		model:    verdictModel,
		log:      &l,
	}
}

func (u *matchmakerUC) HandleMatchBots(ctx context.Context, job *model.Job) error {
	_, err := u.Sweep(ctx, time.Now())
	return err
}

func (u *matchmakerUC) Sweep(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer func() { metrics.ObserveMatchSweep(time.Since(start).Seconds()) }()

	pending, err := u.matches.FindPendingBotMatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending matches: %w", err)
	}

	acted := 0
	for _, m := range pending {
		if ctx.Err() != nil {
			return acted, ctx.Err()
		}
		ok, err := u.sweepOne(ctx, m, now)
		if err != nil {
			// one bad match must not starve the rest of the sweep
			u.log.Error().Err(err).Str("match_id", m.ID).Msg("match sweep step failed")
			continue
		}
		if ok {
			acted++
		}
	}
	return acted, nil
}

// sweepOne advances a single match one state. Undecided matches get a
// verdict; deferred matches are accepted once due. The conditional accept
// keeps overlapping sweeps idempotent.
func (u *matchmakerUC) sweepOne(ctx context.Context, m *model.Match, now time.Time) (bool, error) {
	switch m.State() {
	case model.MatchDeferred:
		if !m.Due(now) {
			return false, nil
		}
		won, err := u.matches.MarkAccepted(ctx, m.ID, now)
		if err != nil {
			return false, err
		}
		if won {
			metrics.IncMatchDecision("accepted")
			u.log.Info().Str("match_id", m.ID).Msg("match accepted")
		}
		return won, nil

	case model.MatchUndecided:
		verdict, err := u.verdict(ctx, m)
		if err != nil {
			return false, err
		}
		if !verdict {
			won, err := u.matches.MarkRejected(ctx, m.ID, now)
			if err != nil {
				return false, err
			}
			if won {
				metrics.IncMatchDecision("rejected")
				u.log.Info().Str("match_id", m.ID).Msg("match rejected")
			}
			return won, nil
		}

		delay := time.Duration(rand.Int63n(int64(u.maxDelay)))
		m.Defer(now.Add(delay))
		if err := u.matches.UpdateDecision(ctx, nil, m.ID, m.Decision); err != nil {
			return false, err
		}
		metrics.IncMatchDecision("deferred")
		u.log.Info().Str("match_id", m.ID).Dur("delay", delay).Msg("match deferred")
		return true, nil

	default:
		return false, nil
	}
}

// verdict asks the generative collaborator for a strict match / no match
// answer over both profiles.
func (u *matchmakerUC) verdict(ctx context.Context, m *model.Match) (bool, error) {
	a, err := u.profiles.FindByID(ctx, nil, m.ProfileID)
	if err != nil {
		return false, fmt.Errorf("load profile %s: %w", m.ProfileID, err)
	}
	b, err := u.profiles.FindByID(ctx, nil, m.MatchedProfileID)
	if err != nil {
		return false, fmt.Errorf("load profile %s: %w", m.MatchedProfileID, err)
	}

	now := time.Now()
	reply, err := u.ai.Complete(ctx, []adapter.Message{
		{Role: "system", Content: verdictSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Profile 1: %s\nProfile 2: %s", rosterJSON(a, now), rosterJSON(b, now))},
		{Role: "system", Content: verdictFormatPrompt},
	}, adapter.ChatOptions{Model: u.model, Temperature: 0.1})
	if err != nil {
		return false, fmt.Errorf("verdict call: %w", err)
	}

	// Anything but a clean "match" is treated as a no.
	return strings.EqualFold(strings.TrimSpace(reply), "match"), nil
}
