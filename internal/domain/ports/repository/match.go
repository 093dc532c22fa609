package repository

import (
	"context"
	"time"

	"hotorbot/internal/domain/model"
)

type MatchRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Match, error)
	Save(ctx context.Context, tx Tx, m *model.Match) error

	// FindPendingBotMatches returns matches where exactly one side is
	// bot-owned and neither accepted nor rejected is set.
	FindPendingBotMatches(ctx context.Context) ([]*model.Match, error)

	UpdateDecision(ctx context.Context, tx Tx, id string, d model.MatchDecision) error

	// MarkAccepted sets match_accepted_at only when it is still unset,
	// reporting whether this call won. Overlapping sweeps accept once.
	MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id string, at time.Time) (bool, error)
}
