package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/repository"
)

var _ repository.MatchRepository = (*matchRepo)(nil)

type matchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *matchRepo {
	return &matchRepo{pool: pool}
}

const matchColumns = `id, profile_id, matched_profile_id, data, match_accepted_at, match_rejected_at, created_at`

func (r *matchRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Match, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+matchColumns+` FROM matches WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanMatch(row)
}

func (r *matchRepo) Save(ctx context.Context, tx repository.Tx, m *model.Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	data, err := json.Marshal(m.Decision)
	if err != nil {
		return fmt.Errorf("marshal match decision: %w", err)
	}

	const q = `
INSERT INTO matches (id, profile_id, matched_profile_id, data, match_accepted_at, match_rejected_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  data = EXCLUDED.data,
  match_accepted_at = EXCLUDED.match_accepted_at,
  match_rejected_at = EXCLUDED.match_rejected_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		m.ID, m.ProfileID, m.MatchedProfileID, data, m.MatchAcceptedAt, m.MatchRejectedAt, m.CreatedAt)
	return err
}

// FindPendingBotMatches selects undecided/deferred matches where exactly one
// side is bot-owned.
func (r *matchRepo) FindPendingBotMatches(ctx context.Context) ([]*model.Match, error) {
	const q = `
SELECT m.id, m.profile_id, m.matched_profile_id, m.data, m.match_accepted_at, m.match_rejected_at, m.created_at
FROM matches m
JOIN profiles a ON a.id = m.profile_id
JOIN profiles b ON b.id = m.matched_profile_id
WHERE m.match_accepted_at IS NULL
  AND m.match_rejected_at IS NULL
  AND ((a.owner_user_id IS NULL) <> (b.owner_user_id IS NULL))
ORDER BY m.created_at;`

	rows, err := pickRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *matchRepo) UpdateDecision(ctx context.Context, tx repository.Tx, id string, d model.MatchDecision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal match decision: %w", err)
	}
	const q = `UPDATE matches SET data = $2 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, data)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *matchRepo) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
UPDATE matches SET match_accepted_at = $2
WHERE id = $1 AND match_accepted_at IS NULL AND match_rejected_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, nil, q, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *matchRepo) MarkRejected(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
UPDATE matches SET match_rejected_at = $2
WHERE id = $1 AND match_accepted_at IS NULL AND match_rejected_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, nil, q, id, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanMatch(row pgx.Row) (*model.Match, error) {
	var (
		m    model.Match
		data []byte
	)
	err := row.Scan(&m.ID, &m.ProfileID, &m.MatchedProfileID, &data, &m.MatchAcceptedAt, &m.MatchRejectedAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m.Decision); err != nil {
			return nil, fmt.Errorf("unmarshal match decision: %w", err)
		}
	}
	return &m, nil
}
