package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/repository"
)

var _ repository.MessageRepository = (*messageRepo)(nil)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) ListByMatch(ctx context.Context, matchID string) ([]*model.ChatMessage, error) {
	const q = `
SELECT id, match_id, sender_profile_id, content, created_at
FROM messages
WHERE match_id = $1
ORDER BY created_at;`

	rows, err := pickRows(ctx, r.pool, nil, q, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderProfileID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *messageRepo) Insert(ctx context.Context, tx repository.Tx, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO messages (id, match_id, sender_profile_id, content, created_at)
VALUES ($1, $2, $3, $4, $5);`
	_, err := execSQL(ctx, r.pool, tx, q, msg.ID, msg.MatchID, msg.SenderProfileID, msg.Content, msg.CreatedAt)
	return err
}
