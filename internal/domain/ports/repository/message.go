package repository

import (
	"context"

	"hotorbot/internal/domain/model"
)

type MessageRepository interface {
	// ListByMatch returns the match's chat thread ordered oldest first.
	ListByMatch(ctx context.Context, matchID string) ([]*model.ChatMessage, error)
	Insert(ctx context.Context, tx Tx, msg *model.ChatMessage) error
}
