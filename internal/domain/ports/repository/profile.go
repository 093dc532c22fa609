package repository

import (
	"context"

	"hotorbot/internal/domain/model"
)

type ProfileRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Profile, error)
	Save(ctx context.Context, tx Tx, p *model.Profile) error
	UpdateBlocks(ctx context.Context, tx Tx, id string, blocks []model.Block) error
	UpdatePhotos(ctx context.Context, tx Tx, id string, photos []model.Photo) error
	UpdateSessions(ctx context.Context, tx Tx, id string, sessions []model.Session) error
}
