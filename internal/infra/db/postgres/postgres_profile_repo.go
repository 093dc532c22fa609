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

var _ repository.ProfileRepository = (*profileRepo)(nil)

// profileRepo persists the profile aggregate. Photos, blocks and interview
// sessions live in jsonb columns on the profile row; the aggregate is only
// ever mutated by one orchestration step at a time, so no row versioning is
// needed.
type profileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

const profileColumns = `id, COALESCE(owner_user_id, ''), first_name, gender, birth_date,
display_location, photos, blocks, sessions, created_at, updated_at`

func (r *profileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanProfile(row)
}

func (r *profileRepo) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()

	photos, blocks, sessions, err := marshalProfileJSON(p)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO profiles (id, owner_user_id, first_name, gender, birth_date,
                      display_location, photos, blocks, sessions, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
  first_name = EXCLUDED.first_name,
  gender = EXCLUDED.gender,
  birth_date = EXCLUDED.birth_date,
  display_location = EXCLUDED.display_location,
  photos = EXCLUDED.photos,
  blocks = EXCLUDED.blocks,
  sessions = EXCLUDED.sessions,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.OwnerUserID, p.FirstName, p.Gender, p.BirthDate,
		p.DisplayLocation, photos, blocks, sessions, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *profileRepo) UpdateBlocks(ctx context.Context, tx repository.Tx, id string, blocks []model.Block) error {
	return r.updateJSONColumn(ctx, tx, id, "blocks", blocks)
}

func (r *profileRepo) UpdatePhotos(ctx context.Context, tx repository.Tx, id string, photos []model.Photo) error {
	return r.updateJSONColumn(ctx, tx, id, "photos", photos)
}

func (r *profileRepo) UpdateSessions(ctx context.Context, tx repository.Tx, id string, sessions []model.Session) error {
	return r.updateJSONColumn(ctx, tx, id, "sessions", sessions)
}

func (r *profileRepo) updateJSONColumn(ctx context.Context, tx repository.Tx, id, column string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", column, err)
	}
	q := `UPDATE profiles SET ` + column + ` = $2, updated_at = $3 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, b, time.Now())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalProfileJSON(p *model.Profile) (photos, blocks, sessions []byte, err error) {
	if photos, err = json.Marshal(p.Photos); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal photos: %w", err)
	}
	if blocks, err = json.Marshal(p.Blocks); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal blocks: %w", err)
	}
	if sessions, err = json.Marshal(p.Sessions); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal sessions: %w", err)
	}
	return photos, blocks, sessions, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p        model.Profile
		photos   []byte
		blocks   []byte
		sessions []byte
	)
	err := row.Scan(
		&p.ID, &p.OwnerUserID, &p.FirstName, &p.Gender, &p.BirthDate,
		&p.DisplayLocation, &photos, &blocks, &sessions, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &p.Photos); err != nil {
			return nil, fmt.Errorf("unmarshal photos: %w", err)
		}
	}
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &p.Blocks); err != nil {
			return nil, fmt.Errorf("unmarshal blocks: %w", err)
		}
	}
	if len(sessions) > 0 {
		if err := json.Unmarshal(sessions, &p.Sessions); err != nil {
			return nil, fmt.Errorf("unmarshal sessions: %w", err)
		}
	}
	return &p, nil
}
