package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/chronos/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

type ProfileRepository struct {
	db *Connection
}

func NewProfileRepository(db *Connection) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

// GetProfile returns the profile of userID. Ids that are not UUIDs cannot
// have a profile and yield model.ErrNotFound.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return model.Profile{}, model.ErrNotFound
	}

	var fullName *string
	query := `SELECT full_name FROM profiles WHERE id = $1`

	err = r.db.QueryRow(ctx, query, id).Scan(&fullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, model.ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	if fullName == nil {
		return model.Profile{}, nil
	}
	return model.Profile{FullName: *fullName}, nil
}

// UpsertProfile stores the full name of userID.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, userID string, profile model.Profile) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, model.ErrNoUser)
	}

	query := `INSERT INTO profiles (id, full_name, updated_at)
			  VALUES ($1, $2, now())
			  ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, updated_at = now()`

	if _, err := r.db.Exec(ctx, query, id, profile.FullName); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
