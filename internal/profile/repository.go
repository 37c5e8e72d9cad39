// internal/profile/repository.go

package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByUserID(ctx context.Context, userID int64) (*Profile, error)
	Update(ctx context.Context, profile *Profile) error
	GetNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	GetAccountType(ctx context.Context, userID int64) (string, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, profile *Profile) error {
	query := `
        INSERT INTO profiles (user_id, full_name, account_type, bio, location, latitude, longitude, avatar_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx, query,
		profile.UserID, profile.FullName, profile.AccountType,
		profile.Bio, profile.Location, profile.Latitude, profile.Longitude, profile.AvatarURL,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID int64) (*Profile, error) {
	var profile Profile
	query := `
        SELECT user_id, full_name, account_type, bio, location, latitude, longitude, avatar_url, created_at, updated_at
        FROM profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *postgresRepository) Update(ctx context.Context, profile *Profile) error {
	query := `
        UPDATE profiles
        SET full_name = $1, bio = $2, location = $3, latitude = $4, longitude = $5,
            avatar_url = $6, updated_at = CURRENT_TIMESTAMP
        WHERE user_id = $7
        RETURNING updated_at`

	err := r.db.QueryRowContext(
		ctx, query,
		profile.FullName, profile.Bio, profile.Location,
		profile.Latitude, profile.Longitude, profile.AvatarURL, profile.UserID,
	).Scan(&profile.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// GetNames resolves user ids to display names in one query. Unknown
// ids are simply absent from the map.
func (r *postgresRepository) GetNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	query := `SELECT user_id, full_name FROM profiles WHERE user_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *postgresRepository) GetAccountType(ctx context.Context, userID int64) (string, error) {
	var accountType string
	query := `SELECT account_type FROM profiles WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &accountType, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrProfileNotFound
		}
		return "", fmt.Errorf("failed to get account type: %w", err)
	}
	return accountType, nil
}
