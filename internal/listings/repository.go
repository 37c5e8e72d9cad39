// internal/listings/repository.go

package listings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository interface {
	Create(ctx context.Context, listing *Listing) error
	GetByID(ctx context.Context, id int64) (*Listing, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]*Listing, error)
	ListActive(ctx context.Context, limit, offset int) ([]*Listing, error)
	Update(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id, sellerID int64) error
	Nearby(ctx context.Context, q NearbyQuery) ([]*Listing, error)
	GetTitles(ctx context.Context, listingIDs []int64) (map[int64]string, error)
	AppendPhoto(ctx context.Context, id int64, photoURL string) error
	SetModelFile(ctx context.Context, id int64, fileURL string) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const listingColumns = `id, seller_id, title, description, price, category, material,
       photo_urls, model_file_url, latitude, longitude, is_active, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, listing *Listing) error {
	query := `
        INSERT INTO listings (seller_id, title, description, price, category, material,
                              photo_urls, latitude, longitude, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
        RETURNING id, is_active, created_at, updated_at`

	if listing.PhotoURLs == nil {
		listing.PhotoURLs = pq.StringArray{}
	}

	err := r.db.QueryRowContext(
		ctx, query,
		listing.SellerID, listing.Title, listing.Description, listing.Price,
		listing.Category, listing.Material, listing.PhotoURLs,
		listing.Latitude, listing.Longitude,
	).Scan(&listing.ID, &listing.IsActive, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Listing, error) {
	var listing Listing
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)
	if err := r.db.GetContext(ctx, &listing, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

func (r *postgresRepository) ListBySeller(ctx context.Context, sellerID int64) ([]*Listing, error) {
	var items []*Listing
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE seller_id = $1 ORDER BY created_at DESC`, listingColumns)
	if err := r.db.SelectContext(ctx, &items, query, sellerID); err != nil {
		return nil, fmt.Errorf("failed to list seller listings: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) ListActive(ctx context.Context, limit, offset int) ([]*Listing, error) {
	var items []*Listing
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE is_active = TRUE
        ORDER BY created_at DESC LIMIT $1 OFFSET $2`, listingColumns)
	if err := r.db.SelectContext(ctx, &items, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) Update(ctx context.Context, listing *Listing) error {
	query := `
        UPDATE listings
        SET title = $1, description = $2, price = $3, category = $4, material = $5,
            is_active = $6, updated_at = CURRENT_TIMESTAMP
        WHERE id = $7 AND seller_id = $8
        RETURNING updated_at`

	err := r.db.QueryRowContext(
		ctx, query,
		listing.Title, listing.Description, listing.Price, listing.Category,
		listing.Material, listing.IsActive, listing.ID, listing.SellerID,
	).Scan(&listing.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrListingNotFound
		}
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, id, sellerID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1 AND seller_id = $2`, id, sellerID)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrListingNotFound
	}
	return nil
}

// Nearby returns active listings within radius km of a point, closest
// first, using the haversine formula directly in SQL.
func (r *postgresRepository) Nearby(ctx context.Context, q NearbyQuery) ([]*Listing, error) {
	query := fmt.Sprintf(`
        SELECT %s,
               (6371 * acos(
                   least(1.0,
                       cos(radians($1)) * cos(radians(latitude)) *
                       cos(radians(longitude) - radians($2)) +
                       sin(radians($1)) * sin(radians(latitude))
                   )
               )) AS distance_km
        FROM listings
        WHERE is_active = TRUE AND latitude IS NOT NULL AND longitude IS NOT NULL
          AND (6371 * acos(
                   least(1.0,
                       cos(radians($1)) * cos(radians(latitude)) *
                       cos(radians(longitude) - radians($2)) +
                       sin(radians($1)) * sin(radians(latitude))
                   )
               )) <= $3
        ORDER BY distance_km ASC
        LIMIT $4`, listingColumns)

	var items []*Listing
	if err := r.db.SelectContext(ctx, &items, query, q.Latitude, q.Longitude, q.RadiusKM, q.Limit); err != nil {
		return nil, fmt.Errorf("failed to find nearby listings: %w", err)
	}
	return items, nil
}

// GetTitles resolves listing ids to titles in one query
func (r *postgresRepository) GetTitles(ctx context.Context, listingIDs []int64) (map[int64]string, error) {
	titles := make(map[int64]string, len(listingIDs))
	if len(listingIDs) == 0 {
		return titles, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, title FROM listings WHERE id = ANY($1)`, pq.Array(listingIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (r *postgresRepository) AppendPhoto(ctx context.Context, id int64, photoURL string) error {
	query := `UPDATE listings SET photo_urls = array_append(photo_urls, $1), updated_at = CURRENT_TIMESTAMP
              WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, photoURL, id)
	if err != nil {
		return fmt.Errorf("failed to append photo: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *postgresRepository) SetModelFile(ctx context.Context, id int64, fileURL string) error {
	query := `UPDATE listings SET model_file_url = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, fileURL, id)
	if err != nil {
		return fmt.Errorf("failed to set model file: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrListingNotFound
	}
	return nil
}
