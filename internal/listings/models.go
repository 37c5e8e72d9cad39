// internal/listings/models.go

package listings

import (
	"errors"
	"time"

	"github.com/lib/pq"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNotOwner        = errors.New("listing belongs to another seller")
)

// Listing is a 3D-printed item (or print-on-demand offer) posted by a
// seller.
type Listing struct {
	ID           int64          `json:"id" db:"id"`
	SellerID     int64          `json:"seller_id" db:"seller_id"`
	Title        string         `json:"title" db:"title"`
	Description  string         `json:"description" db:"description"`
	Price        float64        `json:"price" db:"price"`
	Category     string         `json:"category" db:"category"`
	Material     *string        `json:"material,omitempty" db:"material"`
	PhotoURLs    pq.StringArray `json:"photo_urls" db:"photo_urls"`
	ModelFileURL *string        `json:"model_file_url,omitempty" db:"model_file_url"`
	Latitude     *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64       `json:"longitude,omitempty" db:"longitude"`
	IsActive     bool           `json:"is_active" db:"is_active"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`

	// Resolved fields
	SellerName string   `json:"seller_name,omitempty" db:"-"`
	DistanceKM *float64 `json:"distance_km,omitempty" db:"distance_km"`
}

type CreateListingRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=150"`
	Description string   `json:"description" validate:"required,max=5000"`
	Price       float64  `json:"price" validate:"required,gt=0"`
	Category    string   `json:"category" validate:"required,max=50"`
	Material    *string  `json:"material,omitempty" validate:"omitempty,max=50"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

type UpdateListingRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=3,max=150"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=50"`
	Material    *string  `json:"material,omitempty" validate:"omitempty,max=50"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// NearbyQuery is the parsed GET /nearby parameters
type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKM  float64
	Limit     int
}
