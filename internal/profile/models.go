// internal/profile/models.go

package profile

import (
	"errors"
	"time"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

// Profile is the marketplace-facing identity of a user. account_type
// decides which side of a sale they take.
type Profile struct {
	UserID      int64     `json:"user_id" db:"user_id"`
	FullName    string    `json:"full_name" db:"full_name"`
	AccountType string    `json:"account_type" db:"account_type"` // buyer or seller
	Bio         *string   `json:"bio,omitempty" db:"bio"`
	Location    *string   `json:"location,omitempty" db:"location"`
	Latitude    *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64  `json:"longitude,omitempty" db:"longitude"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type UpdateProfileRequest struct {
	FullName  *string  `json:"full_name,omitempty" validate:"omitempty,min=2,max=100"`
	Bio       *string  `json:"bio,omitempty" validate:"omitempty,max=500"`
	Location  *string  `json:"location,omitempty" validate:"omitempty,max=100"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	AvatarURL *string  `json:"avatar_url,omitempty" validate:"omitempty,url"`
}
