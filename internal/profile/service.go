// internal/profile/service.go

package profile

import (
	"context"
)

// Service interface. GetNames and GetAccountType double as the
// directory the messaging package consumes.
type Service interface {
	CreateProfile(ctx context.Context, userID int64, fullName, accountType string) error
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*Profile, error)
	GetNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	GetAccountType(ctx context.Context, userID int64) (string, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateProfile(ctx context.Context, userID int64, fullName, accountType string) error {
	return s.repo.Create(ctx, &Profile{
		UserID:      userID,
		FullName:    fullName,
		AccountType: accountType,
	})
}

func (s *service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*Profile, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		profile.FullName = *req.FullName
	}
	if req.Bio != nil {
		profile.Bio = req.Bio
	}
	if req.Location != nil {
		profile.Location = req.Location
	}
	if req.Latitude != nil {
		profile.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		profile.Longitude = req.Longitude
	}
	if req.AvatarURL != nil {
		profile.AvatarURL = req.AvatarURL
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *service) GetNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	return s.repo.GetNames(ctx, userIDs)
}

func (s *service) GetAccountType(ctx context.Context, userID int64) (string, error) {
	return s.repo.GetAccountType(ctx, userID)
}
