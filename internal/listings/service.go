// internal/listings/service.go

package listings

import (
	"context"
	"mime/multipart"
)

// Service interface. GetTitles doubles as the directory the messaging
// package consumes.
type Service interface {
	CreateListing(ctx context.Context, sellerID int64, req *CreateListingRequest) (*Listing, error)
	GetListing(ctx context.Context, id int64) (*Listing, error)
	ListActive(ctx context.Context, limit, offset int) ([]*Listing, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]*Listing, error)
	UpdateListing(ctx context.Context, sellerID, id int64, req *UpdateListingRequest) (*Listing, error)
	DeleteListing(ctx context.Context, sellerID, id int64) error
	Nearby(ctx context.Context, q NearbyQuery) ([]*Listing, error)
	GetTitles(ctx context.Context, listingIDs []int64) (map[int64]string, error)
	UploadPhoto(ctx context.Context, sellerID, id int64, file multipart.File, header *multipart.FileHeader) (string, error)
	UploadModelFile(ctx context.Context, sellerID, id int64, file multipart.File, header *multipart.FileHeader) (string, error)
}

type service struct {
	repo    Repository
	uploads *UploadService

	defaultRadiusKM  float64
	maxNearbyResults int
}

func NewService(repo Repository, uploads *UploadService, defaultRadiusKM float64, maxNearbyResults int) Service {
	if defaultRadiusKM <= 0 {
		defaultRadiusKM = 25
	}
	if maxNearbyResults <= 0 {
		maxNearbyResults = 50
	}
	return &service{
		repo:             repo,
		uploads:          uploads,
		defaultRadiusKM:  defaultRadiusKM,
		maxNearbyResults: maxNearbyResults,
	}
}

func (s *service) CreateListing(ctx context.Context, sellerID int64, req *CreateListingRequest) (*Listing, error) {
	listing := &Listing{
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Material:    req.Material,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *service) GetListing(ctx context.Context, id int64) (*Listing, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListActive(ctx context.Context, limit, offset int) ([]*Listing, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListActive(ctx, limit, offset)
}

func (s *service) ListBySeller(ctx context.Context, sellerID int64) ([]*Listing, error) {
	return s.repo.ListBySeller(ctx, sellerID)
}

func (s *service) UpdateListing(ctx context.Context, sellerID, id int64, req *UpdateListingRequest) (*Listing, error) {
	listing, err := s.ownedListing(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Price != nil {
		listing.Price = *req.Price
	}
	if req.Category != nil {
		listing.Category = *req.Category
	}
	if req.Material != nil {
		listing.Material = req.Material
	}
	if req.IsActive != nil {
		listing.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *service) DeleteListing(ctx context.Context, sellerID, id int64) error {
	if _, err := s.ownedListing(ctx, sellerID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id, sellerID)
}

func (s *service) Nearby(ctx context.Context, q NearbyQuery) ([]*Listing, error) {
	if q.RadiusKM <= 0 {
		q.RadiusKM = s.defaultRadiusKM
	}
	if q.Limit < 1 || q.Limit > s.maxNearbyResults {
		q.Limit = s.maxNearbyResults
	}
	return s.repo.Nearby(ctx, q)
}

func (s *service) GetTitles(ctx context.Context, listingIDs []int64) (map[int64]string, error) {
	return s.repo.GetTitles(ctx, listingIDs)
}

func (s *service) UploadPhoto(ctx context.Context, sellerID, id int64, file multipart.File, header *multipart.FileHeader) (string, error) {
	if _, err := s.ownedListing(ctx, sellerID, id); err != nil {
		return "", err
	}

	url, err := s.uploads.UploadFile(file, header, UploadKindPhoto)
	if err != nil {
		return "", err
	}
	if err := s.repo.AppendPhoto(ctx, id, url); err != nil {
		return "", err
	}
	return url, nil
}

func (s *service) UploadModelFile(ctx context.Context, sellerID, id int64, file multipart.File, header *multipart.FileHeader) (string, error) {
	if _, err := s.ownedListing(ctx, sellerID, id); err != nil {
		return "", err
	}

	url, err := s.uploads.UploadFile(file, header, UploadKindModel)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetModelFile(ctx, id, url); err != nil {
		return "", err
	}
	return url, nil
}

func (s *service) ownedListing(ctx context.Context, sellerID, id int64) (*Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, ErrNotOwner
	}
	return listing, nil
}
