// internal/listings/handlers.go

package listings

import (
	"context"
	"encoding/json"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/printhive/printhive-backend/internal/auth"
	"github.com/printhive/printhive-backend/internal/common/utils"
)

type Handler struct {
	service       Service
	maxUploadSize int64
}

func NewHandler(service Service, maxUploadSize int64) *Handler {
	if maxUploadSize == 0 {
		maxUploadSize = 50 << 20
	}
	return &Handler{service: service, maxUploadSize: maxUploadSize}
}

// RegisterRoutes registers all listing routes
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	api := router.PathPrefix("/api/v1/listings").Subrouter()

	// Public browse endpoints
	api.HandleFunc("", handler.ListActive).Methods("GET")
	api.HandleFunc("/nearby", handler.Nearby).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}", handler.GetListing).Methods("GET")

	// Seller endpoints
	api.HandleFunc("", authMiddleware(handler.CreateListing)).Methods("POST")
	api.HandleFunc("/mine", authMiddleware(handler.ListMine)).Methods("GET")
	api.HandleFunc("/{id:[0-9]+}", authMiddleware(handler.UpdateListing)).Methods("PUT", "PATCH")
	api.HandleFunc("/{id:[0-9]+}", authMiddleware(handler.DeleteListing)).Methods("DELETE")
	api.HandleFunc("/{id:[0-9]+}/photos", authMiddleware(handler.UploadPhoto)).Methods("POST")
	api.HandleFunc("/{id:[0-9]+}/model", authMiddleware(handler.UploadModelFile)).Methods("POST")
}

// CreateListing handles POST /api/v1/listings
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	listing, err := h.service.CreateListing(r.Context(), sellerID, &req)
	if err != nil {
		log.Printf("Failed to create listing for seller %d: %v", sellerID, err)
		utils.ErrorResponse(w, "Failed to create listing", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, listing, http.StatusCreated)
}

// GetListing handles GET /api/v1/listings/{id}
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid listing id", http.StatusBadRequest)
		return
	}

	listing, err := h.service.GetListing(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.SuccessResponse(w, listing, http.StatusOK)
}

// ListActive handles GET /api/v1/listings
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.service.ListActive(r.Context(), limit, offset)
	if err != nil {
		log.Printf("Failed to list listings: %v", err)
		utils.ErrorResponse(w, "Failed to list listings", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, items, http.StatusOK)
}

// ListMine handles GET /api/v1/listings/mine
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.service.ListBySeller(r.Context(), sellerID)
	if err != nil {
		log.Printf("Failed to list listings for seller %d: %v", sellerID, err)
		utils.ErrorResponse(w, "Failed to list listings", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, items, http.StatusOK)
}

// Nearby handles GET /api/v1/listings/nearby?lat=..&lng=..&radius_km=..&limit=..
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		utils.ErrorResponse(w, "Invalid lat", http.StatusBadRequest)
		return
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		utils.ErrorResponse(w, "Invalid lng", http.StatusBadRequest)
		return
	}

	q := NearbyQuery{Latitude: lat, Longitude: lng}
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		q.RadiusKM, _ = strconv.ParseFloat(raw, 64)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		q.Limit, _ = strconv.Atoi(raw)
	}

	items, err := h.service.Nearby(r.Context(), q)
	if err != nil {
		log.Printf("Failed to find nearby listings: %v", err)
		utils.ErrorResponse(w, "Failed to find nearby listings", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, items, http.StatusOK)
}

// UpdateListing handles PUT /api/v1/listings/{id}
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid listing id", http.StatusBadRequest)
		return
	}

	var req UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	listing, err := h.service.UpdateListing(r.Context(), sellerID, id, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.SuccessResponse(w, listing, http.StatusOK)
}

// DeleteListing handles DELETE /api/v1/listings/{id}
func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid listing id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteListing(r.Context(), sellerID, id); err != nil {
		h.writeError(w, err)
		return
	}

	utils.MessageResponse(w, "Listing deleted", http.StatusOK)
}

// UploadPhoto handles POST /api/v1/listings/{id}/photos
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, h.service.UploadPhoto)
}

// UploadModelFile handles POST /api/v1/listings/{id}/model
func (h *Handler) UploadModelFile(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, h.service.UploadModelFile)
}

type uploadFunc func(ctx context.Context, sellerID, id int64, file multipart.File, header *multipart.FileHeader) (string, error)

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, upload uploadFunc) {
	sellerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid listing id", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		utils.ErrorResponse(w, "File too large or invalid form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.ErrorResponse(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := upload(r.Context(), sellerID, id, file, header)
	if err != nil {
		h.writeError(w, err)
		return
	}

	utils.SuccessResponse(w, map[string]string{"url": url}, http.StatusCreated)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch err {
	case ErrListingNotFound:
		utils.ErrorResponse(w, "Listing not found", http.StatusNotFound)
	case ErrNotOwner:
		utils.ErrorResponse(w, "Forbidden", http.StatusForbidden)
	default:
		log.Printf("Listing request failed: %v", err)
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
