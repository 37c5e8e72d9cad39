// internal/profile/handlers.go

package profile

import (
	"encoding/json"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/printhive/printhive-backend/internal/auth"
	"github.com/printhive/printhive-backend/internal/common/utils"
)

// UploadFunc stores a file and returns its public URL. Wired to the
// shared listings uploader in main.
type UploadFunc func(file multipart.File, header *multipart.FileHeader) (string, error)

type Handler struct {
	service       Service
	upload        UploadFunc
	maxUploadSize int64
}

func NewHandler(service Service, upload UploadFunc, maxUploadSize int64) *Handler {
	if maxUploadSize == 0 {
		maxUploadSize = 10 << 20
	}
	return &Handler{service: service, upload: upload, maxUploadSize: maxUploadSize}
}

// RegisterRoutes registers all profile routes
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	api := router.PathPrefix("/api/v1/profiles").Subrouter()

	api.HandleFunc("/me", authMiddleware(handler.GetOwnProfile)).Methods("GET")
	api.HandleFunc("/me", authMiddleware(handler.UpdateOwnProfile)).Methods("PUT", "PATCH")
	api.HandleFunc("/me/avatar", authMiddleware(handler.UploadAvatar)).Methods("POST")
	api.HandleFunc("/{userId:[0-9]+}", authMiddleware(handler.GetProfile)).Methods("GET")
}

// GetOwnProfile handles GET /api/v1/profiles/me
func (h *Handler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	h.writeProfile(w, r, userID)
}

// GetProfile handles GET /api/v1/profiles/{userId}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	h.writeProfile(w, r, userID)
}

// UpdateOwnProfile handles PUT /api/v1/profiles/me
func (h *Handler) UpdateOwnProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		if err == ErrProfileNotFound {
			utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to update profile for user %d: %v", userID, err)
		utils.ErrorResponse(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, profile, http.StatusOK)
}

// UploadAvatar handles POST /api/v1/profiles/me/avatar
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
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

	url, err := h.upload(file, header)
	if err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), userID, &UpdateProfileRequest{AvatarURL: &url})
	if err != nil {
		if err == ErrProfileNotFound {
			utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to set avatar for user %d: %v", userID, err)
		utils.ErrorResponse(w, "Failed to set avatar", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, updated, http.StatusOK)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if err == ErrProfileNotFound {
			utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to load profile for user %d: %v", userID, err)
		utils.ErrorResponse(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, profile, http.StatusOK)
}
