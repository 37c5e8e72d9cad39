// internal/auth/handlers.go

package auth

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/printhive/printhive-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all auth routes
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	api := router.PathPrefix("/api/v1/auth").Subrouter()

	api.HandleFunc("/signup", handler.Signup).Methods("POST")
	api.HandleFunc("/signin", handler.Signin).Methods("POST")
	api.HandleFunc("/refresh", handler.Refresh).Methods("POST")
	api.HandleFunc("/logout", authMiddleware(handler.Logout)).Methods("POST")
	api.HandleFunc("/me", authMiddleware(handler.Me)).Methods("GET")
}

// Signup handles POST /api/v1/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.Signup(r.Context(), &req)
	if err != nil {
		switch err {
		case ErrEmailAlreadyExists, ErrUsernameAlreadyExists:
			utils.ErrorResponse(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("Signup failed: %v", err)
			utils.ErrorResponse(w, "Failed to create account", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, resp, http.StatusCreated)
}

// Signin handles POST /api/v1/auth/signin
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.Signin(r.Context(), &req)
	if err != nil {
		if err == ErrInvalidCredentials {
			utils.ErrorResponse(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Printf("Signin failed: %v", err)
		utils.ErrorResponse(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, resp, http.StatusOK)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		utils.ErrorResponse(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	utils.SuccessResponse(w, resp, http.StatusOK)
}

// Logout handles POST /api/v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		utils.ErrorResponse(w, "Missing authorization header", http.StatusUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		log.Printf("Logout failed: %v", err)
		utils.ErrorResponse(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Logged out", http.StatusOK)
}

// Me handles GET /api/v1/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		if err == ErrUserNotFound {
			utils.ErrorResponse(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to load user %d: %v", userID, err)
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, user, http.StatusOK)
}
