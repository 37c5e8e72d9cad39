// internal/messaging/handlers.go

package messaging

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/printhive/printhive-backend/internal/auth"
	"github.com/printhive/printhive-backend/internal/common/utils"
)

type MessageHandler struct {
	service  Service
	notifier Notifier
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewMessageHandler(service Service, notifier Notifier, hub *Hub) *MessageHandler {
	return &MessageHandler{
		service:  service,
		notifier: notifier,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens in middleware; the origin check is the
			// proxy's job.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetInbox handles GET /api/v1/messages/conversations
func (h *MessageHandler) GetInbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := h.service.GetInbox(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to build inbox for user %d: %v", userID, err)
		utils.ErrorResponse(w, "Failed to load conversations", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, conversations, http.StatusOK)
}

// OpenConversation handles GET /api/v1/messages/conversation
// Query params: counterparty_id (required), listing_id, attachment
func (h *MessageHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	counterpartyID, listingID, ok := parseConversationParams(w, r)
	if !ok {
		return
	}

	session := NewChatSession(h.service, h.notifier, actor, counterpartyID, listingID, r.URL.Query().Get("attachment"))
	view, err := session.Open(r.Context())
	if err != nil {
		h.writeError(w, actor.UserID, "open conversation", err)
		return
	}

	utils.SuccessResponse(w, view, http.StatusOK)
}

// SendMessage handles POST /api/v1/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := h.service.SendMessage(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, actor.UserID, "send message", err)
		return
	}

	utils.SuccessResponse(w, message, http.StatusCreated)
}

// MarkRead handles POST /api/v1/messages/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.MarkMessagesRead(r.Context(), userID, req.MessageIDs); err != nil {
		log.Printf("Failed to mark messages read for user %d: %v", userID, err)
		utils.ErrorResponse(w, "Failed to mark messages read", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Messages marked as read", http.StatusOK)
}

// GetSaleConfirmation handles GET /api/v1/messages/confirmation
func (h *MessageHandler) GetSaleConfirmation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	counterpartyID, listingID, ok := parseConversationParams(w, r)
	if !ok {
		return
	}

	sc, err := h.service.GetSaleConfirmation(r.Context(), actor, counterpartyID, listingID)
	if err != nil {
		h.writeError(w, actor.UserID, "get sale confirmation", err)
		return
	}

	utils.SuccessResponse(w, sc, http.StatusOK)
}

// ConfirmSale handles POST /api/v1/messages/confirm-sale
func (h *MessageHandler) ConfirmSale(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	var req ConfirmSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	session := NewChatSession(h.service, h.notifier, actor, req.CounterpartyID, req.ListingID, "")
	view, err := session.ConfirmSale(r.Context())
	if err != nil {
		h.writeError(w, actor.UserID, "confirm sale", err)
		return
	}

	utils.SuccessResponse(w, view, http.StatusOK)
}

// HandleWebSocket handles GET /api/v1/messages/ws
func (h *MessageHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket for user %d: %v", userID, err)
		return
	}

	NewClient(h.hub, h.service, conn, userID).Start()
}

func (h *MessageHandler) resolveActor(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return Identity{}, false
	}

	actor, err := h.service.ResolveIdentity(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to resolve identity for user %d: %v", userID, err)
		utils.ErrorResponse(w, "Failed to resolve account", http.StatusInternalServerError)
		return Identity{}, false
	}
	return actor, true
}

func (h *MessageHandler) writeError(w http.ResponseWriter, userID int64, op string, err error) {
	switch err {
	case ErrEmptyContent, ErrSelfSend:
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	case ErrConfirmationNotFound:
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
	case ErrConfirmationConflict:
		utils.ErrorResponse(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("Failed to %s for user %d: %v", op, userID, err)
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parseConversationParams(w http.ResponseWriter, r *http.Request) (counterpartyID int64, listingID *int64, ok bool) {
	counterpartyID, err := strconv.ParseInt(r.URL.Query().Get("counterparty_id"), 10, 64)
	if err != nil || counterpartyID < 1 {
		utils.ErrorResponse(w, "Invalid counterparty_id", http.StatusBadRequest)
		return 0, nil, false
	}

	if raw := r.URL.Query().Get("listing_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			utils.ErrorResponse(w, "Invalid listing_id", http.StatusBadRequest)
			return 0, nil, false
		}
		listingID = &id
	}

	return counterpartyID, listingID, true
}
