// internal/messaging/routes.go

package messaging

import (
	"net/http"

	"github.com/gorilla/mux"
)

// AuthMiddleware type for the authentication middleware function
type AuthMiddleware func(http.HandlerFunc) http.HandlerFunc

// RegisterRoutes registers all messaging routes
func RegisterRoutes(router *mux.Router, handler *MessageHandler, authMiddleware AuthMiddleware) {
	api := router.PathPrefix("/api/v1/messages").Subrouter()

	// Conversation endpoints
	api.HandleFunc("/conversations", authMiddleware(handler.GetInbox)).Methods("GET")
	api.HandleFunc("/conversation", authMiddleware(handler.OpenConversation)).Methods("GET")

	// Message endpoints
	api.HandleFunc("", authMiddleware(handler.SendMessage)).Methods("POST")
	api.HandleFunc("/read", authMiddleware(handler.MarkRead)).Methods("POST")

	// Sale confirmation endpoints
	api.HandleFunc("/confirmation", authMiddleware(handler.GetSaleConfirmation)).Methods("GET")
	api.HandleFunc("/confirm-sale", authMiddleware(handler.ConfirmSale)).Methods("POST")

	// WebSocket endpoint
	api.HandleFunc("/ws", authMiddleware(handler.HandleWebSocket)).Methods("GET")
}
