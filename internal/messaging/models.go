// internal/messaging/models.go

package messaging

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyContent         = errors.New("message content cannot be empty")
	ErrSelfSend             = errors.New("sender and receiver must be different users")
	ErrMessageNotFound      = errors.New("message not found")
	ErrConfirmationNotFound = errors.New("sale confirmation not found")
	ErrConfirmationExists   = errors.New("sale confirmation already exists")
	ErrConfirmationConflict = errors.New("sale confirmation was updated concurrently, try again")
)

// Role is the side a user takes in a conversation about a listing
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Other returns the counterpart role
func (r Role) Other() Role {
	if r == RoleSeller {
		return RoleBuyer
	}
	return RoleSeller
}

// Identity is the resolved caller passed into every operation.
// No ambient auth state: controllers receive this explicitly.
type Identity struct {
	UserID int64
	Role   Role
}

// Message is a single chat message between two users, optionally tied
// to a marketplace listing. Immutable after insert except is_read.
type Message struct {
	ID         int64     `json:"id" db:"id"`
	SenderID   int64     `json:"sender_id" db:"sender_id"`
	ReceiverID int64     `json:"receiver_id" db:"receiver_id"`
	ListingID  *int64    `json:"listing_id,omitempty" db:"listing_id"`
	Content    string    `json:"content" db:"content"`
	IsRead     bool      `json:"is_read" db:"is_read"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	// Resolved fields
	SenderName string `json:"sender_name,omitempty" db:"-"`
}

// Conversation is a derived grouping of messages by (counterparty, listing).
// It is never persisted; it is always recomputed from the message log.
type Conversation struct {
	CounterpartyID   int64     `json:"counterparty_id"`
	ListingID        *int64    `json:"listing_id,omitempty"`
	CounterpartyName string    `json:"counterparty_name,omitempty"`
	ListingTitle     *string   `json:"listing_title,omitempty"`
	LastMessage      string    `json:"last_message"`
	LastMessageTime  time.Time `json:"last_message_time"`
	UnreadCount      int       `json:"unread_count"`
}

// SaleConfirmation is the mutual buyer/seller handshake record for a
// (listing, buyer, seller) triple. At most one row exists per triple.
// Once SaleCompleted is true the record is terminal.
type SaleConfirmation struct {
	ID                int64      `json:"id" db:"id"`
	ListingID         *int64     `json:"listing_id,omitempty" db:"listing_id"`
	BuyerID           int64      `json:"buyer_id" db:"buyer_id"`
	SellerID          int64      `json:"seller_id" db:"seller_id"`
	SellerConfirmed   bool       `json:"seller_confirmed" db:"seller_confirmed"`
	BuyerConfirmed    bool       `json:"buyer_confirmed" db:"buyer_confirmed"`
	SaleCompleted     bool       `json:"sale_completed" db:"sale_completed"`
	SellerConfirmedAt *time.Time `json:"seller_confirmed_at,omitempty" db:"seller_confirmed_at"`
	BuyerConfirmedAt  *time.Time `json:"buyer_confirmed_at,omitempty" db:"buyer_confirmed_at"`
	SaleCompletedAt   *time.Time `json:"sale_completed_at,omitempty" db:"sale_completed_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// ConfirmedBy reports whether the given role has already confirmed
func (sc *SaleConfirmation) ConfirmedBy(role Role) bool {
	if role == RoleSeller {
		return sc.SellerConfirmed
	}
	return sc.BuyerConfirmed
}

// ChatView is what an open conversation returns to the UI layer
type ChatView struct {
	Messages     []*Message        `json:"messages"`
	Confirmation *SaleConfirmation `json:"confirmation,omitempty"`
}

// Fixed message bodies. System messages are inserted by the service
// itself, never typed by a user.
const (
	defaultGreeting      = "Hi! I'm interested in your listing. Is it still available?"
	attachmentGreetingFn = "Hi! I'd like to get this model printed: %s"
	completionNotice     = "🎉 Sale confirmed by both parties! This order is now complete."
)

// ValidateNewMessage enforces the store-level message invariants:
// non-empty content and sender != receiver.
func ValidateNewMessage(senderID, receiverID int64, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if senderID == receiverID {
		return ErrSelfSend
	}
	return nil
}

// Request DTOs
type SendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" validate:"required"`
	ListingID  *int64 `json:"listing_id,omitempty"`
	Content    string `json:"content" validate:"required"`
}

type MarkReadRequest struct {
	MessageIDs []int64 `json:"message_ids" validate:"required,min=1"`
}

type ConfirmSaleRequest struct {
	CounterpartyID int64  `json:"counterparty_id" validate:"required"`
	ListingID      *int64 `json:"listing_id,omitempty"`
}
