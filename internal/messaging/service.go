// internal/messaging/service.go

package messaging

import (
	"context"
	"fmt"
	"log"
)

// Service is the messaging API consumed by handlers, the websocket hub
// and chat sessions.
type Service interface {
	// Identity
	ResolveIdentity(ctx context.Context, userID int64) (Identity, error)

	// Conversations
	ListConversation(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) ([]*Message, error)
	GetInbox(ctx context.Context, userID int64) ([]*Conversation, error)

	// Messages
	SendMessage(ctx context.Context, actor Identity, req *SendMessageRequest) (*Message, error)
	MarkMessagesRead(ctx context.Context, readerID int64, messageIDs []int64) error

	// Sale confirmations
	GetSaleConfirmation(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) (*SaleConfirmation, error)
	ConfirmSale(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) (*SaleConfirmation, error)
	EnsureConfirmationRecord(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) (*SaleConfirmation, error)

	// Hub management
	SetHub(hub *Hub)
}

type MessageService struct {
	repo     Repository
	profiles ProfileDirectory
	listings ListingDirectory
	notifier Notifier
	hub      *Hub

	markReadBatchLimit int
}

func NewService(repo Repository, profiles ProfileDirectory, listings ListingDirectory, notifier Notifier, markReadBatchLimit int) *MessageService {
	if markReadBatchLimit < 1 {
		markReadBatchLimit = 500
	}
	return &MessageService{
		repo:               repo,
		profiles:           profiles,
		listings:           listings,
		notifier:           notifier,
		markReadBatchLimit: markReadBatchLimit,
	}
}

// SetHub sets the hub after initialization to avoid circular dependency
func (s *MessageService) SetHub(hub *Hub) {
	s.hub = hub
}

// ResolveIdentity looks up the caller's account type and returns the
// explicit (user, role) pair every core operation takes.
func (s *MessageService) ResolveIdentity(ctx context.Context, userID int64) (Identity, error) {
	accountType, err := s.profiles.GetAccountType(ctx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve identity for user %d: %w", userID, err)
	}

	role := RoleBuyer
	if accountType == string(RoleSeller) {
		role = RoleSeller
	}
	return Identity{UserID: userID, Role: role}, nil
}

// ListConversation fetches one conversation, oldest message first
func (s *MessageService) ListConversation(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) ([]*Message, error) {
	return s.repo.ListMessagesBetween(ctx, actor.UserID, counterpartyID, listingID)
}

// GetInbox aggregates all of the user's messages into conversation
// summaries and resolves names and titles with one batch lookup each.
func (s *MessageService) GetInbox(ctx context.Context, userID int64) ([]*Conversation, error) {
	messages, err := s.repo.ListUserMessages(ctx, userID)
	if err != nil {
		return nil, err
	}

	conversations := BuildConversations(messages, userID)
	if len(conversations) == 0 {
		return conversations, nil
	}

	// Collect distinct ids before hitting the directories
	userIDSet := make(map[int64]struct{})
	listingIDSet := make(map[int64]struct{})
	for _, conv := range conversations {
		userIDSet[conv.CounterpartyID] = struct{}{}
		if conv.ListingID != nil {
			listingIDSet[*conv.ListingID] = struct{}{}
		}
	}

	names, err := s.profiles.GetNames(ctx, setToSlice(userIDSet))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve counterparty names: %w", err)
	}

	var titles map[int64]string
	if len(listingIDSet) > 0 {
		titles, err = s.listings.GetTitles(ctx, setToSlice(listingIDSet))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve listing titles: %w", err)
		}
	}

	for _, conv := range conversations {
		conv.CounterpartyName = names[conv.CounterpartyID]
		if conv.ListingID != nil {
			if title, ok := titles[*conv.ListingID]; ok {
				t := title
				conv.ListingTitle = &t
			}
		}
	}

	return conversations, nil
}

// SendMessage validates and inserts a user-typed message
func (s *MessageService) SendMessage(ctx context.Context, actor Identity, req *SendMessageRequest) (*Message, error) {
	return s.insertMessage(ctx, actor.UserID, req.ReceiverID, req.ListingID, req.Content, "user")
}

func (s *MessageService) insertMessage(ctx context.Context, senderID, receiverID int64, listingID *int64, content, kind string) (*Message, error) {
	if err := ValidateNewMessage(senderID, receiverID, content); err != nil {
		return nil, err
	}

	message := &Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		ListingID:  listingID,
		Content:    content,
	}
	if err := s.repo.InsertMessage(ctx, message); err != nil {
		return nil, err
	}

	messagesSentTotal.WithLabelValues(kind).Inc()

	if s.hub != nil {
		s.hub.NotifyNewMessage(message)
	}

	return message, nil
}

// MarkMessagesRead flips is_read on messages addressed to the reader.
// Large backlogs are chunked so one enormous batch cannot stall the
// store.
func (s *MessageService) MarkMessagesRead(ctx context.Context, readerID int64, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}

	markReadBatchSize.Observe(float64(len(messageIDs)))

	for start := 0; start < len(messageIDs); start += s.markReadBatchLimit {
		end := start + s.markReadBatchLimit
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		if err := s.repo.MarkRead(ctx, messageIDs[start:end], readerID); err != nil {
			return err
		}
	}
	return nil
}

// detach runs fn in the background with panic isolation. Best-effort
// side effects (mark-read, auto-greeting, notifications) go through
// here so a failure can never take down the primary flow.
func detach(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("messaging: detached task %s panicked: %v", name, r)
			}
		}()
		fn()
	}()
}

func logDetachedError(task string, err error) {
	log.Printf("messaging: %s failed: %v", task, err)
}

func setToSlice(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
