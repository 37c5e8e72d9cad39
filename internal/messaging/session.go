// internal/messaging/session.go
// ChatSession is the per-conversation controller. It carries the
// resolved identity and conversation coordinates explicitly, so every
// call is self-contained and testable without ambient auth state.

package messaging

import (
	"context"
	"fmt"
	"time"
)

type ChatSession struct {
	svc            Service
	notifier       Notifier
	actor          Identity
	counterpartyID int64
	listingID      *int64

	// attachmentName, when set, customizes the auto-greeting sent the
	// first time a buyer opens an empty conversation (e.g. the file name
	// of an STL model they want printed).
	attachmentName string
}

func NewChatSession(svc Service, notifier Notifier, actor Identity, counterpartyID int64, listingID *int64, attachmentName string) *ChatSession {
	return &ChatSession{
		svc:            svc,
		notifier:       notifier,
		actor:          actor,
		counterpartyID: counterpartyID,
		listingID:      listingID,
		attachmentName: attachmentName,
	}
}

// Open loads the conversation. On a buyer's first visit (no history)
// it sends the auto-greeting so the seller sees an enquiry instead of
// an empty thread and, on listing threads, seeds the confirmation
// record both parties will later co-sign. Messages addressed to the
// actor are marked read in the background.
func (cs *ChatSession) Open(ctx context.Context) (*ChatView, error) {
	messages, err := cs.svc.ListConversation(ctx, cs.actor, cs.counterpartyID, cs.listingID)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 && cs.actor.Role == RoleBuyer {
		if greeting := cs.sendGreeting(ctx); greeting != nil {
			messages = append(messages, greeting)
		}
	}

	view := &ChatView{Messages: messages}

	// Sale confirmations only exist for listing threads. A general
	// inquiry has nothing to confirm, so it carries no state at all.
	if cs.listingID != nil {
		if cs.actor.Role == RoleBuyer {
			sc, err := cs.svc.EnsureConfirmationRecord(ctx, cs.actor, cs.counterpartyID, cs.listingID)
			if err != nil {
				return nil, err
			}
			view.Confirmation = sc
		} else {
			sc, err := cs.svc.GetSaleConfirmation(ctx, cs.actor, cs.counterpartyID, cs.listingID)
			if err != nil && err != ErrConfirmationNotFound {
				return nil, err
			}
			view.Confirmation = sc
		}
	}

	cs.markReadDetached(messages)
	return view, nil
}

// sendGreeting inserts the buyer's opening message. Failure is logged
// and swallowed: the buyer can still type their own first message.
func (cs *ChatSession) sendGreeting(ctx context.Context) *Message {
	content := defaultGreeting
	if cs.attachmentName != "" {
		content = fmt.Sprintf(attachmentGreetingFn, cs.attachmentName)
	}

	greeting, err := cs.svc.SendMessage(ctx, cs.actor, &SendMessageRequest{
		ReceiverID: cs.counterpartyID,
		ListingID:  cs.listingID,
		Content:    content,
	})
	if err != nil {
		logDetachedError("auto-greeting", err)
		return nil
	}

	if cs.notifier != nil {
		snapshot := *greeting
		detach("new enquiry notification", func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			cs.notifier.NewEnquiry(notifyCtx, &snapshot)
		})
	}
	return greeting
}

// Send posts a message into the conversation and returns the refreshed
// view.
func (cs *ChatSession) Send(ctx context.Context, content string) (*ChatView, error) {
	if _, err := cs.svc.SendMessage(ctx, cs.actor, &SendMessageRequest{
		ReceiverID: cs.counterpartyID,
		ListingID:  cs.listingID,
		Content:    content,
	}); err != nil {
		return nil, err
	}
	return cs.refresh(ctx)
}

// ConfirmSale records the actor's side of the handshake and returns
// the refreshed view, including the completion notice when this was
// the second confirmation.
func (cs *ChatSession) ConfirmSale(ctx context.Context) (*ChatView, error) {
	if _, err := cs.svc.ConfirmSale(ctx, cs.actor, cs.counterpartyID, cs.listingID); err != nil {
		return nil, err
	}
	return cs.refresh(ctx)
}

func (cs *ChatSession) refresh(ctx context.Context) (*ChatView, error) {
	messages, err := cs.svc.ListConversation(ctx, cs.actor, cs.counterpartyID, cs.listingID)
	if err != nil {
		return nil, err
	}

	sc, err := cs.svc.GetSaleConfirmation(ctx, cs.actor, cs.counterpartyID, cs.listingID)
	if err != nil && err != ErrConfirmationNotFound {
		return nil, err
	}

	cs.markReadDetached(messages)
	return &ChatView{Messages: messages, Confirmation: sc}, nil
}

// markReadDetached flips is_read for fetched incoming messages in the
// background. Reading a conversation should never block on, or fail
// because of, the read-state write.
func (cs *ChatSession) markReadDetached(messages []*Message) {
	ids := unreadIDsFor(messages, cs.actor.UserID)
	if len(ids) == 0 {
		return
	}

	readerID := cs.actor.UserID
	detach("mark messages read", func() {
		markCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := cs.svc.MarkMessagesRead(markCtx, readerID, ids); err != nil {
			logDetachedError("mark messages read", err)
		}
	})
}
