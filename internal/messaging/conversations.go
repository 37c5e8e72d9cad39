// internal/messaging/conversations.go
// Conversation aggregation: message rows in, conversation summaries out.
// Conversations are never stored, so they can never drift from the log.

package messaging

import (
	"sort"
)

// conversationKey groups messages by counterparty and listing context.
// listing 0 stands for "general inquiry" (null listing_id); real listing
// ids start at 1.
type conversationKey struct {
	counterparty int64
	listing      int64
}

func keyFor(msg *Message, currentUserID int64) conversationKey {
	key := conversationKey{}
	if msg.SenderID == currentUserID {
		key.counterparty = msg.ReceiverID
	} else {
		key.counterparty = msg.SenderID
	}
	if msg.ListingID != nil {
		key.listing = *msg.ListingID
	}
	return key
}

// BuildConversations groups the user's messages into per-counterparty,
// per-listing summaries. The newest message of each group becomes the
// preview; unread counts only messages addressed to the current user
// that are still unread. Output is ordered newest-activity first.
func BuildConversations(messages []*Message, currentUserID int64) []*Conversation {
	groups := make(map[conversationKey]*Conversation)

	for _, msg := range messages {
		if msg.SenderID != currentUserID && msg.ReceiverID != currentUserID {
			continue
		}

		key := keyFor(msg, currentUserID)
		conv, ok := groups[key]
		if !ok {
			conv = &Conversation{
				CounterpartyID: key.counterparty,
				ListingID:      msg.ListingID,
			}
			groups[key] = conv
		}

		// Input arrives ordered (created_at, id) ascending, so on a
		// timestamp tie the later row still wins the preview.
		if !msg.CreatedAt.Before(conv.LastMessageTime) {
			conv.LastMessage = msg.Content
			conv.LastMessageTime = msg.CreatedAt
		}
		if msg.ReceiverID == currentUserID && !msg.IsRead {
			conv.UnreadCount++
		}
	}

	conversations := make([]*Conversation, 0, len(groups))
	for _, conv := range groups {
		conversations = append(conversations, conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})

	return conversations
}

// unreadIDsFor returns the ids of fetched messages the reader has not
// read yet. This is the batch handed to MarkRead after every fetch.
func unreadIDsFor(messages []*Message, readerID int64) []int64 {
	var ids []int64
	for _, msg := range messages {
		if msg.ReceiverID == readerID && !msg.IsRead {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}
