// internal/messaging/session_test.go

package messaging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEmptyConversationSendsGreeting(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	session := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	require.Len(t, view.Messages, 1)
	assert.Equal(t, defaultGreeting, view.Messages[0].Content)
	assert.Equal(t, buyer.UserID, view.Messages[0].SenderID)
	assert.Equal(t, int64(2), view.Messages[0].ReceiverID)

	// A fresh confirmation record is seeded with nothing confirmed.
	require.NotNil(t, view.Confirmation)
	assert.False(t, view.Confirmation.BuyerConfirmed)
	assert.False(t, view.Confirmation.SellerConfirmed)

	// The seller gets an enquiry notification in the background.
	assert.Eventually(t, func() bool {
		return notifier.enquiryCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestOpenWithAttachmentCustomizesGreeting(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	session := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "benchy.stl")

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	require.Len(t, view.Messages, 1)
	assert.Equal(t, fmt.Sprintf(attachmentGreetingFn, "benchy.stl"), view.Messages[0].Content)
}

func TestOpenExistingConversationDoesNotGreetAgain(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	ctx := context.Background()

	first := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")
	_, err := first.Open(ctx)
	require.NoError(t, err)

	again := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")
	view, err := again.Open(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, countContent(view.Messages, defaultGreeting))
}

func TestOpenGeneralInquiryCarriesNoConfirmation(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	ctx := context.Background()

	view, err := NewChatSession(svc, notifier, buyer, 2, nil, "").Open(ctx)
	require.NoError(t, err)
	assert.Nil(t, view.Confirmation)

	sellerView, err := NewChatSession(svc, notifier, seller, 1, nil, "").Open(ctx)
	require.NoError(t, err)
	assert.Nil(t, sellerView.Confirmation)

	// Neither open seeded a record for the nil-listing thread.
	_, err = svc.GetSaleConfirmation(ctx, buyer, 2, nil)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}

func TestOpenAsSellerDoesNotGreet(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	session := NewChatSession(svc, notifier, seller, 1, listingPtr(10), "")

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	assert.Empty(t, view.Messages)
	assert.Nil(t, view.Confirmation)
}

func TestOpenFailsOpenWhenGreetingCannotBeStored(t *testing.T) {
	repo := newFakeRepo()
	repo.insertErr = fmt.Errorf("store unavailable")
	svc, notifier := newTestService(repo)
	session := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")

	view, err := session.Open(context.Background())
	require.NoError(t, err)

	// No greeting, but the conversation still opens.
	assert.Empty(t, view.Messages)
	require.NotNil(t, view.Confirmation)
}

func TestOpenMarksIncomingMessagesRead(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, seller, &SendMessageRequest{
		ReceiverID: 1, ListingID: listingPtr(10), Content: "your print is ready",
	})
	require.NoError(t, err)

	session := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")
	view, err := session.Open(ctx)
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)

	// Mark-read is detached; observe the store catching up.
	assert.Eventually(t, func() bool {
		messages := repo.allMessages()
		for _, m := range messages {
			if m.ReceiverID == 1 && !m.IsRead {
				return false
			}
		}
		return len(messages) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestSendAppendsAndReturnsRefreshedView(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	ctx := context.Background()

	session := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")
	_, err := session.Open(ctx)
	require.NoError(t, err)

	view, err := session.Send(ctx, "can you do it in PETG?")
	require.NoError(t, err)

	require.Len(t, view.Messages, 2)
	assert.Equal(t, "can you do it in PETG?", view.Messages[1].Content)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)

	session := NewChatSession(svc, notifier, buyer, 2, nil, "")
	_, err := session.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	assert.Empty(t, repo.allMessages())
}

func TestSendRejectsSelfConversation(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)

	session := NewChatSession(svc, notifier, buyer, buyer.UserID, nil, "")
	_, err := session.Send(context.Background(), "hello me")
	assert.ErrorIs(t, err, ErrSelfSend)

	assert.Empty(t, repo.allMessages())
}

func TestSessionConfirmSaleShowsCompletionInView(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	ctx := context.Background()

	buyerSession := NewChatSession(svc, notifier, buyer, 2, listingPtr(10), "")
	_, err := buyerSession.Open(ctx)
	require.NoError(t, err)

	view, err := buyerSession.ConfirmSale(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.Confirmation)
	assert.True(t, view.Confirmation.BuyerConfirmed)
	assert.False(t, view.Confirmation.SaleCompleted)

	sellerSession := NewChatSession(svc, notifier, seller, 1, listingPtr(10), "")
	view, err = sellerSession.ConfirmSale(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.Confirmation)
	assert.True(t, view.Confirmation.SaleCompleted)

	// The completion notice is part of the refreshed conversation.
	assert.Equal(t, 1, countContent(view.Messages, completionNotice))
}
