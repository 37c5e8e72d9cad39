// internal/messaging/service_test.go

package messaging

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sent, err := svc.SendMessage(ctx, buyer, &SendMessageRequest{
		ReceiverID: 2, ListingID: listingPtr(10), Content: "hello",
	})
	require.NoError(t, err)
	assert.NotZero(t, sent.ID)
	assert.False(t, sent.IsRead)

	messages, err := svc.ListConversation(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, sent.ID, messages[0].ID)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestListConversationIsSymmetric(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, buyer, &SendMessageRequest{ReceiverID: 2, Content: "from buyer"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, seller, &SendMessageRequest{ReceiverID: 1, Content: "from seller"})
	require.NoError(t, err)

	fromBuyer, err := svc.ListConversation(ctx, buyer, 2, nil)
	require.NoError(t, err)
	fromSeller, err := svc.ListConversation(ctx, seller, 1, nil)
	require.NoError(t, err)

	require.Len(t, fromBuyer, 2)
	require.Len(t, fromSeller, 2)
	for i := range fromBuyer {
		assert.Equal(t, fromBuyer[i].ID, fromSeller[i].ID)
	}
}

func TestListConversationSeparatesListingFromGeneral(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, buyer, &SendMessageRequest{ReceiverID: 2, Content: "general"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, buyer, &SendMessageRequest{ReceiverID: 2, ListingID: listingPtr(10), Content: "listing"})
	require.NoError(t, err)

	general, err := svc.ListConversation(ctx, buyer, 2, nil)
	require.NoError(t, err)
	require.Len(t, general, 1)
	assert.Equal(t, "general", general[0].Content)

	listing, err := svc.ListConversation(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, "listing", listing[0].Content)
}

func TestGetInboxResolvesNamesAndTitles(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, seller, &SendMessageRequest{ReceiverID: 1, ListingID: listingPtr(10), Content: "dragon ready"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, Identity{UserID: 3, Role: RoleSeller}, &SendMessageRequest{ReceiverID: 1, Content: "hi"})
	require.NoError(t, err)

	inbox, err := svc.GetInbox(ctx, 1)
	require.NoError(t, err)
	require.Len(t, inbox, 2)

	// Newest activity first.
	assert.Equal(t, int64(3), inbox[0].CounterpartyID)
	assert.Equal(t, "Cara Seller", inbox[0].CounterpartyName)
	assert.Nil(t, inbox[0].ListingTitle)

	assert.Equal(t, int64(2), inbox[1].CounterpartyID)
	assert.Equal(t, "Ben Seller", inbox[1].CounterpartyName)
	require.NotNil(t, inbox[1].ListingTitle)
	assert.Equal(t, "Articulated Dragon", *inbox[1].ListingTitle)
	assert.Equal(t, 1, inbox[1].UnreadCount)
}

func TestGetInboxEmpty(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	inbox, err := svc.GetInbox(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestMarkMessagesReadOnlyTouchesReceiver(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sent, err := svc.SendMessage(ctx, buyer, &SendMessageRequest{ReceiverID: 2, Content: "hello"})
	require.NoError(t, err)

	// The sender cannot mark their own outgoing message as read.
	require.NoError(t, svc.MarkMessagesRead(ctx, 1, []int64{sent.ID}))
	assert.False(t, repo.allMessages()[0].IsRead)

	require.NoError(t, svc.MarkMessagesRead(ctx, 2, []int64{sent.ID}))
	assert.True(t, repo.allMessages()[0].IsRead)
}

// chunkRecordingRepo records the size of each MarkRead batch
type chunkRecordingRepo struct {
	*fakeRepo
	mu      sync.Mutex
	batches []int
}

func (r *chunkRecordingRepo) MarkRead(ctx context.Context, messageIDs []int64, readerID int64) error {
	r.mu.Lock()
	r.batches = append(r.batches, len(messageIDs))
	r.mu.Unlock()
	return r.fakeRepo.MarkRead(ctx, messageIDs, readerID)
}

func TestMarkMessagesReadChunksLargeBatches(t *testing.T) {
	repo := &chunkRecordingRepo{fakeRepo: newFakeRepo()}
	svc := NewService(repo, &fakeProfiles{}, &fakeListings{}, &fakeNotifier{}, 10)
	ctx := context.Background()

	ids := make([]int64, 25)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	require.NoError(t, svc.MarkMessagesRead(ctx, 1, ids))
	assert.Equal(t, []int{10, 10, 5}, repo.batches)
}

func TestMarkMessagesReadNoIDsIsNoOp(t *testing.T) {
	repo := &chunkRecordingRepo{fakeRepo: newFakeRepo()}
	svc := NewService(repo, &fakeProfiles{}, &fakeListings{}, &fakeNotifier{}, 10)

	require.NoError(t, svc.MarkMessagesRead(context.Background(), 1, nil))
	assert.Empty(t, repo.batches)
}

func TestResolveIdentity(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sellerIdentity, err := svc.ResolveIdentity(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 2, Role: RoleSeller}, sellerIdentity)

	buyerIdentity, err := svc.ResolveIdentity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 1, Role: RoleBuyer}, buyerIdentity)
}

func TestDetachIsolatesPanics(t *testing.T) {
	done := make(chan struct{})
	detach("panicky task", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("detached task did not run")
	}
	// Reaching here without the test binary crashing is the assertion.
}

func TestValidateNewMessage(t *testing.T) {
	assert.NoError(t, ValidateNewMessage(1, 2, "hi"))
	assert.ErrorIs(t, ValidateNewMessage(1, 2, ""), ErrEmptyContent)
	assert.ErrorIs(t, ValidateNewMessage(1, 2, "  \t\n "), ErrEmptyContent)
	assert.ErrorIs(t, ValidateNewMessage(1, 1, "hi"), ErrSelfSend)
}

func TestInsertMessagePreservesOrderAcrossRounds(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		actor, receiver := buyer, int64(2)
		if i%2 == 1 {
			actor, receiver = seller, 1
		}
		_, err := svc.SendMessage(ctx, actor, &SendMessageRequest{ReceiverID: receiver, Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
	}

	messages, err := svc.ListConversation(ctx, buyer, 2, nil)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for i, m := range messages {
		assert.Equal(t, fmt.Sprintf("msg %d", i), m.Content)
		if i > 0 {
			assert.True(t, !m.CreatedAt.Before(messages[i-1].CreatedAt))
		}
	}
}
