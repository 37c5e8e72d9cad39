// internal/messaging/confirmation_test.go

package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer  = Identity{UserID: 1, Role: RoleBuyer}
	seller = Identity{UserID: 2, Role: RoleSeller}
)

func countContent(messages []*Message, content string) int {
	n := 0
	for _, m := range messages {
		if m.Content == content {
			n++
		}
	}
	return n
}

func TestConfirmSaleFirstConfirmationCreatesRecord(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sc, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	assert.True(t, sc.BuyerConfirmed)
	assert.False(t, sc.SellerConfirmed)
	assert.False(t, sc.SaleCompleted)
	assert.NotNil(t, sc.BuyerConfirmedAt)
	assert.Nil(t, sc.SellerConfirmedAt)
	assert.Equal(t, int64(1), sc.BuyerID)
	assert.Equal(t, int64(2), sc.SellerID)
}

func TestConfirmSaleSecondConfirmationCompletes(t *testing.T) {
	repo := newFakeRepo()
	svc, notifier := newTestService(repo)
	ctx := context.Background()

	_, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	sc, err := svc.ConfirmSale(ctx, seller, 1, listingPtr(10))
	require.NoError(t, err)

	assert.True(t, sc.BuyerConfirmed)
	assert.True(t, sc.SellerConfirmed)
	assert.True(t, sc.SaleCompleted)
	assert.NotNil(t, sc.SaleCompletedAt)

	// Exactly one completion system message in the conversation.
	assert.Equal(t, 1, countContent(repo.allMessages(), completionNotice))

	assert.Eventually(t, func() bool {
		return notifier.completedCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestConfirmSaleOrderDoesNotMatter(t *testing.T) {
	ctx := context.Background()

	run := func(first, second Identity, firstCounterparty, secondCounterparty int64) *SaleConfirmation {
		repo := newFakeRepo()
		svc, _ := newTestService(repo)

		_, err := svc.ConfirmSale(ctx, first, firstCounterparty, listingPtr(10))
		require.NoError(t, err)
		sc, err := svc.ConfirmSale(ctx, second, secondCounterparty, listingPtr(10))
		require.NoError(t, err)
		return sc
	}

	buyerFirst := run(buyer, seller, 2, 1)
	sellerFirst := run(seller, buyer, 1, 2)

	for _, sc := range []*SaleConfirmation{buyerFirst, sellerFirst} {
		assert.True(t, sc.SaleCompleted)
		assert.Equal(t, int64(1), sc.BuyerID)
		assert.Equal(t, int64(2), sc.SellerID)
	}
}

func TestConfirmSaleRepeatIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	first, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	again, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.BuyerConfirmed)
	assert.False(t, again.SaleCompleted)
	assert.Equal(t, first.BuyerConfirmedAt, again.BuyerConfirmedAt)
}

func TestConfirmSaleRepeatAfterCompletionKeepsSingleNotice(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	_, err = svc.ConfirmSale(ctx, seller, 1, listingPtr(10))
	require.NoError(t, err)

	sc, err := svc.ConfirmSale(ctx, seller, 1, listingPtr(10))
	require.NoError(t, err)
	assert.True(t, sc.SaleCompleted)

	sc, err = svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	assert.True(t, sc.SaleCompleted)

	assert.Equal(t, 1, countContent(repo.allMessages(), completionNotice))
}

func TestConfirmSaleSeparateThreadsSeparateRecords(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	withListing, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	general, err := svc.ConfirmSale(ctx, buyer, 2, nil)
	require.NoError(t, err)

	assert.NotEqual(t, withListing.ID, general.ID)
}

func TestGetSaleConfirmationSameRowFromEitherSide(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	created, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	fromSeller, err := svc.GetSaleConfirmation(ctx, seller, 1, listingPtr(10))
	require.NoError(t, err)
	assert.Equal(t, created.ID, fromSeller.ID)

	fromBuyer, err := svc.GetSaleConfirmation(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	assert.Equal(t, created.ID, fromBuyer.ID)
}

func TestGetSaleConfirmationMissing(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.GetSaleConfirmation(context.Background(), buyer, 2, nil)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}

// racingRepo makes the first conditional update lose because the
// counterparty confirmed in between. The retry should then complete
// the sale.
type racingRepo struct {
	*fakeRepo
	raced bool
}

func (r *racingRepo) ApplySaleConfirmation(ctx context.Context, id int64, role Role, expectedSeller, expectedBuyer, complete bool, now time.Time) (bool, error) {
	if !r.raced {
		r.raced = true
		// Counterparty sneaks in first.
		other := role.Other()
		otherComplete := false
		if _, err := r.fakeRepo.ApplySaleConfirmation(ctx, id, other, expectedSeller, expectedBuyer, otherComplete, now); err != nil {
			return false, err
		}
		return false, nil
	}
	return r.fakeRepo.ApplySaleConfirmation(ctx, id, role, expectedSeller, expectedBuyer, complete, now)
}

func TestConfirmSaleRetriesOnceAfterConcurrentUpdate(t *testing.T) {
	inner := newFakeRepo()
	repo := &racingRepo{fakeRepo: inner}
	notifier := &fakeNotifier{}
	svc := NewService(repo, &fakeProfiles{types: map[int64]string{}}, &fakeListings{}, notifier, 500)
	ctx := context.Background()

	// Seed the record so the update path runs.
	_, err := svc.EnsureConfirmationRecord(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	sc, err := svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	// The seller's racing confirmation landed first, so the buyer's
	// retry completed the sale.
	assert.True(t, sc.SaleCompleted)
	assert.Equal(t, 1, countContent(inner.allMessages(), completionNotice))
}

// stuckRepo never lets the conditional update through
type stuckRepo struct {
	*fakeRepo
}

func (r *stuckRepo) ApplySaleConfirmation(ctx context.Context, id int64, role Role, expectedSeller, expectedBuyer, complete bool, now time.Time) (bool, error) {
	return false, nil
}

func TestConfirmSaleGivesUpAfterRepeatedConflicts(t *testing.T) {
	inner := newFakeRepo()
	repo := &stuckRepo{fakeRepo: inner}
	svc := NewService(repo, &fakeProfiles{types: map[int64]string{}}, &fakeListings{}, &fakeNotifier{}, 500)
	ctx := context.Background()

	_, err := svc.EnsureConfirmationRecord(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)

	_, err = svc.ConfirmSale(ctx, buyer, 2, listingPtr(10))
	assert.ErrorIs(t, err, ErrConfirmationConflict)
}

func TestEnsureConfirmationRecordIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	first, err := svc.EnsureConfirmationRecord(ctx, buyer, 2, listingPtr(10))
	require.NoError(t, err)
	assert.False(t, first.BuyerConfirmed)
	assert.False(t, first.SellerConfirmed)

	second, err := svc.EnsureConfirmationRecord(ctx, seller, 1, listingPtr(10))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
