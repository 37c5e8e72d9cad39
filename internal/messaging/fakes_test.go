// internal/messaging/fakes_test.go

package messaging

import (
	"context"
	"sync"
	"time"
)

// fakeRepo is an in-memory Repository with the same semantics as the
// postgres implementation.
type fakeRepo struct {
	mu sync.Mutex

	messages      []*Message
	nextMessageID int64

	confirmations []*SaleConfirmation
	nextConfirmID int64

	clock time.Time

	insertErr error
	applyErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextMessageID: 1,
		nextConfirmID: 1,
		clock:         time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeRepo) InsertMessage(ctx context.Context, message *Message) error {
	if err := ValidateNewMessage(message.SenderID, message.ReceiverID, message.Content); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}

	now := f.tick()
	message.ID = f.nextMessageID
	f.nextMessageID++
	message.IsRead = false
	message.CreatedAt = now
	message.UpdatedAt = now

	stored := *message
	f.messages = append(f.messages, &stored)
	return nil
}

func sameListing(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeRepo) ListMessagesBetween(ctx context.Context, userA, userB int64, listingID *int64) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Message
	for _, m := range f.messages {
		pair := (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA)
		if pair && sameListing(m.ListingID, listingID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListUserMessages(ctx context.Context, userID int64) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Message
	for _, m := range f.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkRead(ctx context.Context, messageIDs []int64, readerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make(map[int64]bool, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = true
	}

	for _, m := range f.messages {
		if ids[m.ID] && m.ReceiverID == readerID && !m.IsRead {
			m.IsRead = true
			m.UpdatedAt = f.tick()
		}
	}
	return nil
}

func (f *fakeRepo) GetSaleConfirmation(ctx context.Context, listingID *int64, buyerID, sellerID int64) (*SaleConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getLocked(listingID, buyerID, sellerID)
}

func (f *fakeRepo) getLocked(listingID *int64, buyerID, sellerID int64) (*SaleConfirmation, error) {
	for _, sc := range f.confirmations {
		if sameListing(sc.ListingID, listingID) && sc.BuyerID == buyerID && sc.SellerID == sellerID {
			cp := *sc
			return &cp, nil
		}
	}
	return nil, ErrConfirmationNotFound
}

func (f *fakeRepo) CreateSaleConfirmation(ctx context.Context, sc *SaleConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.getLocked(sc.ListingID, sc.BuyerID, sc.SellerID); err == nil {
		return ErrConfirmationExists
	}

	now := f.tick()
	sc.ID = f.nextConfirmID
	f.nextConfirmID++
	sc.CreatedAt = now
	sc.UpdatedAt = now

	stored := *sc
	f.confirmations = append(f.confirmations, &stored)
	return nil
}

func (f *fakeRepo) ApplySaleConfirmation(ctx context.Context, id int64, role Role, expectedSeller, expectedBuyer, complete bool, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.applyErr != nil {
		return false, f.applyErr
	}

	for _, sc := range f.confirmations {
		if sc.ID != id {
			continue
		}
		if sc.SellerConfirmed != expectedSeller || sc.BuyerConfirmed != expectedBuyer || sc.SaleCompleted {
			return false, nil
		}
		t := now
		if role == RoleSeller {
			sc.SellerConfirmed = true
			sc.SellerConfirmedAt = &t
		} else {
			sc.BuyerConfirmed = true
			sc.BuyerConfirmedAt = &t
		}
		if complete {
			sc.SaleCompleted = true
			sc.SaleCompletedAt = &t
		}
		sc.UpdatedAt = t
		return true, nil
	}
	return false, nil
}

// messagesBetween returns stored copies for assertions
func (f *fakeRepo) allMessages() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Message, 0, len(f.messages))
	for _, m := range f.messages {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

type fakeProfiles struct {
	names map[int64]string
	types map[int64]string
}

func (f *fakeProfiles) GetNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string)
	for _, id := range userIDs {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (f *fakeProfiles) GetAccountType(ctx context.Context, userID int64) (string, error) {
	if t, ok := f.types[userID]; ok {
		return t, nil
	}
	return "buyer", nil
}

type fakeListings struct {
	titles map[int64]string
}

func (f *fakeListings) GetTitles(ctx context.Context, listingIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string)
	for _, id := range listingIDs {
		if title, ok := f.titles[id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu             sync.Mutex
	completedSales []*SaleConfirmation
	enquiries      []*Message
}

func (f *fakeNotifier) SaleCompleted(ctx context.Context, sc *SaleConfirmation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completedSales = append(f.completedSales, sc)
}

func (f *fakeNotifier) NewEnquiry(ctx context.Context, message *Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enquiries = append(f.enquiries, message)
}

func (f *fakeNotifier) completedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completedSales)
}

func (f *fakeNotifier) enquiryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enquiries)
}

func newTestService(repo *fakeRepo) (*MessageService, *fakeNotifier) {
	notifier := &fakeNotifier{}
	profiles := &fakeProfiles{
		names: map[int64]string{1: "Ada Buyer", 2: "Ben Seller", 3: "Cara Seller"},
		types: map[int64]string{1: "buyer", 2: "seller", 3: "seller"},
	}
	listings := &fakeListings{
		titles: map[int64]string{10: "Articulated Dragon", 11: "Phone Stand"},
	}
	return NewService(repo, profiles, listings, notifier, 500), notifier
}

func listingPtr(id int64) *int64 {
	return &id
}
