// internal/messaging/repository.go

package messaging

import (
	"context"
	"time"
)

// Repository is the typed access layer over the messages and
// sale_confirmations tables.
type Repository interface {
	// Messages
	InsertMessage(ctx context.Context, message *Message) error
	ListMessagesBetween(ctx context.Context, userA, userB int64, listingID *int64) ([]*Message, error)
	ListUserMessages(ctx context.Context, userID int64) ([]*Message, error)
	// MarkRead flips is_read for the given ids where the receiver matches
	// readerID. Non-matching ids are silently skipped: this is a
	// best-effort batch, not a transaction.
	MarkRead(ctx context.Context, messageIDs []int64, readerID int64) error

	// Sale confirmations
	GetSaleConfirmation(ctx context.Context, listingID *int64, buyerID, sellerID int64) (*SaleConfirmation, error)
	// CreateSaleConfirmation inserts a new row and fills the ID. Returns
	// ErrConfirmationExists when a row for the triple already exists.
	CreateSaleConfirmation(ctx context.Context, sc *SaleConfirmation) error
	// ApplySaleConfirmation sets the acting role's flag (and completion
	// when complete is true) only if the stored flags still equal
	// expectedSeller/expectedBuyer. Returns false when the optimistic
	// check fails, meaning the row changed since it was read.
	ApplySaleConfirmation(ctx context.Context, id int64, role Role, expectedSeller, expectedBuyer, complete bool, now time.Time) (bool, error)
}

// ProfileDirectory resolves display names and the account role of users.
// Implemented by the profile package; batched to avoid per-conversation
// lookups when building the inbox.
type ProfileDirectory interface {
	GetNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	GetAccountType(ctx context.Context, userID int64) (string, error)
}

// ListingDirectory resolves listing titles, batched like ProfileDirectory.
type ListingDirectory interface {
	GetTitles(ctx context.Context, listingIDs []int64) (map[int64]string, error)
}

// Notifier receives fire-and-forget domain events. Implementations must
// not block the caller; failures are theirs to log.
type Notifier interface {
	SaleCompleted(ctx context.Context, sc *SaleConfirmation)
	NewEnquiry(ctx context.Context, message *Message)
}
