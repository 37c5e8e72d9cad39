// internal/messaging/postgres.go

package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// InsertMessage creates a new message. Validation happens here because
// this is the store access boundary: an invalid message must never
// reach the table.
func (r *postgresRepository) InsertMessage(ctx context.Context, message *Message) error {
	if err := ValidateNewMessage(message.SenderID, message.ReceiverID, message.Content); err != nil {
		return err
	}

	query := `
        INSERT INTO messages (sender_id, receiver_id, listing_id, content, is_read)
        VALUES ($1, $2, $3, $4, FALSE)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx, query,
		message.SenderID, message.ReceiverID, message.ListingID, message.Content,
	).Scan(&message.ID, &message.CreatedAt, &message.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	message.IsRead = false
	return nil
}

// ListMessagesBetween returns the full conversation between two users
// for one listing context, oldest first. The participant match is
// symmetric and listing_id uses IS NOT DISTINCT FROM so that a null
// listing (general inquiry) only matches other null-listing messages.
func (r *postgresRepository) ListMessagesBetween(ctx context.Context, userA, userB int64, listingID *int64) ([]*Message, error) {
	query := `
        SELECT id, sender_id, receiver_id, listing_id, content, is_read, created_at, updated_at
        FROM messages
        WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
          AND listing_id IS NOT DISTINCT FROM $3
        ORDER BY created_at ASC, id ASC`

	var messages []*Message
	if err := r.db.SelectContext(ctx, &messages, query, userA, userB, listingID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// ListUserMessages returns every message the user sent or received,
// oldest first. Input for inbox aggregation.
func (r *postgresRepository) ListUserMessages(ctx context.Context, userID int64) ([]*Message, error) {
	query := `
        SELECT id, sender_id, receiver_id, listing_id, content, is_read, created_at, updated_at
        FROM messages
        WHERE sender_id = $1 OR receiver_id = $1
        ORDER BY created_at ASC, id ASC`

	var messages []*Message
	if err := r.db.SelectContext(ctx, &messages, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user messages: %w", err)
	}
	return messages, nil
}

// MarkRead flips is_read=true for the given ids addressed to readerID.
// Ids that are not addressed to the reader, or already read, are left
// alone without error.
func (r *postgresRepository) MarkRead(ctx context.Context, messageIDs []int64, readerID int64) error {
	if len(messageIDs) == 0 {
		return nil
	}

	query := `
        UPDATE messages
        SET is_read = TRUE, updated_at = CURRENT_TIMESTAMP
        WHERE id = ANY($1) AND receiver_id = $2 AND is_read = FALSE`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(messageIDs), readerID); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// GetSaleConfirmation fetches the confirmation row for a triple
func (r *postgresRepository) GetSaleConfirmation(ctx context.Context, listingID *int64, buyerID, sellerID int64) (*SaleConfirmation, error) {
	query := `
        SELECT id, listing_id, buyer_id, seller_id,
               seller_confirmed, buyer_confirmed, sale_completed,
               seller_confirmed_at, buyer_confirmed_at, sale_completed_at,
               created_at, updated_at
        FROM sale_confirmations
        WHERE listing_id IS NOT DISTINCT FROM $1 AND buyer_id = $2 AND seller_id = $3`

	var sc SaleConfirmation
	err := r.db.GetContext(ctx, &sc, query, listingID, buyerID, sellerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrConfirmationNotFound
		}
		return nil, fmt.Errorf("failed to get sale confirmation: %w", err)
	}
	return &sc, nil
}

// CreateSaleConfirmation inserts a new confirmation row. The unique
// index on (COALESCE(listing_id,0), buyer_id, seller_id) guards the
// at-most-one-per-triple invariant; a concurrent insert surfaces as
// ErrConfirmationExists so the caller can re-read and take the update
// path instead.
func (r *postgresRepository) CreateSaleConfirmation(ctx context.Context, sc *SaleConfirmation) error {
	query := `
        INSERT INTO sale_confirmations (
            listing_id, buyer_id, seller_id,
            seller_confirmed, buyer_confirmed, sale_completed,
            seller_confirmed_at, buyer_confirmed_at
        ) VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
        ON CONFLICT DO NOTHING
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx, query,
		sc.ListingID, sc.BuyerID, sc.SellerID,
		sc.SellerConfirmed, sc.BuyerConfirmed,
		sc.SellerConfirmedAt, sc.BuyerConfirmedAt,
	).Scan(&sc.ID, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrConfirmationExists
		}
		return fmt.Errorf("failed to create sale confirmation: %w", err)
	}
	return nil
}

// ApplySaleConfirmation is the guarded read-modify-write for the
// confirmation state machine. The WHERE clause re-checks the flags the
// caller read, so a concurrent counterpart confirmation makes the
// update a no-op instead of silently overwriting it.
func (r *postgresRepository) ApplySaleConfirmation(ctx context.Context, id int64, role Role, expectedSeller, expectedBuyer, complete bool, now time.Time) (bool, error) {
	var column, tsColumn string
	switch role {
	case RoleSeller:
		column, tsColumn = "seller_confirmed", "seller_confirmed_at"
	case RoleBuyer:
		column, tsColumn = "buyer_confirmed", "buyer_confirmed_at"
	default:
		return false, fmt.Errorf("unknown role %q", role)
	}

	query := fmt.Sprintf(`
        UPDATE sale_confirmations
        SET %s = TRUE,
            %s = $1,
            sale_completed = $2,
            sale_completed_at = CASE WHEN $2 THEN $1 ELSE sale_completed_at END,
            updated_at = $1
        WHERE id = $3
          AND seller_confirmed = $4
          AND buyer_confirmed = $5
          AND sale_completed = FALSE`, column, tsColumn)

	res, err := r.db.ExecContext(ctx, query, now, complete, id, expectedSeller, expectedBuyer)
	if err != nil {
		return false, fmt.Errorf("failed to apply sale confirmation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
