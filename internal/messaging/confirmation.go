// internal/messaging/confirmation.go
// Two-party sale confirmation. A sale completes only when both the
// buyer and the seller have confirmed, in either order. Writes go
// through an optimistic re-check so two racing confirmations can never
// lose an update or complete a sale twice.

package messaging

import (
	"context"
	"fmt"
	"time"
)

// tripleFor maps the acting identity and counterparty onto the stored
// (buyer, seller) pair. The row is keyed by who plays which role, not
// by who asked first.
func tripleFor(actor Identity, counterpartyID int64) (buyerID, sellerID int64) {
	if actor.Role == RoleSeller {
		return counterpartyID, actor.UserID
	}
	return actor.UserID, counterpartyID
}

// GetSaleConfirmation returns the confirmation state for the actor's
// conversation, or ErrConfirmationNotFound when nobody confirmed yet.
func (s *MessageService) GetSaleConfirmation(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) (*SaleConfirmation, error) {
	buyerID, sellerID := tripleFor(actor, counterpartyID)
	return s.repo.GetSaleConfirmation(ctx, listingID, buyerID, sellerID)
}

// ConfirmSale records the actor's confirmation. Repeating a
// confirmation is a no-op that returns the current state. When the
// actor's confirmation is the second of the pair the sale completes:
// exactly one system message announces it and the counterparty is
// notified in the background.
func (s *MessageService) ConfirmSale(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) (*SaleConfirmation, error) {
	buyerID, sellerID := tripleFor(actor, counterpartyID)

	for attempt := 0; attempt < 2; attempt++ {
		sc, err := s.repo.GetSaleConfirmation(ctx, listingID, buyerID, sellerID)
		if err == ErrConfirmationNotFound {
			sc, err = s.createConfirmation(ctx, actor, listingID, buyerID, sellerID)
			if err == ErrConfirmationExists {
				// Lost the insert race; re-read and take the update path.
				continue
			}
			if err != nil {
				return nil, err
			}
			saleConfirmationsTotal.WithLabelValues(string(actor.Role)).Inc()
			return sc, nil
		}
		if err != nil {
			return nil, err
		}

		if sc.ConfirmedBy(actor.Role) {
			return sc, nil
		}

		now := time.Now().UTC()
		complete := sc.ConfirmedBy(actor.Role.Other())
		applied, err := s.repo.ApplySaleConfirmation(ctx, sc.ID, actor.Role, sc.SellerConfirmed, sc.BuyerConfirmed, complete, now)
		if err != nil {
			return nil, err
		}
		if !applied {
			// The row moved under us. One retry covers the benign case
			// where the counterparty confirmed concurrently.
			continue
		}

		saleConfirmationsTotal.WithLabelValues(string(actor.Role)).Inc()

		applyLocal(sc, actor.Role, complete, now)
		if complete {
			s.announceCompletion(ctx, actor, counterpartyID, sc)
		}
		return sc, nil
	}

	confirmationConflictsTotal.Inc()
	return nil, ErrConfirmationConflict
}

func (s *MessageService) createConfirmation(ctx context.Context, actor Identity, listingID *int64, buyerID, sellerID int64) (*SaleConfirmation, error) {
	now := time.Now().UTC()
	sc := &SaleConfirmation{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
	}
	switch actor.Role {
	case RoleSeller:
		sc.SellerConfirmed = true
		sc.SellerConfirmedAt = &now
	case RoleBuyer:
		sc.BuyerConfirmed = true
		sc.BuyerConfirmedAt = &now
	default:
		return nil, fmt.Errorf("unknown role %q", actor.Role)
	}

	if err := s.repo.CreateSaleConfirmation(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// EnsureConfirmationRecord creates an empty (nothing confirmed yet)
// confirmation row for the triple if none exists. Opening a chat calls
// this so the confirmation panel always has state to render. An
// existing row is left untouched.
func (s *MessageService) EnsureConfirmationRecord(ctx context.Context, actor Identity, counterpartyID int64, listingID *int64) (*SaleConfirmation, error) {
	buyerID, sellerID := tripleFor(actor, counterpartyID)

	sc, err := s.repo.GetSaleConfirmation(ctx, listingID, buyerID, sellerID)
	if err == nil {
		return sc, nil
	}
	if err != ErrConfirmationNotFound {
		return nil, err
	}

	sc = &SaleConfirmation{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
	}
	if err := s.repo.CreateSaleConfirmation(ctx, sc); err != nil {
		if err == ErrConfirmationExists {
			return s.repo.GetSaleConfirmation(ctx, listingID, buyerID, sellerID)
		}
		return nil, err
	}
	return sc, nil
}

// applyLocal mirrors a successful conditional update onto the struct
// already in hand, saving a re-read.
func applyLocal(sc *SaleConfirmation, role Role, complete bool, now time.Time) {
	switch role {
	case RoleSeller:
		sc.SellerConfirmed = true
		sc.SellerConfirmedAt = &now
	case RoleBuyer:
		sc.BuyerConfirmed = true
		sc.BuyerConfirmedAt = &now
	}
	if complete {
		sc.SaleCompleted = true
		sc.SaleCompletedAt = &now
	}
	sc.UpdatedAt = now
}

// announceCompletion posts the single completion system message into
// the conversation and kicks off background notifications. The system
// message is tied to the winning conditional update, so racing
// confirmations produce exactly one.
func (s *MessageService) announceCompletion(ctx context.Context, actor Identity, counterpartyID int64, sc *SaleConfirmation) {
	if _, err := s.insertMessage(ctx, actor.UserID, counterpartyID, sc.ListingID, completionNotice, "system"); err != nil {
		// The sale is already completed; a missing notice message is
		// annoying but not worth failing the confirmation over.
		logDetachedError("completion notice", err)
	}

	salesCompletedTotal.Inc()

	if s.hub != nil {
		s.hub.NotifySaleCompleted(sc)
	}

	if s.notifier != nil {
		snapshot := *sc
		detach("sale completed notification", func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.notifier.SaleCompleted(notifyCtx, &snapshot)
		})
	}
}
