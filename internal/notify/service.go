// internal/notify/service.go
// Outbound notifications for marketplace events. Everything here is
// best-effort: callers fire these from detached tasks and failures are
// logged, never propagated.

package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/printhive/printhive-backend/internal/config"
	"github.com/printhive/printhive-backend/internal/messaging"
)

// Contact is what the directory resolves for a user
type Contact struct {
	Email    string
	Username string
	Phone    string
}

// ContactDirectory resolves a user id to their contact details.
// Implemented by an adapter over the auth service.
type ContactDirectory interface {
	GetContact(ctx context.Context, userID int64) (*Contact, error)
}

// Service implements messaging.Notifier
type Service struct {
	email    EmailProvider
	sms      SMSProvider
	contacts ContactDirectory
}

func NewService(cfg *config.Config, contacts ContactDirectory) *Service {
	var email EmailProvider
	switch cfg.EmailProvider {
	case "sendgrid":
		email = NewSendGridEmailProvider(cfg.SendGridAPIKey, cfg.EmailFrom)
	case "smtp":
		email = NewSMTPEmailProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	default:
		email = NewMockEmailProvider()
	}

	var sms SMSProvider
	switch cfg.SMSProvider {
	case "twilio":
		sms = NewTwilioSMSProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	default:
		sms = NewMockSMSProvider()
	}

	return &Service{email: email, sms: sms, contacts: contacts}
}

// SaleCompleted tells both parties their sale reached both-confirmed
func (s *Service) SaleCompleted(ctx context.Context, sc *messaging.SaleConfirmation) {
	subject := "Your Printhive sale is confirmed"
	body := "Both parties have confirmed the sale. The order is now complete."
	if sc.ListingID != nil {
		body = fmt.Sprintf("Both parties have confirmed the sale for listing #%d. The order is now complete.", *sc.ListingID)
	}

	s.sendEmail(ctx, sc.BuyerID, subject, body)
	s.sendEmail(ctx, sc.SellerID, subject, body)
	s.sendSMS(ctx, sc.BuyerID, body)
	s.sendSMS(ctx, sc.SellerID, body)
}

// NewEnquiry tells a seller a buyer just opened a conversation
func (s *Service) NewEnquiry(ctx context.Context, message *messaging.Message) {
	body := fmt.Sprintf("You have a new enquiry: %q. Open your Printhive inbox to reply.", message.Content)
	s.sendEmail(ctx, message.ReceiverID, "New enquiry on Printhive", body)
}

func (s *Service) sendEmail(ctx context.Context, userID int64, subject, body string) {
	contact, err := s.contacts.GetContact(ctx, userID)
	if err != nil {
		log.Printf("notify: failed to resolve contact for user %d: %v", userID, err)
		return
	}
	if contact.Email == "" {
		return
	}

	if err := s.email.SendEmail(ctx, contact.Email, subject, body); err != nil {
		log.Printf("notify: failed to email user %d: %v", userID, err)
	}
}

func (s *Service) sendSMS(ctx context.Context, userID int64, body string) {
	contact, err := s.contacts.GetContact(ctx, userID)
	if err != nil || contact.Phone == "" {
		return
	}

	if err := s.sms.SendSMS(ctx, contact.Phone, body); err != nil {
		log.Printf("notify: failed to text user %d: %v", userID, err)
	}
}
