// internal/notify/providers.go

package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// EmailProvider defines the email provider interface
type EmailProvider interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSProvider defines the SMS provider interface
type SMSProvider interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SendGridEmailProvider implements EmailProvider using SendGrid
type SendGridEmailProvider struct {
	apiKey string
	from   string
}

func NewSendGridEmailProvider(apiKey, from string) EmailProvider {
	return &SendGridEmailProvider{apiKey: apiKey, from: from}
}

func (p *SendGridEmailProvider) SendEmail(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("Printhive", p.from),
		subject,
		mail.NewEmail("", to),
		body,
		"",
	)

	response, err := sendgrid.NewSendClient(p.apiKey).Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid returned error status: %d", response.StatusCode)
	}
	return nil
}

// SMTPEmailProvider implements EmailProvider using plain SMTP
type SMTPEmailProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPEmailProvider(host string, port int, username, password, from string) EmailProvider {
	return &SMTPEmailProvider{host: host, port: port, username: username, password: password, from: from}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, to, subject, body string) error {
	message := fmt.Sprintf("From: %s\r\n", p.from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", p.username, p.password, p.host)
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	if err := smtp.SendMail(addr, auth, p.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// MockEmailProvider logs instead of sending. Development only.
type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(ctx context.Context, to, subject, body string) error {
	log.Printf("[MOCK EMAIL] to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// TwilioSMSProvider implements SMSProvider using Twilio
type TwilioSMSProvider struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMSProvider(accountSID, authToken, from string) SMSProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMSProvider{client: client, from: from}
}

func (p *TwilioSMSProvider) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(p.from)
	params.SetBody(body)

	if _, err := p.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS via Twilio: %w", err)
	}
	return nil
}

// MockSMSProvider logs instead of sending
type MockSMSProvider struct{}

func NewMockSMSProvider() SMSProvider {
	return &MockSMSProvider{}
}

func (p *MockSMSProvider) SendSMS(ctx context.Context, to, body string) error {
	log.Printf("[MOCK SMS] to=%s body=%q", to, body)
	return nil
}
