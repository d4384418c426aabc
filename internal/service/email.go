package service

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
)

type emailService struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &emailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *emailService) SendNotification(ctx context.Context, toEmail, toName string, n *domain.Notification) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	htmlContent := fmt.Sprintf("<html><body><h2>%s</h2><p>%s</p></body></html>",
		html.EscapeString(n.Title), html.EscapeString(n.Message))
	message := mail.NewSingleEmail(from, n.Title, to, n.Message, htmlContent)

	logger.ExternalServiceCall("sendgrid", "Send", "eventID", n.EventID, "type", n.Type)
	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		logger.ExternalServiceResult("sendgrid", "Send", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "Send", err)
		return err
	}
	logger.ExternalServiceResult("sendgrid", "Send", nil, "status", response.StatusCode)
	return nil
}

type logEmailService struct{}

// NewLogEmailService returns a sender that only logs. It stands in for
// SendGrid when no API key is configured.
func NewLogEmailService() EmailService {
	return logEmailService{}
}

func (logEmailService) SendNotification(ctx context.Context, toEmail, toName string, n *domain.Notification) error {
	logger.InfoContext(ctx, "Email notification", "to", toEmail, "type", n.Type, "title", n.Title, "eventID", n.EventID)
	return nil
}
