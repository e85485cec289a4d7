package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/adapters/providers/httpapi"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/pkg/config"
)

// HTTPEmailSender sends mail through a transactional email HTTP API
type HTTPEmailSender struct {
	api  *httpapi.Client
	from string
}

var _ providers.EmailSender = (*HTTPEmailSender)(nil)

// EmailMessage is the request body accepted by the email API
type EmailMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// EmailResponse is the email API response
type EmailResponse struct {
	ID string `json:"id"`
}

// NewHTTPEmailSender creates a new email sender
func NewHTTPEmailSender(api *httpapi.Client, from string) *HTTPEmailSender {
	return &HTTPEmailSender{api: api, from: from}
}

// Send delivers a plain text message to a single recipient
func (s *HTTPEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	message := EmailMessage{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	var resp EmailResponse
	if err := s.api.Do(ctx, http.MethodPost, "/messages", message, &resp); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Debug().Str("message_id", resp.ID).Str("subject", subject).Msg("email sent")
	return nil
}

// LogEmailSender writes messages to the log instead of sending them
type LogEmailSender struct{}

var _ providers.EmailSender = LogEmailSender{}

func (LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("email delivery not configured, message logged")
	return nil
}

// NewEmailSender returns the HTTP sender when an API is configured
func NewEmailSender(cfg config.IntegrationsConfig, httpClient *http.Client) providers.EmailSender {
	if cfg.EmailBaseURL == "" || cfg.EmailAPIKey == "" {
		return LogEmailSender{}
	}
	api := httpapi.NewClient("email", cfg.EmailBaseURL, httpClient, httpapi.APIKey(cfg.EmailAPIKey), httpapi.BreakerSettings{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
	})
	return NewHTTPEmailSender(api, cfg.EmailFrom)
}
