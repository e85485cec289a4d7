package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

const (
	paymentSignatureHeader = "X-Signature"
	paymentEventKeyPrefix  = "payments:event:"
	maxWebhookBody         = 64 << 10
)

// PaymentStatusSuccess is the only status that marks an appointment paid
const PaymentStatusSuccess = "success"

// PaymentService records confirmed payments
type PaymentService interface {
	MarkPaid(ctx context.Context, id string) (*entities.Appointment, error)
}

// PaymentWebhookEvent is the payment gateway callback body
type PaymentWebhookEvent struct {
	EventID       string `json:"event_id"`
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

// PaymentWebhookHandler handles signed payment callbacks
type PaymentWebhookHandler struct {
	payments      PaymentService
	idempotency   providers.CacheProvider
	signingSecret string
	ttlSeconds    int
}

// NewPaymentWebhookHandler creates a new webhook handler. idempotency keys
// live for ttlSeconds.
func NewPaymentWebhookHandler(payments PaymentService, idempotency providers.CacheProvider, signingSecret string, ttlSeconds int) *PaymentWebhookHandler {
	if ttlSeconds <= 0 {
		ttlSeconds = 7 * 24 * 60 * 60
	}
	return &PaymentWebhookHandler{
		payments:      payments,
		idempotency:   idempotency,
		signingSecret: signingSecret,
		ttlSeconds:    ttlSeconds,
	}
}

// HandleWebhook handles POST /webhooks/payments
func (h *PaymentWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !h.verifySignature(r.Header.Get(paymentSignatureHeader), body) {
		respondWithError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event PaymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if event.EventID == "" || event.AppointmentID == "" {
		respondWithError(w, http.StatusBadRequest, "event_id and appointment_id are required")
		return
	}

	key := paymentEventKeyPrefix + event.EventID
	first, err := h.idempotency.SetNX(ctx, key, []byte(event.AppointmentID), h.ttlSeconds)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if !first {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	if !strings.EqualFold(event.Status, PaymentStatusSuccess) {
		log.Info().Str("event_id", event.EventID).Str("appointment_id", event.AppointmentID).
			Str("status", event.Status).Msg("ignoring unsuccessful payment")
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if _, err := h.payments.MarkPaid(ctx, event.AppointmentID); err != nil {
		if retryable(err) {
			// let the gateway redeliver
			if delErr := h.idempotency.Delete(ctx, key); delErr != nil {
				log.Warn().Err(delErr).Str("event_id", event.EventID).Msg("failed to release payment event key")
			}
		} else {
			log.Warn().Err(err).Str("event_id", event.EventID).Str("appointment_id", event.AppointmentID).
				Msg("payment rejected, event will not be reprocessed")
		}
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// retryable reports whether a redelivery of the same event could succeed.
// Rejections such as an unknown or canceled appointment are final.
func retryable(err error) bool {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeInternal, apperrors.ErrorTypeExternal:
		return true
	default:
		return false
	}
}

func (h *PaymentWebhookHandler) verifySignature(signature string, body []byte) bool {
	if signature == "" || h.signingSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.signingSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
