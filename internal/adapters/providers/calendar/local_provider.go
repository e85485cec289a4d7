package calendar

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// LocalProvider stands in for a calendar when none is configured. It logs
// and hands out local event IDs.
type LocalProvider struct{}

var _ providers.CalendarProvider = LocalProvider{}

func (LocalProvider) CreateEvent(_ context.Context, user providers.CalendarUser, appointment *entities.Appointment) (string, error) {
	id := "local-" + uuid.New().String()
	log.Debug().Str("appointment_id", appointment.ID).Str("user", user.ID).Str("event_id", id).Msg("calendar not configured, recorded local event")
	return id, nil
}

func (LocalProvider) CancelEvent(_ context.Context, user providers.CalendarUser, eventID string) error {
	log.Debug().Str("user", user.ID).Str("event_id", eventID).Msg("calendar not configured, dropped local event")
	return nil
}
