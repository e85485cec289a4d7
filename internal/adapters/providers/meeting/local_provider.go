package meeting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// LocalProvider stands in for a video provider when none is configured
type LocalProvider struct {
	DurationMinutes int
}

var _ providers.MeetingProvider = LocalProvider{}

func (p LocalProvider) CreateMeeting(_ context.Context, appointment *entities.Appointment) (*entities.Meeting, error) {
	id := "local-" + uuid.New().String()
	log.Debug().Str("appointment_id", appointment.ID).Str("meeting_id", id).Msg("meetings not configured, recorded local meeting")
	return &entities.Meeting{
		ExternalID:      id,
		Topic:           fmt.Sprintf("Appointment %s", appointment.ID),
		DurationMinutes: p.DurationMinutes,
	}, nil
}

func (LocalProvider) DeleteMeeting(_ context.Context, externalID string) error {
	log.Debug().Str("meeting_id", externalID).Msg("meetings not configured, dropped local meeting")
	return nil
}
