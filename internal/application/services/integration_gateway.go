package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
)

// Gateway implements providers.IntegrationGateway on top of the calendar,
// meeting and email providers. Every failure is logged, counted and
// returned as an *entities.IntegrationError for the caller to ignore.
type Gateway struct {
	calendar    providers.CalendarProvider
	meetings    providers.MeetingProvider
	email       providers.EmailSender
	meetingRepo repositories.MeetingRepository
	clock       providers.Clock
	metrics     *observability.Metrics
}

var _ providers.IntegrationGateway = (*Gateway)(nil)

// NewGateway creates a new integration gateway
func NewGateway(
	calendar providers.CalendarProvider,
	meetings providers.MeetingProvider,
	email providers.EmailSender,
	meetingRepo repositories.MeetingRepository,
	clock providers.Clock,
	metrics *observability.Metrics,
) *Gateway {
	return &Gateway{
		calendar:    calendar,
		meetings:    meetings,
		email:       email,
		meetingRepo: meetingRepo,
		clock:       clock,
		metrics:     metrics,
	}
}

// CreateCalendarEvent adds the appointment to the user's calendar
func (g *Gateway) CreateCalendarEvent(ctx context.Context, user providers.CalendarUser, appointment *entities.Appointment) (string, error) {
	eventID, err := g.calendar.CreateEvent(ctx, user, appointment)
	if err != nil {
		return "", g.fail(ctx, "create_calendar_event", appointment.ID, err)
	}
	return eventID, nil
}

// CancelCalendarEvent removes the appointment's calendar event, if it has one
func (g *Gateway) CancelCalendarEvent(ctx context.Context, user providers.CalendarUser, appointment *entities.Appointment) error {
	if appointment.CalendarEventID == nil || *appointment.CalendarEventID == "" {
		return nil
	}
	if err := g.calendar.CancelEvent(ctx, user, *appointment.CalendarEventID); err != nil {
		return g.fail(ctx, "cancel_calendar_event", appointment.ID, err)
	}
	return nil
}

// CreateMeeting schedules a video meeting and records it against the appointment
func (g *Gateway) CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.Meeting, error) {
	meeting, err := g.meetings.CreateMeeting(ctx, appointment)
	if err != nil {
		return nil, g.fail(ctx, "create_meeting", appointment.ID, err)
	}

	meeting.ID = uuid.New().String()
	meeting.AppointmentID = appointment.ID
	meeting.CreatedAt = g.clock.Now()

	if err := g.meetingRepo.Create(ctx, meeting); err != nil {
		// the remote meeting exists but we cannot track it, so remove it again
		if delErr := g.meetings.DeleteMeeting(ctx, meeting.ExternalID); delErr != nil {
			log.Warn().Err(delErr).Str("meeting_id", meeting.ExternalID).Msg("failed to remove untracked meeting")
		}
		return nil, g.fail(ctx, "create_meeting", appointment.ID, fmt.Errorf("failed to save meeting: %w", err))
	}
	return meeting, nil
}

// DeleteMeeting removes the remote meeting and its record
func (g *Gateway) DeleteMeeting(ctx context.Context, meeting *entities.Meeting) error {
	if err := g.meetings.DeleteMeeting(ctx, meeting.ExternalID); err != nil {
		return g.fail(ctx, "delete_meeting", meeting.AppointmentID, err)
	}
	if err := g.meetingRepo.Delete(ctx, meeting.ID); err != nil {
		return g.fail(ctx, "delete_meeting", meeting.AppointmentID, fmt.Errorf("failed to delete meeting record: %w", err))
	}
	return nil
}

// SendEmail delivers a plain text email
func (g *Gateway) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := g.email.Send(ctx, to, subject, body); err != nil {
		return g.fail(ctx, "send_email", "", err)
	}
	return nil
}

func (g *Gateway) fail(ctx context.Context, operation, appointmentID string, err error) error {
	observability.RecordIntegrationFailure(ctx, g.metrics, operation)
	log.Warn().Err(err).Str("operation", operation).Str("appointment_id", appointmentID).Msg("integration call failed")
	return &entities.IntegrationError{Operation: operation, Err: err}
}
