package providers

import (
	"context"

	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// CalendarUser identifies whose calendar an event is written to
type CalendarUser struct {
	ID    string
	Email string
}

// CalendarProvider manages calendar events for appointments (Google Calendar, etc.)
type CalendarProvider interface {
	// CreateEvent creates an event and returns its external ID
	CreateEvent(ctx context.Context, user CalendarUser, appointment *entities.Appointment) (string, error)

	// CancelEvent removes a previously created event
	CancelEvent(ctx context.Context, user CalendarUser, eventID string) error
}

// MeetingProvider manages video meetings for appointments (Zoom, etc.)
type MeetingProvider interface {
	// CreateMeeting schedules a meeting; the returned Meeting has no ID or AppointmentID set
	CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.Meeting, error)

	// DeleteMeeting removes a meeting by its external ID
	DeleteMeeting(ctx context.Context, externalID string) error
}

// EmailSender delivers plain text email
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// IntegrationGateway is the boundary the scheduling core uses for side
// effects. Implementations log failures and never let them abort the
// caller's operation.
type IntegrationGateway interface {
	CreateCalendarEvent(ctx context.Context, user CalendarUser, appointment *entities.Appointment) (string, error)
	CancelCalendarEvent(ctx context.Context, user CalendarUser, appointment *entities.Appointment) error
	CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.Meeting, error)
	DeleteMeeting(ctx context.Context, meeting *entities.Meeting) error
	SendEmail(ctx context.Context, to, subject, body string) error
}
