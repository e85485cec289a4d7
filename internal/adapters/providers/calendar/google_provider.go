package calendar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hospitalcare/appointments/internal/adapters/providers/httpapi"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// GoogleProvider writes appointments to a Google Calendar (v3 REST API)
type GoogleProvider struct {
	api        *httpapi.Client
	calendarID string
	duration   time.Duration
}

var _ providers.CalendarProvider = (*GoogleProvider)(nil)

// NewGoogleProvider creates a calendar provider. calendarID may be empty,
// in which case the user's own calendar is used.
func NewGoogleProvider(api *httpapi.Client, calendarID string, duration time.Duration) *GoogleProvider {
	return &GoogleProvider{api: api, calendarID: calendarID, duration: duration}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type attendee struct {
	Email string `json:"email"`
}

type event struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
}

// CreateEvent inserts an event and returns its ID
func (p *GoogleProvider) CreateEvent(ctx context.Context, user providers.CalendarUser, appointment *entities.Appointment) (string, error) {
	start := appointment.AppointmentDate.UTC()
	body := event{
		Summary:     "Medical appointment",
		Description: fmt.Sprintf("Appointment %s with doctor %s", appointment.ID, appointment.DoctorID),
		Start:       eventTime{DateTime: start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         eventTime{DateTime: start.Add(p.duration).Format(time.RFC3339), TimeZone: "UTC"},
	}
	if user.Email != "" {
		body.Attendees = []attendee{{Email: user.Email}}
	}

	var created event
	if err := p.api.Do(ctx, http.MethodPost, p.eventsPath(user), body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendar returned no event id")
	}
	return created.ID, nil
}

// CancelEvent deletes an event. Events already gone count as canceled.
func (p *GoogleProvider) CancelEvent(ctx context.Context, user providers.CalendarUser, eventID string) error {
	err := p.api.Do(ctx, http.MethodDelete, p.eventsPath(user)+"/"+url.PathEscape(eventID), nil, nil)
	if httpapi.IsStatus(err, http.StatusNotFound, http.StatusGone) {
		return nil
	}
	return err
}

func (p *GoogleProvider) eventsPath(user providers.CalendarUser) string {
	calendarID := p.calendarID
	if calendarID == "" {
		calendarID = user.Email
	}
	return "/calendars/" + url.PathEscape(calendarID) + "/events"
}
