package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hospitalcare/appointments/internal/adapters/providers/httpapi"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
)

const scheduledMeeting = 2

// ZoomProvider schedules video visits through the Zoom REST API
type ZoomProvider struct {
	api      *httpapi.Client
	userID   string
	duration int
}

var _ providers.MeetingProvider = (*ZoomProvider)(nil)

// NewZoomProvider creates a meeting provider hosting meetings as userID
func NewZoomProvider(api *httpapi.Client, userID string, durationMinutes int) *ZoomProvider {
	if userID == "" {
		userID = "me"
	}
	return &ZoomProvider{api: api, userID: userID, duration: durationMinutes}
}

type createMeetingRequest struct {
	Topic     string `json:"topic"`
	Type      int    `json:"type"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone"`
}

type meetingResponse struct {
	ID       json.Number `json:"id"`
	Topic    string      `json:"topic"`
	Duration int         `json:"duration"`
	JoinURL  string      `json:"join_url"`
	StartURL string      `json:"start_url"`
}

// CreateMeeting schedules a meeting at the appointment time
func (p *ZoomProvider) CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.Meeting, error) {
	body := createMeetingRequest{
		Topic:     fmt.Sprintf("Appointment %s", appointment.ID),
		Type:      scheduledMeeting,
		StartTime: appointment.AppointmentDate.UTC().Format(time.RFC3339),
		Duration:  p.duration,
		Timezone:  "UTC",
	}

	var created meetingResponse
	if err := p.api.Do(ctx, http.MethodPost, "/users/"+url.PathEscape(p.userID)+"/meetings", body, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("meeting provider returned no meeting id")
	}

	return &entities.Meeting{
		ExternalID:      created.ID.String(),
		Topic:           created.Topic,
		DurationMinutes: created.Duration,
		JoinURL:         created.JoinURL,
		StartURL:        created.StartURL,
	}, nil
}

// DeleteMeeting removes a meeting. Meetings already gone count as deleted.
func (p *ZoomProvider) DeleteMeeting(ctx context.Context, externalID string) error {
	err := p.api.Do(ctx, http.MethodDelete, "/meetings/"+url.PathEscape(externalID), nil, nil)
	if httpapi.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}
