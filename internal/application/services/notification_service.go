package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
)

// NotificationService sends appointment emails through the gateway and
// records each attempt
type NotificationService struct {
	gateway providers.IntegrationGateway
	repo    repositories.NotificationRepository
	clock   providers.Clock
	loc     *time.Location
}

// NewNotificationService creates a new notification service. repo may be nil.
func NewNotificationService(gateway providers.IntegrationGateway, repo repositories.NotificationRepository, clock providers.Clock, loc *time.Location) *NotificationService {
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{gateway: gateway, repo: repo, clock: clock, loc: loc}
}

type messageTemplate struct {
	Subject string
	Body    string
}

var templates = map[entities.NotificationType]messageTemplate{
	entities.NotificationBookingConfirmation: {
		Subject: "Your appointment on {{date}}",
		Body: "Your appointment {{appointment_id}} with doctor {{doctor_id}} is booked for {{date}} at {{time}}.\n" +
			"{{meeting}}",
	},
	entities.NotificationCancellation: {
		Subject: "Appointment on {{date}} canceled",
		Body:    "Your appointment {{appointment_id}} on {{date}} at {{time}} has been canceled.",
	},
	entities.NotificationMissed: {
		Subject: "You missed your appointment on {{date}}",
		Body:    "Your appointment {{appointment_id}} on {{date}} at {{time}} was marked as missed. Please book a new one.",
	},
}

// NotificationContext contains the values substituted into templates
type NotificationContext struct {
	AppointmentID string
	DoctorID      string
	ScheduledDate string
	ScheduledTime string
	MeetingLink   string
}

// SendBookingConfirmation emails the patient their booking, with the join link when there is a meeting
func (n *NotificationService) SendBookingConfirmation(ctx context.Context, appointment *entities.Appointment, meeting *entities.Meeting) error {
	notifCtx := n.contextFor(appointment)
	if meeting != nil && meeting.JoinURL != "" {
		notifCtx.MeetingLink = meeting.JoinURL
	}
	return n.send(ctx, appointment, entities.NotificationBookingConfirmation, notifCtx)
}

// SendCancellationNotice emails the patient that the appointment was canceled
func (n *NotificationService) SendCancellationNotice(ctx context.Context, appointment *entities.Appointment) error {
	return n.send(ctx, appointment, entities.NotificationCancellation, n.contextFor(appointment))
}

// SendMissedNotice emails the patient that the appointment was missed
func (n *NotificationService) SendMissedNotice(ctx context.Context, appointment *entities.Appointment) error {
	return n.send(ctx, appointment, entities.NotificationMissed, n.contextFor(appointment))
}

func (n *NotificationService) contextFor(appointment *entities.Appointment) *NotificationContext {
	local := appointment.AppointmentDate.In(n.loc)
	return &NotificationContext{
		AppointmentID: appointment.ID,
		DoctorID:      appointment.DoctorID,
		ScheduledDate: local.Format("Monday, January 2, 2006"),
		ScheduledTime: local.Format("15:04 MST"),
	}
}

func (n *NotificationService) send(ctx context.Context, appointment *entities.Appointment, notifType entities.NotificationType, notifCtx *NotificationContext) error {
	if appointment.PatientEmail == "" {
		return nil
	}

	template, ok := templates[notifType]
	if !ok {
		return fmt.Errorf("no template for notification type %s", notifType)
	}
	subject := renderTemplate(template.Subject, notifCtx)
	body := renderTemplate(template.Body, notifCtx)

	now := n.clock.Now()
	notification := &entities.AppointmentNotification{
		ID:               uuid.New().String(),
		AppointmentID:    appointment.ID,
		NotificationType: notifType,
		Channel:          entities.ChannelEmail,
		Recipient:        appointment.PatientEmail,
		Subject:          subject,
		Status:           entities.NotificationStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if n.repo != nil {
		if err := n.repo.Create(ctx, notification); err != nil {
			log.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("failed to record notification")
		}
	}

	sendErr := n.gateway.SendEmail(ctx, appointment.PatientEmail, subject, body)

	if n.repo != nil {
		var err error
		if sendErr != nil {
			err = n.repo.MarkFailed(ctx, notification.ID, sendErr.Error(), n.clock.Now())
		} else {
			err = n.repo.MarkSent(ctx, notification.ID, n.clock.Now())
		}
		if err != nil {
			log.Warn().Err(err).Str("notification_id", notification.ID).Msg("failed to update notification status")
		}
	}
	return sendErr
}

func renderTemplate(template string, notifCtx *NotificationContext) string {
	meeting := ""
	if notifCtx.MeetingLink != "" {
		meeting = "Join the video call: " + notifCtx.MeetingLink
	}
	return strings.TrimSpace(strings.NewReplacer(
		"{{appointment_id}}", notifCtx.AppointmentID,
		"{{doctor_id}}", notifCtx.DoctorID,
		"{{date}}", notifCtx.ScheduledDate,
		"{{time}}", notifCtx.ScheduledTime,
		"{{meeting}}", meeting,
	).Replace(template))
}
