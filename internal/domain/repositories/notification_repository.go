package repositories

import (
	"context"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// NotificationRepository records outgoing appointment notifications
type NotificationRepository interface {
	Create(ctx context.Context, notification *entities.AppointmentNotification) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, at time.Time) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.AppointmentNotification, error)
}
