package memory

import (
	"context"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
)

// NotificationStore keeps the notification log in process memory
type NotificationStore struct {
	*Table[entities.AppointmentNotification]
}

var _ repositories.NotificationRepository = (*NotificationStore)(nil)

// NewNotificationStore creates an empty notification log
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		Table: NewTable("notification", func(n *entities.AppointmentNotification) string { return n.ID }),
	}
}

// MarkSent records a successful delivery
func (s *NotificationStore) MarkSent(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(n *entities.AppointmentNotification) {
		n.Status = entities.NotificationStatusSent
		n.SentAt = &at
		n.UpdatedAt = at
	})
}

// MarkFailed records a failed delivery
func (s *NotificationStore) MarkFailed(_ context.Context, id string, reason string, at time.Time) error {
	return s.mutate(id, func(n *entities.AppointmentNotification) {
		n.Status = entities.NotificationStatusFailed
		n.FailedAt = &at
		n.ErrorMessage = &reason
		n.UpdatedAt = at
	})
}

// ListByAppointment returns the log entries of an appointment
func (s *NotificationStore) ListByAppointment(_ context.Context, appointmentID string) ([]*entities.AppointmentNotification, error) {
	return s.selectAll(func(n *entities.AppointmentNotification) bool { return n.AppointmentID == appointmentID }), nil
}

func (s *NotificationStore) mutate(id string, fn func(*entities.AppointmentNotification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return s.notFound(id)
	}
	fn(&row)
	s.rows[id] = row
	return nil
}
