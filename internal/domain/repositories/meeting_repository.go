package repositories

import (
	"context"

	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// MeetingRepository stores video meetings created for appointments
type MeetingRepository interface {
	Store[entities.Meeting]
	ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.Meeting, error)
	Delete(ctx context.Context, id string) error
}
