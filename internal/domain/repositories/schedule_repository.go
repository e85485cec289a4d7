package repositories

import (
	"context"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// ScheduleRepository defines read access to doctors' weekly schedules
type ScheduleRepository interface {
	Store[entities.Schedule]

	// GetByDoctorAndDay returns the doctor's schedules for a weekday ordered by start time
	GetByDoctorAndDay(ctx context.Context, doctorID string, day time.Weekday) ([]*entities.Schedule, error)

	// ListByDoctor returns the doctor's whole week ordered by day and start time
	ListByDoctor(ctx context.Context, doctorID string) ([]*entities.Schedule, error)
}
