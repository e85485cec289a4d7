package repositories

import (
	"context"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	Store[entities.Appointment]

	// CreateIfSlotFree inserts the appointment only when no blocking
	// appointment conflicts with slot. The check and the insert are atomic;
	// a conflict returns an error wrapping entities.ErrSlotTaken.
	CreateIfSlotFree(ctx context.Context, appointment *entities.Appointment, slot SlotQuery) error

	// GetByDoctorAndDate retrieves every appointment of a doctor at an exact timestamp
	GetByDoctorAndDate(ctx context.Context, doctorID string, at time.Time) ([]*entities.Appointment, error)

	// FindConflicts retrieves blocking appointments that collide with slot
	FindConflicts(ctx context.Context, slot SlotQuery) ([]*entities.Appointment, error)

	// Find retrieves appointments matching the filter
	Find(ctx context.Context, filter AppointmentFilter) ([]*entities.Appointment, error)

	// UpdateFromState writes the lifecycle fields of appointment (state,
	// timestamps and outcome) only while the stored row is still in
	// expected. A row that moved on returns a CONFLICT wrapping
	// entities.ErrInvalidTransition and is left untouched.
	UpdateFromState(ctx context.Context, appointment *entities.Appointment, expected entities.AppointmentState) error

	// SetPaid flags the appointment paid while it is still in expected
	SetPaid(ctx context.Context, id string, expected entities.AppointmentState, at time.Time) error

	// SetCalendarEventID stores the external calendar event ID and nothing else
	SetCalendarEventID(ctx context.Context, id, eventID string) error

	// BulkUpdate applies mutation to every appointment matching predicate
	// in a single statement and returns the appointments it changed.
	BulkUpdate(ctx context.Context, predicate AppointmentPredicate, mutation AppointmentMutation) ([]AppointmentRef, error)
}

// AppointmentRef identifies an appointment changed by a bulk update
type AppointmentRef struct {
	ID              string    `db:"id"`
	DoctorID        string    `db:"doctor_id"`
	AppointmentDate time.Time `db:"appointment_date"`
}

// SlotQuery describes the slot a new appointment wants to occupy. A zero
// Window matches only appointments at exactly At; otherwise an existing
// appointment at d conflicts when |d - At| < Window.
type SlotQuery struct {
	DoctorID string
	At       time.Time
	Window   time.Duration
}

// Bounds returns the open interval (from, to) of conflicting start times.
func (q SlotQuery) Bounds() (from, to time.Time) {
	return q.At.Add(-q.Window), q.At.Add(q.Window)
}

// Matches reports whether an appointment starting at t falls in the query.
func (q SlotQuery) Matches(t time.Time) bool {
	if q.Window <= 0 {
		return t.Equal(q.At)
	}
	from, to := q.Bounds()
	return t.After(from) && t.Before(to)
}

// AppointmentSortField is a column appointments may be ordered by
type AppointmentSortField string

const (
	SortByAppointmentDate AppointmentSortField = "appointment_date"
	SortByCreatedAt       AppointmentSortField = "created_at"
)

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	States    []entities.AppointmentState
	From      *time.Time
	To        *time.Time
	SortBy    AppointmentSortField
	SortDir   SortDirection
	Page
}

// AppointmentPredicate selects appointments for a bulk update
type AppointmentPredicate struct {
	States []entities.AppointmentState
	Before *time.Time
}

// AppointmentMutation is the change applied by a bulk update
type AppointmentMutation struct {
	State     entities.AppointmentState
	UpdatedAt time.Time
}
