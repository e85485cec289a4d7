package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

// AppointmentStore keeps appointments in process memory
type AppointmentStore struct {
	*Table[entities.Appointment]
}

var _ repositories.AppointmentRepository = (*AppointmentStore)(nil)

// NewAppointmentStore creates an empty appointment store
func NewAppointmentStore() *AppointmentStore {
	return &AppointmentStore{
		Table: NewTable("appointment", func(a *entities.Appointment) string { return a.ID }),
	}
}

// CreateIfSlotFree checks and inserts under the table's write lock
func (s *AppointmentStore) CreateIfSlotFree(_ context.Context, appointment *entities.Appointment, slot repositories.SlotQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conflicts := s.selectLocked(conflictsWith(slot)); len(conflicts) > 0 {
		return apperrors.Wrap(apperrors.ErrorTypeConflict,
			fmt.Sprintf("doctor %s is already booked at %s", slot.DoctorID, slot.At.Format(time.RFC3339)),
			entities.ErrSlotTaken)
	}
	return s.insertLocked(appointment)
}

// GetByDoctorAndDate returns a doctor's appointments at exactly at
func (s *AppointmentStore) GetByDoctorAndDate(_ context.Context, doctorID string, at time.Time) ([]*entities.Appointment, error) {
	return s.selectAll(func(a *entities.Appointment) bool {
		return a.DoctorID == doctorID && a.AppointmentDate.Equal(at)
	}), nil
}

// FindConflicts returns blocking appointments colliding with slot
func (s *AppointmentStore) FindConflicts(_ context.Context, slot repositories.SlotQuery) ([]*entities.Appointment, error) {
	out := s.selectAll(conflictsWith(slot))
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	return out, nil
}

// Find filters, orders and pages appointments the same way the SQL adapter does
func (s *AppointmentStore) Find(_ context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	out := s.selectAll(func(a *entities.Appointment) bool {
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			return false
		}
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			return false
		}
		if len(filter.States) > 0 && !hasState(filter.States, a.State) {
			return false
		}
		if filter.From != nil && a.AppointmentDate.Before(*filter.From) {
			return false
		}
		if filter.To != nil && !a.AppointmentDate.Before(*filter.To) {
			return false
		}
		return true
	})

	key := func(a *entities.Appointment) time.Time {
		if filter.SortBy == repositories.SortByCreatedAt {
			return a.CreatedAt
		}
		return a.AppointmentDate
	}
	desc := filter.SortDir == repositories.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if !ki.Equal(kj) {
			if desc {
				return ki.After(kj)
			}
			return ki.Before(kj)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateFromState compares the stored state and writes lifecycle fields in
// one critical section
func (s *AppointmentStore) UpdateFromState(_ context.Context, appointment *entities.Appointment, expected entities.AppointmentState) error {
	return s.updateFromState(appointment.ID, expected, func(row *entities.Appointment) {
		row.State = appointment.State
		row.UpdatedAt = appointment.UpdatedAt
		row.CanceledAt = appointment.CanceledAt
		row.CompletedAt = appointment.CompletedAt
		row.DiagnosisID = appointment.DiagnosisID
		row.Prescription = appointment.Prescription
	})
}

// SetPaid flags the appointment paid if it is still in expected
func (s *AppointmentStore) SetPaid(_ context.Context, id string, expected entities.AppointmentState, at time.Time) error {
	return s.updateFromState(id, expected, func(row *entities.Appointment) {
		row.IsPaid = true
		row.UpdatedAt = at
	})
}

// SetCalendarEventID stores eventID without touching any other field
func (s *AppointmentStore) SetCalendarEventID(_ context.Context, id, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return s.notFound(id)
	}
	row.CalendarEventID = &eventID
	s.rows[id] = row
	return nil
}

func (s *AppointmentStore) updateFromState(id string, expected entities.AppointmentState, apply func(*entities.Appointment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return s.notFound(id)
	}
	if row.State != expected {
		return apperrors.Wrap(apperrors.ErrorTypeConflict,
			fmt.Sprintf("appointment %s is no longer %s (now %s)", id, expected, row.State),
			entities.ErrInvalidTransition)
	}
	apply(&row)
	s.rows[id] = row
	return nil
}

// BulkUpdate applies mutation to every matching appointment atomically
func (s *AppointmentStore) BulkUpdate(_ context.Context, predicate repositories.AppointmentPredicate, mutation repositories.AppointmentMutation) ([]repositories.AppointmentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []repositories.AppointmentRef
	for _, id := range s.order {
		row := s.rows[id]
		if len(predicate.States) > 0 && !hasState(predicate.States, row.State) {
			continue
		}
		if predicate.Before != nil && !row.AppointmentDate.Before(*predicate.Before) {
			continue
		}
		row.State = mutation.State
		row.UpdatedAt = mutation.UpdatedAt
		s.rows[id] = row
		changed = append(changed, repositories.AppointmentRef{ID: id, DoctorID: row.DoctorID, AppointmentDate: row.AppointmentDate})
	}
	return changed, nil
}

func conflictsWith(slot repositories.SlotQuery) func(*entities.Appointment) bool {
	return func(a *entities.Appointment) bool {
		return a.DoctorID == slot.DoctorID && a.State.IsBlocking() && slot.Matches(a.AppointmentDate)
	}
}

func hasState(states []entities.AppointmentState, s entities.AppointmentState) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
