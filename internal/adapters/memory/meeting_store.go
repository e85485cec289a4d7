package memory

import (
	"context"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
)

// MeetingStore keeps meetings in process memory
type MeetingStore struct {
	*Table[entities.Meeting]
}

var _ repositories.MeetingRepository = (*MeetingStore)(nil)

// NewMeetingStore creates an empty meeting store
func NewMeetingStore() *MeetingStore {
	return &MeetingStore{
		Table: NewTable("meeting", func(m *entities.Meeting) string { return m.ID }),
	}
}

// ListByAppointment returns the meetings attached to an appointment
func (s *MeetingStore) ListByAppointment(_ context.Context, appointmentID string) ([]*entities.Meeting, error) {
	return s.selectAll(func(m *entities.Meeting) bool { return m.AppointmentID == appointmentID }), nil
}
