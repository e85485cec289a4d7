package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType represents the type of appointment event
type AppointmentEventType string

const (
	AppointmentEventBooked       AppointmentEventType = "booked"
	AppointmentEventStateChanged AppointmentEventType = "state_changed"
	AppointmentEventPaid         AppointmentEventType = "paid"
	AppointmentEventSwept        AppointmentEventType = "swept"
)

// AppointmentEvent is published whenever an appointment changes
type AppointmentEvent struct {
	ID              string               `json:"id"`
	AppointmentID   string               `json:"appointment_id,omitempty"`
	DoctorID        string               `json:"doctor_id,omitempty"`
	EventType       AppointmentEventType `json:"event_type"`
	FromState       AppointmentState     `json:"from_state,omitempty"`
	ToState         AppointmentState     `json:"to_state,omitempty"`
	AppointmentDate *time.Time           `json:"appointment_date,omitempty"`
	Count           int                  `json:"count,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

// NewAppointmentEvent creates an event describing appt after a change from the given state.
func NewAppointmentEvent(appt *Appointment, eventType AppointmentEventType, from AppointmentState, at time.Time) *AppointmentEvent {
	date := appt.AppointmentDate
	return &AppointmentEvent{
		ID:              uuid.NewString(),
		AppointmentID:   appt.ID,
		DoctorID:        appt.DoctorID,
		EventType:       eventType,
		FromState:       from,
		ToState:         appt.State,
		AppointmentDate: &date,
		Timestamp:       at,
	}
}
