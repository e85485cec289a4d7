package entities

import (
	"fmt"
	"math/big"
	"time"
)

// AppointmentState represents the lifecycle state of an appointment
type AppointmentState string

const (
	AppointmentStatePlanned   AppointmentState = "planned"
	AppointmentStateActive    AppointmentState = "active"
	AppointmentStateCompleted AppointmentState = "completed"
	AppointmentStateCanceled  AppointmentState = "canceled"
	AppointmentStateMissed    AppointmentState = "missed"
)

// allowed lists every legal edge. Terminal states have no entry.
var allowed = map[AppointmentState][]AppointmentState{
	AppointmentStatePlanned: {AppointmentStateActive, AppointmentStateCanceled, AppointmentStateMissed},
	AppointmentStateActive:  {AppointmentStateCompleted},
}

// BlockingStates are the states that occupy a doctor's slot.
func BlockingStates() []AppointmentState {
	return []AppointmentState{AppointmentStatePlanned, AppointmentStateActive, AppointmentStateCompleted}
}

// Valid reports whether s is a known state.
func (s AppointmentState) Valid() bool {
	switch s {
	case AppointmentStatePlanned, AppointmentStateActive, AppointmentStateCompleted,
		AppointmentStateCanceled, AppointmentStateMissed:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s AppointmentState) IsTerminal() bool {
	return s.Valid() && len(allowed[s]) == 0
}

// IsBlocking reports whether an appointment in s prevents re-use of its slot.
func (s AppointmentState) IsBlocking() bool {
	return s == AppointmentStatePlanned || s == AppointmentStateActive || s == AppointmentStateCompleted
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to AppointmentState) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment represents one scheduled visit with a doctor
type Appointment struct {
	ID              string           `json:"id" db:"id" goqu:"skipupdate"`
	DoctorID        string           `json:"doctor_id" db:"doctor_id"`
	PatientID       string           `json:"patient_id" db:"patient_id"`
	AppointmentDate time.Time        `json:"appointment_date" db:"appointment_date"`
	DiagnosisID     *string          `json:"diagnosis_id,omitempty" db:"diagnosis_id"`
	Prescription    *string          `json:"prescription,omitempty" db:"prescription"`
	State           AppointmentState `json:"state" db:"state"`
	IsPaid          bool             `json:"is_paid" db:"is_paid"`
	Price           string           `json:"price" db:"price"`
	PatientEmail    string           `json:"patient_email,omitempty" db:"patient_email"`
	CalendarEventID *string          `json:"calendar_event_id,omitempty" db:"calendar_event_id"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at" goqu:"skipupdate"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	CanceledAt      *time.Time       `json:"canceled_at,omitempty" db:"canceled_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}

// TransitionTo moves the appointment to the next state. On failure the
// appointment is left untouched.
func (a *Appointment) TransitionTo(to AppointmentState, at time.Time) error {
	if !CanTransition(a.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, to)
	}

	a.State = to
	a.UpdatedAt = at
	switch to {
	case AppointmentStateCanceled:
		a.CanceledAt = &at
	case AppointmentStateCompleted:
		a.CompletedAt = &at
	}
	return nil
}

// Cancel moves a planned appointment to canceled.
func (a *Appointment) Cancel(at time.Time) error {
	if a.State != AppointmentStatePlanned {
		return fmt.Errorf("%w: appointment must be planned to cancel (current state %s)", ErrInvalidTransition, a.State)
	}
	return a.TransitionTo(AppointmentStateCanceled, at)
}

// Activate checks the patient in.
func (a *Appointment) Activate(at time.Time) error {
	return a.TransitionTo(AppointmentStateActive, at)
}

// Complete records the outcome of an active appointment.
func (a *Appointment) Complete(diagnosisID string, prescription *string, at time.Time) error {
	if a.State != AppointmentStateActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, AppointmentStateCompleted)
	}
	if err := a.TransitionTo(AppointmentStateCompleted, at); err != nil {
		return err
	}
	if diagnosisID != "" {
		a.DiagnosisID = &diagnosisID
	}
	a.Prescription = prescription
	return nil
}

// MarkPaid records a confirmed payment. Payment does not change the state,
// but canceled and missed appointments cannot be paid. Marking an already
// paid appointment is a no-op and reports changed=false.
func (a *Appointment) MarkPaid(at time.Time) (changed bool, err error) {
	if a.State == AppointmentStateCanceled || a.State == AppointmentStateMissed {
		return false, fmt.Errorf("%w: cannot pay a %s appointment", ErrInvalidTransition, a.State)
	}
	if a.IsPaid {
		return false, nil
	}
	a.IsPaid = true
	a.UpdatedAt = at
	return true, nil
}

// ValidatePrice checks that price is a non-negative decimal.
func ValidatePrice(price string) error {
	if price == "" {
		return nil
	}
	r, ok := new(big.Rat).SetString(price)
	if !ok {
		return fmt.Errorf("price %q is not a decimal number", price)
	}
	if r.Sign() < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return nil
}
