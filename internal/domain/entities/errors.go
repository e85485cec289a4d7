package entities

import (
	"errors"
	"fmt"
)

// Domain error kinds. Services wrap these in an AppError so handlers can
// map them to a status while callers still match with errors.Is.
var (
	ErrDoctorNotAvailable = errors.New("doctor not available")
	ErrSlotTaken          = errors.New("slot taken")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNotFound           = errors.New("not found")
	ErrInvalidSchedule    = errors.New("invalid schedule")
)

// IntegrationError reports a failed side effect. It is logged by the
// gateway and never returned from booking or cancellation.
type IntegrationError struct {
	Operation string
	Err       error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration %s failed: %v", e.Operation, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}
