package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

const appointmentsTable = "appointments"

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	*Table[entities.Appointment]
}

var _ repositories.AppointmentRepository = (*AppointmentAdapter)(nil)

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client, metrics *observability.Metrics) *AppointmentAdapter {
	return &AppointmentAdapter{
		Table: NewTable(client, appointmentsTable, "appointment",
			func(a *entities.Appointment) string { return a.ID }, metrics),
	}
}

// CreateIfSlotFree serializes bookings per doctor with a transaction-scoped
// advisory lock, re-checks the slot and inserts. The partial unique index on
// blocking appointments backs this up if the lock is ever bypassed.
func (a *AppointmentAdapter) CreateIfSlotFree(ctx context.Context, appointment *entities.Appointment, slot repositories.SlotQuery) error {
	defer a.observe(ctx, "create_if_slot_free", time.Now())

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin booking transaction", err)
	}

	err = tx.Wrap(func() error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", slot.DoctorID); err != nil {
			return apperrors.NewInternalError("failed to lock doctor schedule", err)
		}

		var conflicts []entities.Appointment
		if err := conflictFilter(tx.From(appointmentsTable), slot).Limit(1).ScanStructsContext(ctx, &conflicts); err != nil {
			return apperrors.NewInternalError("failed to check slot", err)
		}
		if len(conflicts) > 0 {
			return slotTaken(slot)
		}

		if _, err := tx.Insert(appointmentsTable).Rows(appointment).Executor().ExecContext(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return slotTaken(slot)
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.NewInternalError("failed to create appointment", err)
	}
	return nil
}

// GetByDoctorAndDate retrieves a doctor's appointments at an exact timestamp
func (a *AppointmentAdapter) GetByDoctorAndDate(ctx context.Context, doctorID string, at time.Time) ([]*entities.Appointment, error) {
	return a.selectAll(ctx, a.from().Where(goqu.Ex{
		"doctor_id":        doctorID,
		"appointment_date": at,
	}))
}

// FindConflicts retrieves blocking appointments colliding with slot
func (a *AppointmentAdapter) FindConflicts(ctx context.Context, slot repositories.SlotQuery) ([]*entities.Appointment, error) {
	return a.selectAll(ctx, conflictFilter(a.from(), slot).Order(goqu.I("appointment_date").Asc()))
}

// Find retrieves appointments matching filter
func (a *AppointmentAdapter) Find(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.from()

	if filter.DoctorID != "" {
		ds = ds.Where(goqu.Ex{"doctor_id": filter.DoctorID})
	}
	if filter.PatientID != "" {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID})
	}
	if len(filter.States) > 0 {
		ds = ds.Where(goqu.Ex{"state": stateStrings(filter.States)})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("appointment_date").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("appointment_date").Lt(*filter.To))
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = repositories.SortByAppointmentDate
	}
	var order exp.OrderedExpression
	if filter.SortDir == repositories.SortDesc {
		order = goqu.I(string(sortBy)).Desc()
	} else {
		order = goqu.I(string(sortBy)).Asc()
	}
	ds = ds.Order(order, goqu.I("id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.selectAll(ctx, ds)
}

// UpdateFromState writes the lifecycle columns guarded by the expected
// state, so a transition never overwrites one that committed after it read
// the row
func (a *AppointmentAdapter) UpdateFromState(ctx context.Context, appointment *entities.Appointment, expected entities.AppointmentState) error {
	return a.updateFromState(ctx, "update_from_state", appointment.ID, expected, goqu.Record{
		"state":        string(appointment.State),
		"updated_at":   appointment.UpdatedAt,
		"canceled_at":  appointment.CanceledAt,
		"completed_at": appointment.CompletedAt,
		"diagnosis_id": appointment.DiagnosisID,
		"prescription": appointment.Prescription,
	})
}

// SetPaid flags the appointment paid while it is still in expected
func (a *AppointmentAdapter) SetPaid(ctx context.Context, id string, expected entities.AppointmentState, at time.Time) error {
	return a.updateFromState(ctx, "set_paid", id, expected, goqu.Record{
		"is_paid":    true,
		"updated_at": at,
	})
}

// SetCalendarEventID updates the calendar_event_id column only
func (a *AppointmentAdapter) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	defer a.observe(ctx, "set_calendar_event_id", time.Now())

	result, err := a.db.Update(appointmentsTable).
		Set(goqu.Record{"calendar_event_id": eventID}).
		Where(goqu.Ex{"id": id}).
		Executor().ExecContext(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to store calendar event id", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return a.notFound(id)
	}
	return nil
}

func (a *AppointmentAdapter) updateFromState(ctx context.Context, op, id string, expected entities.AppointmentState, record goqu.Record) error {
	defer a.observe(ctx, op, time.Now())

	result, err := a.db.Update(appointmentsTable).
		Set(record).
		Where(goqu.Ex{"id": id, "state": string(expected)}).
		Executor().ExecContext(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	current, err := a.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.Wrap(apperrors.ErrorTypeConflict,
		fmt.Sprintf("appointment %s is no longer %s (now %s)", id, expected, current.State),
		entities.ErrInvalidTransition)
}

// BulkUpdate applies mutation to all matching rows in one statement
func (a *AppointmentAdapter) BulkUpdate(ctx context.Context, predicate repositories.AppointmentPredicate, mutation repositories.AppointmentMutation) ([]repositories.AppointmentRef, error) {
	defer a.observe(ctx, "bulk_update", time.Now())

	ds := a.db.Update(appointmentsTable).Set(goqu.Record{
		"state":      string(mutation.State),
		"updated_at": mutation.UpdatedAt,
	})
	if len(predicate.States) > 0 {
		ds = ds.Where(goqu.Ex{"state": stateStrings(predicate.States)})
	}
	if predicate.Before != nil {
		ds = ds.Where(goqu.C("appointment_date").Lt(*predicate.Before))
	}

	var changed []repositories.AppointmentRef
	err := ds.Returning("id", "doctor_id", "appointment_date").Executor().ScanStructsContext(ctx, &changed)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to bulk update appointments", err)
	}
	return changed, nil
}

func conflictFilter(ds *goqu.SelectDataset, slot repositories.SlotQuery) *goqu.SelectDataset {
	ds = ds.Where(goqu.Ex{
		"doctor_id": slot.DoctorID,
		"state":     stateStrings(entities.BlockingStates()),
	})
	if slot.Window <= 0 {
		return ds.Where(goqu.C("appointment_date").Eq(slot.At))
	}
	from, to := slot.Bounds()
	return ds.Where(
		goqu.C("appointment_date").Gt(from),
		goqu.C("appointment_date").Lt(to),
	)
}

func slotTaken(slot repositories.SlotQuery) error {
	return apperrors.Wrap(apperrors.ErrorTypeConflict,
		fmt.Sprintf("doctor %s is already booked at %s", slot.DoctorID, slot.At.Format(time.RFC3339)),
		entities.ErrSlotTaken)
}

func stateStrings(states []entities.AppointmentState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
