package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

const schedulesTable = "schedules"

// ScheduleAdapter implements the ScheduleRepository interface
type ScheduleAdapter struct {
	*Table[entities.Schedule]
}

var _ repositories.ScheduleRepository = (*ScheduleAdapter)(nil)

// NewScheduleAdapter creates a new schedule adapter
func NewScheduleAdapter(client *postgres.Client, metrics *observability.Metrics) *ScheduleAdapter {
	return &ScheduleAdapter{
		Table: NewTable(client, schedulesTable, "schedule",
			func(s *entities.Schedule) string { return s.ID }, metrics),
	}
}

// Create validates and inserts a schedule
func (a *ScheduleAdapter) Create(ctx context.Context, schedule *entities.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeValidation, "invalid schedule", err)
	}
	return a.Table.Create(ctx, schedule)
}

// Update validates and stores a schedule
func (a *ScheduleAdapter) Update(ctx context.Context, schedule *entities.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeValidation, "invalid schedule", err)
	}
	return a.Table.Update(ctx, schedule)
}

// GetByDoctorAndDay returns the doctor's windows for a weekday
func (a *ScheduleAdapter) GetByDoctorAndDay(ctx context.Context, doctorID string, day time.Weekday) ([]*entities.Schedule, error) {
	return a.selectAll(ctx, a.from().
		Where(goqu.Ex{"doctor_id": doctorID, "day_of_week": int(day)}).
		Order(goqu.I("start_time").Asc()))
}

// ListByDoctor returns the doctor's weekly schedule
func (a *ScheduleAdapter) ListByDoctor(ctx context.Context, doctorID string) ([]*entities.Schedule, error) {
	return a.selectAll(ctx, a.from().
		Where(goqu.Ex{"doctor_id": doctorID}).
		Order(goqu.I("day_of_week").Asc(), goqu.I("start_time").Asc()))
}
