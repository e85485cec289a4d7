package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

// ScheduleStore keeps doctors' weekly schedules in process memory
type ScheduleStore struct {
	*Table[entities.Schedule]
}

var _ repositories.ScheduleRepository = (*ScheduleStore)(nil)

// NewScheduleStore creates an empty schedule store
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		Table: NewTable("schedule", func(s *entities.Schedule) string { return s.ID }),
	}
}

// Create validates and inserts a schedule
func (s *ScheduleStore) Create(ctx context.Context, schedule *entities.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeValidation, err.Error(), err)
	}
	return s.Table.Create(ctx, schedule)
}

// Update validates and replaces a schedule
func (s *ScheduleStore) Update(ctx context.Context, schedule *entities.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeValidation, err.Error(), err)
	}
	return s.Table.Update(ctx, schedule)
}

// GetByDoctorAndDay returns the doctor's schedules for day ordered by start time
func (s *ScheduleStore) GetByDoctorAndDay(_ context.Context, doctorID string, day time.Weekday) ([]*entities.Schedule, error) {
	out := s.selectAll(func(sc *entities.Schedule) bool {
		return sc.DoctorID == doctorID && sc.DayOfWeek == day
	})
	sortSchedules(out)
	return out, nil
}

// ListByDoctor returns the doctor's whole week
func (s *ScheduleStore) ListByDoctor(_ context.Context, doctorID string) ([]*entities.Schedule, error) {
	out := s.selectAll(func(sc *entities.Schedule) bool { return sc.DoctorID == doctorID })
	sortSchedules(out)
	return out, nil
}

func sortSchedules(schedules []*entities.Schedule) {
	sort.SliceStable(schedules, func(i, j int) bool {
		if schedules[i].DayOfWeek != schedules[j].DayOfWeek {
			return schedules[i].DayOfWeek < schedules[j].DayOfWeek
		}
		return schedules[i].StartTime < schedules[j].StartTime
	})
}
