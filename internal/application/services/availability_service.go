package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
	"github.com/hospitalcare/appointments/pkg/retry"
)

const (
	scheduleLockPrefix = "locks:schedules:"
	scheduleLockTTL    = 30 * time.Second
)

var errScheduleBusy = errors.New("schedule lock held")

// scheduleLockRetry waits out another writer of the same doctor's week
var scheduleLockRetry = retry.Config{
	MaxAttempts:     10,
	InitialDelay:    10 * time.Millisecond,
	MaxDelay:        200 * time.Millisecond,
	BackoffFactor:   2.0,
	MaxTotalTimeout: 5 * time.Second,
}

// AvailabilityService answers when doctors work, from their weekly schedules
type AvailabilityService struct {
	schedules repositories.ScheduleRepository
	locker    providers.Locker
	loc       *time.Location

	// serializes writers when no locker is configured
	mu sync.Mutex
}

// NewAvailabilityService creates a new availability service. Times are
// compared to working hours in loc. Schedule writes of one doctor are
// serialized through locker, or within the process when it is nil.
func NewAvailabilityService(schedules repositories.ScheduleRepository, locker providers.Locker, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{schedules: schedules, locker: locker, loc: loc}
}

// Location returns the timezone working hours are expressed in
func (s *AvailabilityService) Location() *time.Location {
	return s.loc
}

// GetWindow returns the doctor's working window on day. When a doctor has
// several windows that day the earliest one is returned.
func (s *AvailabilityService) GetWindow(ctx context.Context, doctorID string, day time.Weekday) (entities.WorkingWindow, error) {
	windows, err := s.WindowsFor(ctx, doctorID, day)
	if err != nil {
		return entities.WorkingWindow{}, err
	}
	if len(windows) == 0 {
		return entities.WorkingWindow{}, doctorNotAvailable(fmt.Sprintf("doctor %s does not work on %s", doctorID, day))
	}
	return windows[0], nil
}

// WindowsFor returns every working window of the doctor on day, ordered by start
func (s *AvailabilityService) WindowsFor(ctx context.Context, doctorID string, day time.Weekday) ([]entities.WorkingWindow, error) {
	schedules, err := s.schedules.GetByDoctorAndDay(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	windows := make([]entities.WorkingWindow, 0, len(schedules))
	for _, schedule := range schedules {
		windows = append(windows, schedule.Window())
	}
	return windows, nil
}

// IsWorking reports whether at falls inside one of the doctor's windows
func (s *AvailabilityService) IsWorking(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	local := at.In(s.loc)
	windows, err := s.WindowsFor(ctx, doctorID, local.Weekday())
	if err != nil {
		return false, err
	}
	for _, window := range windows {
		if window.Contains(local) {
			return true, nil
		}
	}
	return false, nil
}

// WeeklySchedule returns the doctor's schedule entries for the whole week
func (s *AvailabilityService) WeeklySchedule(ctx context.Context, doctorID string) ([]*entities.Schedule, error) {
	return s.schedules.ListByDoctor(ctx, doctorID)
}

// AddSchedule stores a new working window. Windows of the same doctor on
// the same day must not overlap.
func (s *AvailabilityService) AddSchedule(ctx context.Context, schedule *entities.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeValidation, "invalid schedule", err)
	}

	// the overlap check and the insert must not interleave with another writer
	unlock, err := s.lockDoctor(ctx, schedule.DoctorID)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.schedules.GetByDoctorAndDay(ctx, schedule.DoctorID, schedule.DayOfWeek)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if schedule.StartTime < other.EndTime && other.StartTime < schedule.EndTime {
			return apperrors.Wrap(apperrors.ErrorTypeConflict,
				fmt.Sprintf("window %s-%s overlaps %s-%s on %s", schedule.StartTime, schedule.EndTime, other.StartTime, other.EndTime, schedule.DayOfWeek),
				entities.ErrInvalidSchedule)
		}
	}

	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	return s.schedules.Create(ctx, schedule)
}

func (s *AvailabilityService) lockDoctor(ctx context.Context, doctorID string) (func(), error) {
	if s.locker == nil {
		s.mu.Lock()
		return s.mu.Unlock, nil
	}

	key := scheduleLockPrefix + doctorID
	var lock providers.Lock
	err := retry.Do(ctx, scheduleLockRetry, func() error {
		var err error
		lock, err = s.locker.TryAcquire(ctx, key, scheduleLockTTL)
		if err != nil {
			return retry.Permanent(err)
		}
		if lock == nil {
			return errScheduleBusy
		}
		return nil
	})
	if errors.Is(err, errScheduleBusy) {
		return nil, apperrors.Wrap(apperrors.ErrorTypeConflict,
			fmt.Sprintf("schedule of doctor %s is being changed, try again", doctorID), err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to lock doctor schedule", err)
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Warn().Err(err).Str("doctor_id", doctorID).Msg("failed to release schedule lock")
		}
	}, nil
}

func doctorNotAvailable(message string) error {
	return apperrors.Wrap(apperrors.ErrorTypeValidation, message, entities.ErrDoctorNotAvailable)
}
