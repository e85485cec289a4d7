package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	"github.com/hospitalcare/appointments/pkg/retry"
)

const sweepLockKey = "locks:sweeper:missed"

// SweeperConfig controls when the missed-appointment sweep runs
type SweeperConfig struct {
	// At is the time of day of the first run; later runs follow every Interval
	At       entities.TimeOfDay
	Interval time.Duration
	LockTTL  time.Duration
	Notify   bool
	Location *time.Location
	Retry    retry.Config
}

// SweepResult describes one sweep
type SweepResult struct {
	Cutoff    time.Time `json:"cutoff"`
	MissedIDs []string  `json:"missed_ids"`
	Skipped   bool      `json:"skipped,omitempty"`
}

// SweeperService moves planned appointments whose day has passed to missed
type SweeperService struct {
	repo     repositories.AppointmentRepository
	notifier *NotificationService
	locker   providers.Locker
	eventBus providers.EventBus
	clock    providers.Clock
	metrics  *observability.Metrics
	cfg      SweeperConfig
}

// NewSweeperService creates a new sweeper. notifier, locker and eventBus may be nil.
func NewSweeperService(
	repo repositories.AppointmentRepository,
	notifier *NotificationService,
	locker providers.Locker,
	eventBus providers.EventBus,
	clock providers.Clock,
	metrics *observability.Metrics,
	cfg SweeperConfig,
) *SweeperService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.QuickConfig()
	}
	return &SweeperService{
		repo:     repo,
		notifier: notifier,
		locker:   locker,
		eventBus: eventBus,
		clock:    clock,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Sweep marks every planned appointment dated before today as missed in a
// single bulk update. Running it again the same day changes nothing.
func (s *SweeperService) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := observability.StartSpan(ctx, "SweeperService.Sweep")
	defer span.End()

	now := s.clock.Now()
	cutoff := startOfDay(now.In(s.cfg.Location))

	predicate := repositories.AppointmentPredicate{
		States: []entities.AppointmentState{entities.AppointmentStatePlanned},
		Before: &cutoff,
	}
	mutation := repositories.AppointmentMutation{
		State:     entities.AppointmentStateMissed,
		UpdatedAt: now,
	}

	var changed []repositories.AppointmentRef
	err := retry.DoWithLog(ctx, s.cfg.Retry, "sweeper", func() error {
		var err error
		changed, err = s.repo.BulkUpdate(ctx, predicate, mutation)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("sweep failed, retrying")
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	ids := make([]string, len(changed))
	for i, ref := range changed {
		ids[i] = ref.ID
	}
	result := &SweepResult{Cutoff: cutoff, MissedIDs: ids}

	observability.RecordSwept(ctx, s.metrics, len(ids))
	if len(changed) > 0 {
		s.publishMissed(ctx, changed, now)
	}
	if s.cfg.Notify && s.notifier != nil {
		s.notifyMissed(ctx, ids)
	}

	log.Info().Int("missed", len(ids)).Time("cutoff", cutoff).Msg("missed-appointment sweep finished")
	return result, nil
}

// publishMissed emits one state change per appointment so doctor streams
// see it, then a summary on the global channel
func (s *SweeperService) publishMissed(ctx context.Context, changed []repositories.AppointmentRef, now time.Time) {
	for _, ref := range changed {
		date := ref.AppointmentDate
		publishEvent(ctx, s.eventBus, &entities.AppointmentEvent{
			ID:              uuid.NewString(),
			AppointmentID:   ref.ID,
			DoctorID:        ref.DoctorID,
			EventType:       entities.AppointmentEventStateChanged,
			FromState:       entities.AppointmentStatePlanned,
			ToState:         entities.AppointmentStateMissed,
			AppointmentDate: &date,
			Timestamp:       now,
		})
	}
	publishEvent(ctx, s.eventBus, &entities.AppointmentEvent{
		ID:        "sweep-" + now.UTC().Format("20060102T150405"),
		EventType: entities.AppointmentEventSwept,
		ToState:   entities.AppointmentStateMissed,
		Count:     len(changed),
		Timestamp: now,
	})
}

func (s *SweeperService) notifyMissed(ctx context.Context, ids []string) {
	for _, id := range ids {
		appointment, err := s.repo.GetByID(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("appointment_id", id).Msg("failed to load missed appointment")
			continue
		}
		_ = s.notifier.SendMissedNotice(ctx, appointment)
	}
}

// RunOnce sweeps while holding the cluster-wide sweep lease. When another
// replica holds it the result is marked skipped.
func (s *SweeperService) RunOnce(ctx context.Context) (*SweepResult, error) {
	if s.locker == nil {
		return s.Sweep(ctx)
	}

	lock, err := s.locker.TryAcquire(ctx, sweepLockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		log.Debug().Msg("sweep lease held elsewhere, skipping")
		return &SweepResult{Skipped: true, MissedIDs: []string{}}, nil
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to release sweep lease")
		}
	}()

	return s.Sweep(ctx)
}

// StartPeriodic runs the sweep on schedule until ctx is done. Failures are
// logged and retried at the next run.
func (s *SweeperService) StartPeriodic(ctx context.Context) {
	log.Info().Str("at", s.cfg.At.String()).Dur("interval", s.cfg.Interval).Msg("missed-appointment sweeper started")
	for {
		next := nextRun(s.clock.Now().In(s.cfg.Location), s.cfg.At, s.cfg.Interval)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("missed-appointment sweeper stopped")
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("missed-appointment sweep failed")
		}
	}
}

// nextRun returns the first instant after now that is at on some day plus a
// whole number of intervals
func nextRun(now time.Time, at entities.TimeOfDay, interval time.Duration) time.Time {
	next := at.On(now)
	if next.After(now) {
		for {
			prev := next.Add(-interval)
			if !prev.After(now) {
				return next
			}
			next = prev
		}
	}
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
