package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
)

// CachedScheduleAdapter wraps a ScheduleRepository with read-through caching
// of per-day lookups. Writes through the adapter invalidate the affected keys.
type CachedScheduleAdapter struct {
	repositories.ScheduleRepository
	cache   providers.CacheProvider
	ttl     int
	metrics *observability.Metrics
}

// NewCachedScheduleAdapter creates a new cached schedule adapter. ttl is in seconds.
func NewCachedScheduleAdapter(adapter repositories.ScheduleRepository, cache providers.CacheProvider, ttl int, metrics *observability.Metrics) *CachedScheduleAdapter {
	return &CachedScheduleAdapter{
		ScheduleRepository: adapter,
		cache:              cache,
		ttl:                ttl,
		metrics:            metrics,
	}
}

func scheduleDayCacheKey(doctorID string, day time.Weekday) string {
	return fmt.Sprintf("schedule:%s:%d", doctorID, int(day))
}

// GetByDoctorAndDay retrieves a doctor's windows for a weekday with caching
func (a *CachedScheduleAdapter) GetByDoctorAndDay(ctx context.Context, doctorID string, day time.Weekday) ([]*entities.Schedule, error) {
	cacheKey := scheduleDayCacheKey(doctorID, day)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var schedules []*entities.Schedule
		if err := json.Unmarshal(cached, &schedules); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "schedule")
			return schedules, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to unmarshal cached schedule")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "schedule")

	schedules, err := a.ScheduleRepository.GetByDoctorAndDay(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(schedules); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, a.ttl); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache schedule")
		}
	}

	return schedules, nil
}

// Create stores a schedule and drops the cached day
func (a *CachedScheduleAdapter) Create(ctx context.Context, schedule *entities.Schedule) error {
	if err := a.ScheduleRepository.Create(ctx, schedule); err != nil {
		return err
	}
	a.invalidate(ctx, schedule.DoctorID, schedule.DayOfWeek)
	return nil
}

// Update stores a schedule and drops every day it may have moved between
func (a *CachedScheduleAdapter) Update(ctx context.Context, schedule *entities.Schedule) error {
	previous, _ := a.ScheduleRepository.GetByID(ctx, schedule.ID)
	if err := a.ScheduleRepository.Update(ctx, schedule); err != nil {
		return err
	}
	a.invalidate(ctx, schedule.DoctorID, schedule.DayOfWeek)
	if previous != nil && (previous.DayOfWeek != schedule.DayOfWeek || previous.DoctorID != schedule.DoctorID) {
		a.invalidate(ctx, previous.DoctorID, previous.DayOfWeek)
	}
	return nil
}

func (a *CachedScheduleAdapter) invalidate(ctx context.Context, doctorID string, day time.Weekday) {
	if err := a.cache.Delete(ctx, scheduleDayCacheKey(doctorID, day)); err != nil {
		log.Warn().Err(err).Str("doctor_id", doctorID).Msg("failed to invalidate schedule cache")
	}
}
