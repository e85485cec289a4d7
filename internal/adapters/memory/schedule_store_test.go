package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

func TestScheduleStore(t *testing.T) {
	ctx := context.Background()
	store := NewScheduleStore()

	require.NoError(t, store.Create(ctx, &entities.Schedule{ID: "s2", DoctorID: "d1", DayOfWeek: time.Monday,
		StartTime: entities.NewTimeOfDay(14, 0), EndTime: entities.NewTimeOfDay(18, 0)}))
	require.NoError(t, store.Create(ctx, &entities.Schedule{ID: "s1", DoctorID: "d1", DayOfWeek: time.Monday,
		StartTime: entities.NewTimeOfDay(8, 0), EndTime: entities.NewTimeOfDay(12, 0)}))
	require.NoError(t, store.Create(ctx, &entities.Schedule{ID: "s0", DoctorID: "d1", DayOfWeek: time.Sunday,
		StartTime: entities.NewTimeOfDay(9, 0), EndTime: entities.NewTimeOfDay(10, 0)}))

	monday, err := store.GetByDoctorAndDay(ctx, "d1", time.Monday)
	require.NoError(t, err)
	require.Len(t, monday, 2)
	assert.Equal(t, "s1", monday[0].ID)
	assert.Equal(t, "s2", monday[1].ID)

	week, err := store.ListByDoctor(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, week, 3)
	assert.Equal(t, "s0", week[0].ID)

	none, err := store.GetByDoctorAndDay(ctx, "d1", time.Friday)
	require.NoError(t, err)
	assert.Empty(t, none)

	err = store.Create(ctx, &entities.Schedule{ID: "bad", DoctorID: "d1", DayOfWeek: time.Tuesday,
		StartTime: entities.NewTimeOfDay(12, 0), EndTime: entities.NewTimeOfDay(9, 0)})
	assert.ErrorIs(t, err, entities.ErrInvalidSchedule)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestNotificationStore_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	store := NewNotificationStore()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, &entities.AppointmentNotification{ID: "n1", AppointmentID: "a1", Status: entities.NotificationStatusPending}))
	require.NoError(t, store.Create(ctx, &entities.AppointmentNotification{ID: "n2", AppointmentID: "a1", Status: entities.NotificationStatusPending}))

	require.NoError(t, store.MarkSent(ctx, "n1", at))
	require.NoError(t, store.MarkFailed(ctx, "n2", "smtp down", at))
	assert.ErrorIs(t, store.MarkSent(ctx, "missing", at), entities.ErrNotFound)

	list, err := store.ListByAppointment(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, entities.NotificationStatusSent, list[0].Status)
	assert.Equal(t, entities.NotificationStatusFailed, list[1].Status)
	require.NotNil(t, list[1].ErrorMessage)
	assert.Equal(t, "smtp down", *list[1].ErrorMessage)
}
