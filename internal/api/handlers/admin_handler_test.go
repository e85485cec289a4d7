package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/adapters/cache"
	"github.com/hospitalcare/appointments/internal/adapters/clock"
	"github.com/hospitalcare/appointments/internal/adapters/memory"
	"github.com/hospitalcare/appointments/internal/api/handlers"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
)

func urlEscape(s string) string {
	return url.QueryEscape(s)
}

func TestAdminHandler_TriggerSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAppointmentStore()
	require.NoError(t, store.Create(ctx, &entities.Appointment{
		ID: "appt-1", DoctorID: "doc-1", State: entities.AppointmentStatePlanned,
		AppointmentDate: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}))

	locker := cache.NewLocalLocker()
	sweeper := services.NewSweeperService(store, nil, locker, nil,
		clock.NewFixedClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)), nil, services.SweeperConfig{})
	handler := handlers.NewAdminHandler(sweeper, nil)

	t.Run("runs the sweep", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.TriggerSweep(w, httptest.NewRequest(http.MethodPost, "/api/admin/sweeps", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []interface{}{"appt-1"}, decodeBody(t, w)["missed_ids"])
	})

	t.Run("reports a held lease", func(t *testing.T) {
		lock, err := locker.TryAcquire(ctx, "locks:sweeper:missed", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)

		w := httptest.NewRecorder()
		handler.TriggerSweep(w, httptest.NewRequest(http.MethodPost, "/api/admin/sweeps", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["skipped"])
	})
}

func TestAdminHandler_CreateSchedule(t *testing.T) {
	schedules := memory.NewScheduleStore()
	availability := services.NewAvailabilityService(schedules, cache.NewLocalLocker(), time.UTC)
	handler := handlers.NewAdminHandler(nil, availability)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.CreateSchedule(w, httptest.NewRequest(http.MethodPost, "/api/admin/schedules", strings.NewReader(body)))
		return w
	}

	w := post(`{"doctor_id":"doc-1","day_of_week":1,"start_time":"08:00","end_time":"13:00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decodeBody(t, w)["id"])

	assert.Equal(t, http.StatusConflict, post(`{"doctor_id":"doc-1","day_of_week":1,"start_time":"12:00","end_time":"15:00"}`).Code)
	assert.Equal(t, http.StatusCreated, post(`{"doctor_id":"doc-1","day_of_week":1,"start_time":"14:00","end_time":"17:00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"doctor_id":"doc-1","day_of_week":2,"start_time":"13:00","end_time":"08:00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"doctor_id":"doc-1","day_of_week":2,"start_time":"25:00","end_time":"26:00"}`).Code)

	windows, err := availability.WindowsFor(context.Background(), "doc-1", time.Monday)
	require.NoError(t, err)
	assert.Len(t, windows, 2)
}
