package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/adapters/memory"
	"github.com/hospitalcare/appointments/internal/api/handlers"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/pkg/config"
)

func newDoctorHandler(t *testing.T) (*handlers.DoctorHandler, *memory.AppointmentStore) {
	t.Helper()
	ctx := context.Background()

	schedules := memory.NewScheduleStore()
	require.NoError(t, schedules.Create(ctx, &entities.Schedule{
		ID: "sched-1", DoctorID: "doc-1", DayOfWeek: time.Monday,
		StartTime: entities.NewTimeOfDay(8, 0), EndTime: entities.NewTimeOfDay(13, 0),
	}))
	appointments := memory.NewAppointmentStore()

	availability := services.NewAvailabilityService(schedules, nil, time.UTC)
	slots := services.NewSlotChecker(appointments, config.SlotPolicyPoint, 0)
	return handlers.NewDoctorHandler(availability, slots), appointments
}

func TestDoctorHandler_GetAvailability(t *testing.T) {
	handler, appointments := newDoctorHandler(t)
	require.NoError(t, appointments.Create(context.Background(), &entities.Appointment{
		ID: "appt-1", DoctorID: "doc-1", AppointmentDate: bookedAt, State: entities.AppointmentStatePlanned,
	}))

	tests := []struct {
		name    string
		at      string
		status  int
		working bool
		free    bool
	}{
		{"booked slot", "2024-06-03T09:00:00Z", http.StatusOK, true, false},
		{"open slot", "2024-06-03T09:30:00Z", http.StatusOK, true, true},
		{"end of window is excluded", "2024-06-03T13:00:00Z", http.StatusOK, false, false},
		{"day off", "2024-06-04T09:00:00Z", http.StatusOK, false, false},
		{"offset is normalised", "2024-06-03T11:00:00+02:00", http.StatusOK, true, false},
		{"missing at", "", http.StatusBadRequest, false, false},
		{"bad at", "monday", http.StatusBadRequest, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/doctors/doc-1/availability"
			if tt.at != "" {
				target += "?at=" + urlEscape(tt.at)
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.SetPathValue("id", "doc-1")
			w := httptest.NewRecorder()

			handler.GetAvailability(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				return
			}
			body := decodeBody(t, w)
			assert.Equal(t, tt.working, body["working"])
			assert.Equal(t, tt.free, body["free"])
		})
	}
}

func TestDoctorHandler_GetSchedule(t *testing.T) {
	handler, _ := newDoctorHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/doc-1/schedule", nil)
	req.SetPathValue("id", "doc-1")
	w := httptest.NewRecorder()

	handler.GetSchedule(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"doctor_id":"doc-1","windows":[{"doctor_id":"doc-1","weekday":1,"start":"08:00","end":"13:00"}]}`,
		w.Body.String())
}
