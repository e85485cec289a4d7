package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// AvailabilityService answers questions about a doctor's working hours
type AvailabilityService interface {
	WeeklySchedule(ctx context.Context, doctorID string) ([]*entities.Schedule, error)
	IsWorking(ctx context.Context, doctorID string, at time.Time) (bool, error)
}

// SlotChecker reports whether a doctor's slot is still open
type SlotChecker interface {
	IsSlotFree(ctx context.Context, doctorID string, at time.Time) (bool, error)
}

// DoctorHandler handles doctor schedule and availability requests
type DoctorHandler struct {
	availability AvailabilityService
	slots        SlotChecker
}

// NewDoctorHandler creates a new doctor handler
func NewDoctorHandler(availability AvailabilityService, slots SlotChecker) *DoctorHandler {
	return &DoctorHandler{
		availability: availability,
		slots:        slots,
	}
}

// GetSchedule handles GET /api/doctors/{id}/schedule
func (h *DoctorHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID := r.PathValue("id")
	if doctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctor ID is required")
		return
	}

	schedules, err := h.availability.WeeklySchedule(r.Context(), doctorID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	windows := make([]entities.WorkingWindow, 0, len(schedules))
	for _, schedule := range schedules {
		windows = append(windows, schedule.Window())
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"windows":   windows,
	})
}

// GetAvailability handles GET /api/doctors/{id}/availability?at=RFC3339
func (h *DoctorHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := r.PathValue("id")
	if doctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctor ID is required")
		return
	}

	atStr := r.URL.Query().Get("at")
	if atStr == "" {
		respondWithError(w, http.StatusBadRequest, "at query parameter is required")
		return
	}
	at, err := time.Parse(time.RFC3339, atStr)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid at date format (use RFC3339)")
		return
	}
	at = at.UTC().Truncate(time.Second)

	working, err := h.availability.IsWorking(r.Context(), doctorID, at)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	free := false
	if working {
		if free, err = h.slots.IsSlotFree(r.Context(), doctorID, at); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"at":        at,
		"working":   working,
		"free":      free,
	})
}
