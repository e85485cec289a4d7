package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
)

// Sweeper runs the missed-appointment sweep
type Sweeper interface {
	RunOnce(ctx context.Context) (*services.SweepResult, error)
}

// ScheduleWriter maintains doctors' working windows
type ScheduleWriter interface {
	AddSchedule(ctx context.Context, schedule *entities.Schedule) error
}

// AdminHandler handles operational endpoints
type AdminHandler struct {
	sweeper   Sweeper
	schedules ScheduleWriter
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sweeper Sweeper, schedules ScheduleWriter) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, schedules: schedules}
}

// TriggerSweep handles POST /api/admin/sweeps
func (h *AdminHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Skipped {
		status = http.StatusAccepted
	}
	respondWithJSON(w, status, result)
}

// CreateSchedule handles POST /api/admin/schedules
func (h *AdminHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var schedule entities.Schedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	schedule.ID = ""

	if err := h.schedules.AddSchedule(r.Context(), &schedule); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, schedule)
}
