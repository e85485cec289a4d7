package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
)

// AppointmentService defines the interface for appointment operations
type AppointmentService interface {
	Book(ctx context.Context, req services.BookRequest) (*entities.Appointment, error)
	Get(ctx context.Context, id string) (*entities.Appointment, error)
	List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	Meetings(ctx context.Context, id string) ([]*entities.Meeting, error)
	Cancel(ctx context.Context, id string) (*entities.Appointment, error)
	Activate(ctx context.Context, id string) (*entities.Appointment, error)
	Complete(ctx context.Context, id, diagnosisID string, prescription *string) (*entities.Appointment, error)
	MarkPaid(ctx context.Context, id string) (*entities.Appointment, error)
}

const maxListLimit = 200

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service AppointmentService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
	}
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req services.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	appointment, err := h.service.Book(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appointment)
}

// ListAppointments handles GET /api/appointments
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repositories.AppointmentFilter{
		DoctorID:  query.Get("doctor_id"),
		PatientID: query.Get("patient_id"),
		SortBy:    repositories.SortByAppointmentDate,
		SortDir:   repositories.SortAsc,
		Page:      repositories.Page{Limit: 50},
	}

	for _, raw := range query["state"] {
		for _, state := range strings.Split(raw, ",") {
			if state = strings.TrimSpace(state); state != "" {
				filter.States = append(filter.States, entities.AppointmentState(state))
			}
		}
	}

	var err error
	if filter.From, err = optionalTime(query.Get("from")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid from date format (use RFC3339)")
		return
	}
	if filter.To, err = optionalTime(query.Get("to")); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid to date format (use RFC3339)")
		return
	}

	switch sort := query.Get("sort"); sort {
	case "", string(repositories.SortByAppointmentDate):
	case string(repositories.SortByCreatedAt):
		filter.SortBy = repositories.SortByCreatedAt
	default:
		respondWithError(w, http.StatusBadRequest, "sort must be appointment_date or created_at")
		return
	}

	switch order := query.Get("order"); order {
	case "", string(repositories.SortAsc):
	case string(repositories.SortDesc):
		filter.SortDir = repositories.SortDesc
	default:
		respondWithError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, maxListLimit)
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			respondWithError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	appointments, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if appointments == nil {
		appointments = []*entities.Appointment{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

// GetMeetings handles GET /api/appointments/{id}/meetings
func (h *AppointmentHandler) GetMeetings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	meetings, err := h.service.Meetings(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if meetings == nil {
		meetings = []*entities.Meeting{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"meetings": meetings,
	})
}

// CancelAppointment handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.Cancel)
}

// ActivateAppointment handles POST /api/appointments/{id}/activate
func (h *AppointmentHandler) ActivateAppointment(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.Activate)
}

// PayAppointment handles POST /api/appointments/{id}/pay
func (h *AppointmentHandler) PayAppointment(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.service.MarkPaid)
}

// CompleteRequest is the body of a completion
type CompleteRequest struct {
	DiagnosisID  string  `json:"diagnosis_id"`
	Prescription *string `json:"prescription,omitempty"`
}

// CompleteAppointment handles POST /api/appointments/{id}/complete. The body is optional.
func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	h.change(w, r, func(ctx context.Context, id string) (*entities.Appointment, error) {
		return h.service.Complete(ctx, id, req.DiagnosisID, req.Prescription)
	})
}

func (h *AppointmentHandler) change(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*entities.Appointment, error)) {
	id := r.PathValue("id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return
	}

	appointment, err := op(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

func optionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
