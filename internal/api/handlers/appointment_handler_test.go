package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/api/handlers"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

// MockAppointmentService defines the mock service
type MockAppointmentService struct {
	mock.Mock
}

func (m *MockAppointmentService) appointment(args mock.Arguments) (*entities.Appointment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) Book(ctx context.Context, req services.BookRequest) (*entities.Appointment, error) {
	return m.appointment(m.Called(ctx, req))
}

func (m *MockAppointmentService) Get(ctx context.Context, id string) (*entities.Appointment, error) {
	return m.appointment(m.Called(ctx, id))
}

func (m *MockAppointmentService) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) Meetings(ctx context.Context, id string) ([]*entities.Meeting, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Meeting), args.Error(1)
}

func (m *MockAppointmentService) Cancel(ctx context.Context, id string) (*entities.Appointment, error) {
	return m.appointment(m.Called(ctx, id))
}

func (m *MockAppointmentService) Activate(ctx context.Context, id string) (*entities.Appointment, error) {
	return m.appointment(m.Called(ctx, id))
}

func (m *MockAppointmentService) Complete(ctx context.Context, id, diagnosisID string, prescription *string) (*entities.Appointment, error) {
	return m.appointment(m.Called(ctx, id, diagnosisID, prescription))
}

func (m *MockAppointmentService) MarkPaid(ctx context.Context, id string) (*entities.Appointment, error) {
	return m.appointment(m.Called(ctx, id))
}

var bookedAt = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAppointmentHandler_BookAppointment(t *testing.T) {
	t.Run("successfully books appointment", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		body := `{"doctor_id":"doc-1","patient_id":"pat-1","appointment_date":"2024-06-03T09:00:00Z","patient_email":"p@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		mockService.On("Book", mock.Anything, mock.MatchedBy(func(r services.BookRequest) bool {
			return r.DoctorID == "doc-1" && r.PatientID == "pat-1" && r.At.Equal(bookedAt)
		})).Return(&entities.Appointment{ID: "appt-1", DoctorID: "doc-1", State: entities.AppointmentStatePlanned, AppointmentDate: bookedAt}, nil)

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "planned", decodeBody(t, w)["state"])
		mockService.AssertExpectations(t)
	})

	t.Run("returns bad request for invalid payload", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString("invalid-json"))
		w := httptest.NewRecorder()

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"doctor not available", apperrors.Wrap(apperrors.ErrorTypeValidation, "doctor is not working", entities.ErrDoctorNotAvailable), http.StatusBadRequest},
		{"slot taken", apperrors.Wrap(apperrors.ErrorTypeConflict, "slot taken", entities.ErrSlotTaken), http.StatusConflict},
		{"unexpected failure", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run("maps "+tc.name, func(t *testing.T) {
			mockService := new(MockAppointmentService)
			handler := handlers.NewAppointmentHandler(mockService)

			body := `{"doctor_id":"doc-1","patient_id":"pat-1","appointment_date":"2024-06-03T09:00:00Z"}`
			req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewBufferString(body))
			w := httptest.NewRecorder()

			mockService.On("Book", mock.Anything, mock.Anything).Return(nil, tc.err)

			handler.BookAppointment(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", decodeBody(t, w)["error"])
			}
		})
	}
}

func TestAppointmentHandler_ListAppointments(t *testing.T) {
	t.Run("builds filter from query", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		req := httptest.NewRequest(http.MethodGet,
			"/api/appointments?doctor_id=doc-1&state=planned,active&from=2024-06-01T00:00:00Z&to=2024-06-08T00:00:00Z&sort=created_at&order=desc&limit=500&offset=10", nil)
		w := httptest.NewRecorder()

		mockService.On("List", mock.Anything, mock.MatchedBy(func(f repositories.AppointmentFilter) bool {
			return f.DoctorID == "doc-1" &&
				assert.ObjectsAreEqual([]entities.AppointmentState{"planned", "active"}, f.States) &&
				f.From != nil && f.From.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) &&
				f.To != nil && f.To.Equal(time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)) &&
				f.SortBy == repositories.SortByCreatedAt && f.SortDir == repositories.SortDesc &&
				f.Limit == 200 && f.Offset == 10
		})).Return([]*entities.Appointment{{ID: "appt-1"}}, nil)

		handler.ListAppointments(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.EqualValues(t, 1, body["count"])
		mockService.AssertExpectations(t)
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		w := httptest.NewRecorder()
		mockService.On("List", mock.Anything, mock.Anything).Return(nil, nil)

		handler.ListAppointments(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"appointments":[]`)
	})

	for _, query := range []string{"from=yesterday", "sort=price", "order=up", "limit=0", "offset=-1"} {
		t.Run("rejects "+query, func(t *testing.T) {
			mockService := new(MockAppointmentService)
			handler := handlers.NewAppointmentHandler(mockService)

			req := httptest.NewRequest(http.MethodGet, "/api/appointments?"+query, nil)
			w := httptest.NewRecorder()

			handler.ListAppointments(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			mockService.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
		})
	}
}

func TestAppointmentHandler_GetAppointment(t *testing.T) {
	mockService := new(MockAppointmentService)
	handler := handlers.NewAppointmentHandler(mockService)

	mockService.On("Get", mock.Anything, "missing").
		Return(nil, apperrors.Wrap(apperrors.ErrorTypeNotFound, "appointment missing not found", entities.ErrNotFound))

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/missing", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.GetAppointment(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, w)["type"])
}

func TestAppointmentHandler_Transitions(t *testing.T) {
	t.Run("cancel of an active appointment conflicts", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		mockService.On("Cancel", mock.Anything, "appt-1").
			Return(nil, apperrors.Wrap(apperrors.ErrorTypeConflict, "state change rejected", entities.ErrInvalidTransition))

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.CancelAppointment(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("activate", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		mockService.On("Activate", mock.Anything, "appt-1").
			Return(&entities.Appointment{ID: "appt-1", State: entities.AppointmentStateActive}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/activate", nil)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.ActivateAppointment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "active", decodeBody(t, w)["state"])
	})

	t.Run("complete with outcome", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		mockService.On("Complete", mock.Anything, "appt-1", "diag-7", mock.MatchedBy(func(p *string) bool {
			return p != nil && *p == "rest"
		})).Return(&entities.Appointment{ID: "appt-1", State: entities.AppointmentStateCompleted}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/complete",
			bytes.NewBufferString(`{"diagnosis_id":"diag-7","prescription":"rest"}`))
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.CompleteAppointment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("complete without body", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		mockService.On("Complete", mock.Anything, "appt-1", "", (*string)(nil)).
			Return(&entities.Appointment{ID: "appt-1", State: entities.AppointmentStateCompleted}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/complete", http.NoBody)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.CompleteAppointment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("pay", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService)

		mockService.On("MarkPaid", mock.Anything, "appt-1").
			Return(&entities.Appointment{ID: "appt-1", IsPaid: true}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/appointments/appt-1/pay", nil)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		handler.PayAppointment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["is_paid"])
	})
}

func TestAppointmentHandler_GetMeetings(t *testing.T) {
	mockService := new(MockAppointmentService)
	handler := handlers.NewAppointmentHandler(mockService)

	mockService.On("Meetings", mock.Anything, "appt-1").
		Return([]*entities.Meeting{{ID: "m-1", JoinURL: "https://zoom.example/j/1"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/appt-1/meetings", nil)
	req.SetPathValue("id", "appt-1")
	w := httptest.NewRecorder()

	handler.GetMeetings(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://zoom.example/j/1")
}
