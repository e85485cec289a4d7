package routes

import (
	"net/http"

	"github.com/hospitalcare/appointments/internal/api/handlers"
	"github.com/hospitalcare/appointments/internal/api/middleware"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler
	doctorHandler      *handlers.DoctorHandler
	adminHandler       *handlers.AdminHandler

	// optional
	paymentWebhookHandler *handlers.PaymentWebhookHandler
	sseHandler            *handlers.SSEHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. The webhook and stream handlers may be nil.
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	doctorHandler *handlers.DoctorHandler,
	adminHandler *handlers.AdminHandler,
	paymentWebhookHandler *handlers.PaymentWebhookHandler,
	sseHandler *handlers.SSEHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                   http.NewServeMux(),
		appointmentHandler:    appointmentHandler,
		doctorHandler:         doctorHandler,
		adminHandler:          adminHandler,
		paymentWebhookHandler: paymentWebhookHandler,
		sseHandler:            sseHandler,
		allowedOrigins:        allowedOrigins,
		metrics:               metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Appointment endpoints
	r.mux.HandleFunc("POST /api/appointments", r.appointmentHandler.BookAppointment)
	r.mux.HandleFunc("GET /api/appointments", r.appointmentHandler.ListAppointments)
	r.mux.HandleFunc("GET /api/appointments/{id}", r.appointmentHandler.GetAppointment)
	r.mux.HandleFunc("GET /api/appointments/{id}/meetings", r.appointmentHandler.GetMeetings)
	r.mux.HandleFunc("POST /api/appointments/{id}/cancel", r.appointmentHandler.CancelAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/activate", r.appointmentHandler.ActivateAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/complete", r.appointmentHandler.CompleteAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/pay", r.appointmentHandler.PayAppointment)

	// Doctor endpoints
	r.mux.HandleFunc("GET /api/doctors/{id}/schedule", r.doctorHandler.GetSchedule)
	r.mux.HandleFunc("GET /api/doctors/{id}/availability", r.doctorHandler.GetAvailability)

	// Admin endpoints
	r.mux.HandleFunc("POST /api/admin/sweeps", r.adminHandler.TriggerSweep)
	r.mux.HandleFunc("POST /api/admin/schedules", r.adminHandler.CreateSchedule)

	// Payment callbacks are only accepted when a signing secret is configured
	if r.paymentWebhookHandler != nil {
		r.mux.HandleFunc("POST /webhooks/payments", r.paymentWebhookHandler.HandleWebhook)
	}

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/doctors/{id}/appointments", r.sseHandler.StreamDoctorAppointments)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}
