package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

const markPaidAttempts = 3

// BookRequest is a request to book a patient with a doctor
type BookRequest struct {
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	At            time.Time `json:"appointment_date"`
	Price         string    `json:"price,omitempty"`
	PatientEmail  string    `json:"patient_email,omitempty"`
	CreateMeeting bool      `json:"create_meeting,omitempty"`
}

// Validate checks the request fields that do not need a store lookup
func (r *BookRequest) Validate() error {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.PatientEmail = strings.TrimSpace(r.PatientEmail)

	if r.DoctorID == "" {
		return apperrors.NewValidationError("doctor_id is required")
	}
	if r.PatientID == "" {
		return apperrors.NewValidationError("patient_id is required")
	}
	if r.At.IsZero() {
		return apperrors.NewValidationError("appointment_date is required")
	}
	if err := entities.ValidatePrice(r.Price); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// AppointmentService runs the booking workflow and appointment lifecycle
type AppointmentService struct {
	repo         repositories.AppointmentRepository
	meetingRepo  repositories.MeetingRepository
	availability *AvailabilityService
	slots        *SlotChecker
	gateway      providers.IntegrationGateway
	notifier     *NotificationService
	eventBus     providers.EventBus
	clock        providers.Clock
	metrics      *observability.Metrics
}

// NewAppointmentService creates a new appointment service. eventBus,
// notifier and metrics may be nil.
func NewAppointmentService(
	repo repositories.AppointmentRepository,
	meetingRepo repositories.MeetingRepository,
	availability *AvailabilityService,
	slots *SlotChecker,
	gateway providers.IntegrationGateway,
	notifier *NotificationService,
	eventBus providers.EventBus,
	clock providers.Clock,
	metrics *observability.Metrics,
) *AppointmentService {
	return &AppointmentService{
		repo:         repo,
		meetingRepo:  meetingRepo,
		availability: availability,
		slots:        slots,
		gateway:      gateway,
		notifier:     notifier,
		eventBus:     eventBus,
		clock:        clock,
		metrics:      metrics,
	}
}

// Book books a doctor for a patient. The doctor must be working at the
// requested time and the slot must be free; integration side effects are
// best-effort and never fail the booking.
func (s *AppointmentService) Book(ctx context.Context, req BookRequest) (*entities.Appointment, error) {
	ctx, span := observability.StartSpan(ctx, "AppointmentService.Book")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, s.rejected(ctx, "invalid", err)
	}

	// timestamps are stored in UTC at second precision so exact-match
	// conflicts compare equal regardless of the caller's zone
	at := req.At.UTC().Truncate(time.Second)
	now := s.clock.Now()
	if at.Before(now) {
		return nil, s.rejected(ctx, "past", apperrors.NewValidationError("cannot book an appointment in the past"))
	}

	observability.SetSpanAttributes(span,
		attribute.String("doctor_id", req.DoctorID),
		attribute.String("appointment_date", at.Format(time.RFC3339)),
	)

	working, err := s.availability.IsWorking(ctx, req.DoctorID, at)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !working {
		local := at.In(s.availability.Location())
		return nil, s.rejected(ctx, "doctor_not_available", doctorNotAvailable(
			fmt.Sprintf("doctor %s does not work on %s at %s", req.DoctorID, local.Weekday(), local.Format("15:04"))))
	}

	free, err := s.slots.IsSlotFree(ctx, req.DoctorID, at)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !free {
		return nil, s.rejected(ctx, "slot_taken", apperrors.Wrap(apperrors.ErrorTypeConflict,
			fmt.Sprintf("doctor %s is already booked at %s", req.DoctorID, at.Format(time.RFC3339)), entities.ErrSlotTaken))
	}

	price := req.Price
	if price == "" {
		price = "0"
	}
	appointment := &entities.Appointment{
		ID:              uuid.New().String(),
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		AppointmentDate: at,
		State:           entities.AppointmentStatePlanned,
		Price:           price,
		PatientEmail:    req.PatientEmail,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// the store re-checks the slot atomically; a concurrent winner makes this fail with SlotTaken
	if err := s.repo.CreateIfSlotFree(ctx, appointment, s.slots.Query(req.DoctorID, at)); err != nil {
		if errors.Is(err, entities.ErrSlotTaken) {
			return nil, s.rejected(ctx, "slot_taken", err)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	s.afterBooking(ctx, appointment, req.CreateMeeting)

	observability.RecordBooking(ctx, s.metrics)
	s.publish(ctx, entities.NewAppointmentEvent(appointment, entities.AppointmentEventBooked, "", now))

	log.Info().
		Str("appointment_id", appointment.ID).
		Str("doctor_id", appointment.DoctorID).
		Time("appointment_date", appointment.AppointmentDate).
		Msg("appointment booked")

	return appointment, nil
}

func (s *AppointmentService) afterBooking(ctx context.Context, appointment *entities.Appointment, withMeeting bool) {
	if s.gateway == nil {
		return
	}

	if eventID, err := s.gateway.CreateCalendarEvent(ctx, calendarUser(appointment), appointment); err == nil && eventID != "" {
		appointment.CalendarEventID = &eventID
		// only the event id is written; a cancel racing the calendar call keeps its state
		if err := s.repo.SetCalendarEventID(ctx, appointment.ID, eventID); err != nil {
			log.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("failed to store calendar event id")
		} else if stored, err := s.repo.GetByID(ctx, appointment.ID); err == nil && stored.State == entities.AppointmentStateCanceled {
			// the cancel ran before the event existed and could not remove it
			_ = s.gateway.CancelCalendarEvent(ctx, calendarUser(stored), stored)
			return
		}
	}

	var meeting *entities.Meeting
	if withMeeting {
		meeting, _ = s.gateway.CreateMeeting(ctx, appointment)
	}

	if s.notifier != nil {
		_ = s.notifier.SendBookingConfirmation(ctx, appointment, meeting)
	}
}

// Get returns an appointment by ID
func (s *AppointmentService) Get(ctx context.Context, id string) (*entities.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns appointments matching filter
func (s *AppointmentService) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperrors.NewValidationError("from must be before to")
	}
	for _, state := range filter.States {
		if !state.Valid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown state %q", state))
		}
	}
	return s.repo.Find(ctx, filter)
}

// Meetings returns the meetings attached to an appointment
func (s *AppointmentService) Meetings(ctx context.Context, id string) ([]*entities.Meeting, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.meetingRepo.ListByAppointment(ctx, id)
}

// Cancel cancels a planned appointment, then removes its meetings and
// calendar event and notifies the patient on a best-effort basis
func (s *AppointmentService) Cancel(ctx context.Context, id string) (*entities.Appointment, error) {
	appointment, err := s.transition(ctx, id, func(a *entities.Appointment, at time.Time) error {
		return a.Cancel(at)
	})
	if err != nil {
		return nil, err
	}

	if s.gateway != nil {
		meetings, err := s.meetingRepo.ListByAppointment(ctx, appointment.ID)
		if err != nil {
			log.Warn().Err(err).Str("appointment_id", appointment.ID).Msg("failed to list meetings")
		}
		for _, meeting := range meetings {
			_ = s.gateway.DeleteMeeting(ctx, meeting)
		}
		_ = s.gateway.CancelCalendarEvent(ctx, calendarUser(appointment), appointment)
	}
	if s.notifier != nil {
		_ = s.notifier.SendCancellationNotice(ctx, appointment)
	}
	return appointment, nil
}

// Activate checks a planned appointment in
func (s *AppointmentService) Activate(ctx context.Context, id string) (*entities.Appointment, error) {
	return s.transition(ctx, id, func(a *entities.Appointment, at time.Time) error {
		return a.Activate(at)
	})
}

// Complete records the outcome of an active appointment
func (s *AppointmentService) Complete(ctx context.Context, id, diagnosisID string, prescription *string) (*entities.Appointment, error) {
	return s.transition(ctx, id, func(a *entities.Appointment, at time.Time) error {
		return a.Complete(diagnosisID, prescription, at)
	})
}

// MarkPaid records a confirmed payment. Paying twice is not an error. A
// state change committed between the read and the write is re-read and
// judged again.
func (s *AppointmentService) MarkPaid(ctx context.Context, id string) (*entities.Appointment, error) {
	for attempt := 1; ; attempt++ {
		appointment, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		changed, err := appointment.MarkPaid(now)
		if err != nil {
			return nil, invalidTransition(err)
		}
		if !changed {
			return appointment, nil
		}

		err = s.repo.SetPaid(ctx, appointment.ID, appointment.State, now)
		if errors.Is(err, entities.ErrInvalidTransition) && attempt < markPaidAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(ctx, entities.NewAppointmentEvent(appointment, entities.AppointmentEventPaid, appointment.State, now))
		log.Info().Str("appointment_id", appointment.ID).Msg("appointment paid")
		return appointment, nil
	}
}

// transition loads the appointment, applies change and persists the result
// only if the stored state is still the one change was checked against. A
// rejected change leaves the stored record untouched.
func (s *AppointmentService) transition(ctx context.Context, id string, change func(*entities.Appointment, time.Time) error) (*entities.Appointment, error) {
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := appointment.State
	now := s.clock.Now()
	if err := change(appointment, now); err != nil {
		return nil, invalidTransition(err)
	}

	if err := s.repo.UpdateFromState(ctx, appointment, from); err != nil {
		return nil, err
	}

	observability.RecordTransition(ctx, s.metrics, string(from), string(appointment.State))
	s.publish(ctx, entities.NewAppointmentEvent(appointment, entities.AppointmentEventStateChanged, from, now))

	log.Info().
		Str("appointment_id", appointment.ID).
		Str("from", string(from)).
		Str("to", string(appointment.State)).
		Msg("appointment state changed")
	return appointment, nil
}

func (s *AppointmentService) publish(ctx context.Context, event *entities.AppointmentEvent) {
	publishEvent(ctx, s.eventBus, event)
}

func (s *AppointmentService) rejected(ctx context.Context, reason string, err error) error {
	observability.RecordBookingRejected(ctx, s.metrics, reason)
	log.Debug().Err(err).Str("reason", reason).Msg("booking rejected")
	return err
}

// publishEvent sends event to the global and doctor channels. A nil bus is a no-op.
func publishEvent(ctx context.Context, bus providers.EventBus, event *entities.AppointmentEvent) {
	if bus == nil {
		return
	}
	channels := []string{providers.EventChannelAppointmentUpdates}
	if event.DoctorID != "" {
		channels = append(channels, providers.GetDoctorChannel(event.DoctorID))
	}
	for _, channel := range channels {
		if err := bus.Publish(ctx, channel, event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Str("event_type", string(event.EventType)).Msg("failed to publish appointment event")
		}
	}
}

func invalidTransition(err error) error {
	return apperrors.Wrap(apperrors.ErrorTypeConflict, "state change rejected", err)
}

func calendarUser(appointment *entities.Appointment) providers.CalendarUser {
	return providers.CalendarUser{ID: appointment.PatientID, Email: appointment.PatientEmail}
}
