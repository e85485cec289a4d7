package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/adapters/clock"
	"github.com/hospitalcare/appointments/internal/adapters/events"
	"github.com/hospitalcare/appointments/internal/adapters/memory"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/pkg/config"
)

// Mocks

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCalendarEvent(ctx context.Context, user providers.CalendarUser, appointment *entities.Appointment) (string, error) {
	args := m.Called(ctx, user, appointment)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CancelCalendarEvent(ctx context.Context, user providers.CalendarUser, appointment *entities.Appointment) error {
	args := m.Called(ctx, user, appointment)
	return args.Error(0)
}

func (m *MockGateway) CreateMeeting(ctx context.Context, appointment *entities.Appointment) (*entities.Meeting, error) {
	args := m.Called(ctx, appointment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Meeting), args.Error(1)
}

func (m *MockGateway) DeleteMeeting(ctx context.Context, meeting *entities.Meeting) error {
	args := m.Called(ctx, meeting)
	return args.Error(0)
}

func (m *MockGateway) SendEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// allowSideEffects lets every gateway call succeed without asserting on it
func allowSideEffects(g *MockGateway) {
	g.On("CreateCalendarEvent", mock.Anything, mock.Anything, mock.Anything).Return("evt-1", nil).Maybe()
	g.On("CancelCalendarEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	g.On("CreateMeeting", mock.Anything, mock.Anything).Return(nil, &entities.IntegrationError{Operation: "create_meeting"}).Maybe()
	g.On("DeleteMeeting", mock.Anything, mock.Anything).Return(nil).Maybe()
	g.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

// Fixtures

// 2024-06-03 is a Monday
var (
	monday9am  = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	saturday   = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	doctorID   = "doc-1"
	patientID  = "patient-1"
	patientTo  = "patient@example.com"
	blockingOf = entities.BlockingStates()
)

type fixture struct {
	service       *services.AppointmentService
	appointments  *memory.AppointmentStore
	schedules     *memory.ScheduleStore
	meetings      *memory.MeetingStore
	notifications *memory.NotificationStore
	gateway       *MockGateway
	bus           *events.MemoryEventBus
	clock         *clock.FixedClock
}

func newFixture(t *testing.T, policy config.SlotPolicy, gateway *MockGateway) *fixture {
	t.Helper()

	f := &fixture{
		appointments:  memory.NewAppointmentStore(),
		schedules:     memory.NewScheduleStore(),
		meetings:      memory.NewMeetingStore(),
		notifications: memory.NewNotificationStore(),
		gateway:       gateway,
		bus:           events.NewMemoryEventBus(),
		clock:         clock.NewFixedClock(saturday),
	}
	t.Cleanup(func() { _ = f.bus.Close() })

	require.NoError(t, f.schedules.Create(context.Background(), &entities.Schedule{
		ID:        "sched-1",
		DoctorID:  doctorID,
		DayOfWeek: time.Monday,
		StartTime: entities.NewTimeOfDay(8, 0),
		EndTime:   entities.NewTimeOfDay(13, 0),
	}))

	availability := services.NewAvailabilityService(f.schedules, nil, time.UTC)
	slots := services.NewSlotChecker(f.appointments, policy, 30*time.Minute)
	notifier := services.NewNotificationService(gateway, f.notifications, f.clock, time.UTC)
	f.service = services.NewAppointmentService(f.appointments, f.meetings, availability, slots, gateway, notifier, f.bus, f.clock, nil)
	return f
}

func (f *fixture) book(at time.Time) (*entities.Appointment, error) {
	return f.service.Book(context.Background(), services.BookRequest{
		DoctorID:     doctorID,
		PatientID:    patientID,
		At:           at,
		PatientEmail: patientTo,
	})
}

func (f *fixture) seed(t *testing.T, id string, at time.Time, state entities.AppointmentState) *entities.Appointment {
	t.Helper()
	appointment := &entities.Appointment{
		ID:              id,
		DoctorID:        doctorID,
		PatientID:       patientID,
		AppointmentDate: at,
		State:           state,
		Price:           "0",
		PatientEmail:    patientTo,
	}
	require.NoError(t, f.appointments.Create(context.Background(), appointment))
	return appointment
}
