//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/hospitalcare/appointments/internal/adapters/database"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
)

type AppointmentAdapterIntegrationTestSuite struct {
	suite.Suite
	client  *postgres.Client
	adapter *database.AppointmentAdapter
	ctx     context.Context
}

func TestAppointmentAdapterIntegration(t *testing.T) {
	requireEnv(t, "TEST_DB_HOST")
	suite.Run(t, new(AppointmentAdapterIntegrationTestSuite))
}

func (s *AppointmentAdapterIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.client = newTestPostgresClient(s.T())
	s.adapter = database.NewAppointmentAdapter(s.client, nil)
}

func (s *AppointmentAdapterIntegrationTestSuite) SetupTest() {
	truncateTables(s.T(), s.client)
}

func (s *AppointmentAdapterIntegrationTestSuite) newAppointment(doctorID string, at time.Time) *entities.Appointment {
	now := time.Now().UTC().Truncate(time.Second)
	return &entities.Appointment{
		ID:              uuid.NewString(),
		DoctorID:        doctorID,
		PatientID:       "patient-" + uuid.NewString()[:8],
		AppointmentDate: at,
		State:           entities.AppointmentStatePlanned,
		Price:           "0",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *AppointmentAdapterIntegrationTestSuite) TestCreateAndGet() {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	appt := s.newAppointment("doc-1", at)

	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, appt, repositories.SlotQuery{DoctorID: "doc-1", At: at}))

	got, err := s.adapter.GetByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Equal(appt.DoctorID, got.DoctorID)
	s.True(at.Equal(got.AppointmentDate))
	s.Equal(entities.AppointmentStatePlanned, got.State)
}

func (s *AppointmentAdapterIntegrationTestSuite) TestSlotTakenUntilCanceled() {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	slot := repositories.SlotQuery{DoctorID: "doc-1", At: at}

	first := s.newAppointment("doc-1", at)
	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, first, slot))

	err := s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-1", at), slot)
	s.True(errors.Is(err, entities.ErrSlotTaken), "got %v", err)

	s.Require().NoError(first.Cancel(time.Now().UTC()))
	s.Require().NoError(s.adapter.Update(s.ctx, first))

	s.NoError(s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-1", at), slot))
}

func (s *AppointmentAdapterIntegrationTestSuite) TestConcurrentBookingsOneWins() {
	at := time.Date(2024, 6, 4, 14, 0, 0, 0, time.UTC)
	slot := repositories.SlotQuery{DoctorID: "doc-race", At: at}

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		taken   int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-race", at), slot)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, entities.ErrSlotTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, success)
	s.Equal(attempts-1, taken)
}

func (s *AppointmentAdapterIntegrationTestSuite) TestWindowConflicts() {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-1", at), repositories.SlotQuery{DoctorID: "doc-1", At: at}))

	near := repositories.SlotQuery{DoctorID: "doc-1", At: at.Add(15 * time.Minute), Window: 30 * time.Minute}
	conflicts, err := s.adapter.FindConflicts(s.ctx, near)
	s.Require().NoError(err)
	s.Len(conflicts, 1)

	far := repositories.SlotQuery{DoctorID: "doc-1", At: at.Add(30 * time.Minute), Window: 30 * time.Minute}
	conflicts, err = s.adapter.FindConflicts(s.ctx, far)
	s.Require().NoError(err)
	s.Empty(conflicts)
}

func (s *AppointmentAdapterIntegrationTestSuite) TestFindFiltersAndPages() {
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-1", at), repositories.SlotQuery{DoctorID: "doc-1", At: at}))
	}
	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-2", base), repositories.SlotQuery{DoctorID: "doc-2", At: base}))

	page, err := s.adapter.Find(s.ctx, repositories.AppointmentFilter{
		DoctorID: "doc-1",
		SortDir:  repositories.SortDesc,
		Page:     repositories.Page{Limit: 2, Offset: 1},
	})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.True(page[0].AppointmentDate.Equal(base.Add(3 * time.Hour)))
	s.True(page[1].AppointmentDate.Equal(base.Add(2 * time.Hour)))

	to := base.Add(2 * time.Hour)
	early, err := s.adapter.Find(s.ctx, repositories.AppointmentFilter{DoctorID: "doc-1", From: &base, To: &to})
	s.Require().NoError(err)
	s.Len(early, 2)
}

func (s *AppointmentAdapterIntegrationTestSuite) TestUpdateFromStateRejectsStaleWriter() {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	appt := s.newAppointment("doc-1", at)
	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, appt, repositories.SlotQuery{DoctorID: "doc-1", At: at}))
	s.Require().NoError(s.adapter.SetCalendarEventID(s.ctx, appt.ID, "evt-1"))

	stale, err := s.adapter.GetByID(s.ctx, appt.ID)
	s.Require().NoError(err)

	canceled, err := s.adapter.GetByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Require().NoError(canceled.Cancel(at))
	s.Require().NoError(s.adapter.UpdateFromState(s.ctx, canceled, entities.AppointmentStatePlanned))

	s.Require().NoError(stale.Activate(at))
	err = s.adapter.UpdateFromState(s.ctx, stale, entities.AppointmentStatePlanned)
	s.ErrorIs(err, entities.ErrInvalidTransition)

	got, err := s.adapter.GetByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Equal(entities.AppointmentStateCanceled, got.State)
	s.Require().NotNil(got.CalendarEventID)
	s.Equal("evt-1", *got.CalendarEventID)
}

func (s *AppointmentAdapterIntegrationTestSuite) TestBulkUpdateMarksPastPlannedMissed() {
	past := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	future := time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)

	stale := s.newAppointment("doc-1", past)
	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, stale, repositories.SlotQuery{DoctorID: "doc-1", At: past}))
	s.Require().NoError(s.adapter.CreateIfSlotFree(s.ctx, s.newAppointment("doc-1", future), repositories.SlotQuery{DoctorID: "doc-1", At: future}))

	cutoff := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	predicate := repositories.AppointmentPredicate{
		States: []entities.AppointmentState{entities.AppointmentStatePlanned},
		Before: &cutoff,
	}
	mutation := repositories.AppointmentMutation{State: entities.AppointmentStateMissed, UpdatedAt: cutoff}

	changed, err := s.adapter.BulkUpdate(s.ctx, predicate, mutation)
	s.Require().NoError(err)
	s.Require().Len(changed, 1)
	s.Equal(stale.ID, changed[0].ID)
	s.Equal("doc-1", changed[0].DoctorID)
	s.True(past.Equal(changed[0].AppointmentDate))

	changed, err = s.adapter.BulkUpdate(s.ctx, predicate, mutation)
	s.Require().NoError(err)
	s.Empty(changed)

	got, err := s.adapter.GetByID(s.ctx, stale.ID)
	s.Require().NoError(err)
	s.Equal(entities.AppointmentStateMissed, got.State)
}
