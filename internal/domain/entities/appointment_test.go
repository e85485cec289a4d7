package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []AppointmentState{
	AppointmentStatePlanned,
	AppointmentStateActive,
	AppointmentStateCompleted,
	AppointmentStateCanceled,
	AppointmentStateMissed,
}

func TestCanTransition_OnlyListedEdges(t *testing.T) {
	legal := map[[2]AppointmentState]bool{
		{AppointmentStatePlanned, AppointmentStateActive}:   true,
		{AppointmentStatePlanned, AppointmentStateCanceled}: true,
		{AppointmentStatePlanned, AppointmentStateMissed}:   true,
		{AppointmentStateActive, AppointmentStateCompleted}: true,
	}

	for _, from := range allStates {
		for _, to := range allStates {
			assert.Equal(t, legal[[2]AppointmentState{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionTo_RejectedLeavesAppointmentUnchanged(t *testing.T) {
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for _, from := range allStates {
		for _, to := range allStates {
			if CanTransition(from, to) {
				continue
			}
			appt := &Appointment{ID: "a1", State: from, UpdatedAt: at}
			before := *appt

			err := appt.TransitionTo(to, at.Add(time.Hour))

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, before, *appt)
		}
	}
}

func TestStateClassification(t *testing.T) {
	assert.True(t, AppointmentStateCompleted.IsTerminal())
	assert.True(t, AppointmentStateCanceled.IsTerminal())
	assert.True(t, AppointmentStateMissed.IsTerminal())
	assert.False(t, AppointmentStatePlanned.IsTerminal())
	assert.False(t, AppointmentState("bogus").IsTerminal())

	assert.ElementsMatch(t, BlockingStates(), []AppointmentState{
		AppointmentStatePlanned, AppointmentStateActive, AppointmentStateCompleted,
	})
	for _, s := range BlockingStates() {
		assert.True(t, s.IsBlocking())
	}
	assert.False(t, AppointmentStateCanceled.IsBlocking())
	assert.False(t, AppointmentStateMissed.IsBlocking())
}

func TestCancel(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("planned appointment is canceled", func(t *testing.T) {
		appt := &Appointment{State: AppointmentStatePlanned}

		require.NoError(t, appt.Cancel(now))
		assert.Equal(t, AppointmentStateCanceled, appt.State)
		require.NotNil(t, appt.CanceledAt)
		assert.Equal(t, now, *appt.CanceledAt)
	})

	t.Run("completed appointment cannot be canceled", func(t *testing.T) {
		appt := &Appointment{State: AppointmentStateCompleted}

		err := appt.Cancel(now)

		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Contains(t, err.Error(), "must be planned to cancel")
		assert.Equal(t, AppointmentStateCompleted, appt.State)
		assert.Nil(t, appt.CanceledAt)
	})
}

func TestComplete_RecordsOutcome(t *testing.T) {
	now := time.Now()
	rx := "ibuprofen 200mg"
	appt := &Appointment{State: AppointmentStateActive}

	require.NoError(t, appt.Complete("diag-1", &rx, now))

	assert.Equal(t, AppointmentStateCompleted, appt.State)
	require.NotNil(t, appt.DiagnosisID)
	assert.Equal(t, "diag-1", *appt.DiagnosisID)
	assert.Equal(t, &rx, appt.Prescription)
	assert.NotNil(t, appt.CompletedAt)
}

func TestMarkPaid(t *testing.T) {
	now := time.Now()

	appt := &Appointment{State: AppointmentStatePlanned}
	changed, err := appt.MarkPaid(now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, appt.IsPaid)

	changed, err = appt.MarkPaid(now)
	require.NoError(t, err)
	assert.False(t, changed)

	missed := &Appointment{State: AppointmentStateMissed}
	_, err = missed.MarkPaid(now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, missed.IsPaid)
}

func TestValidatePrice(t *testing.T) {
	assert.NoError(t, ValidatePrice(""))
	assert.NoError(t, ValidatePrice("150.00"))
	assert.Error(t, ValidatePrice("-1"))
	assert.Error(t, ValidatePrice("ten"))
}
