package services

import (
	"context"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/pkg/config"
)

// SlotChecker decides whether a doctor is free at a given instant.
//
// Under the point policy only a blocking appointment at exactly the same
// instant conflicts. Under the interval policy every appointment occupies
// [date, date+duration) and overlapping intervals conflict.
type SlotChecker struct {
	repo     repositories.AppointmentRepository
	policy   config.SlotPolicy
	duration time.Duration
}

// NewSlotChecker creates a slot checker
func NewSlotChecker(repo repositories.AppointmentRepository, policy config.SlotPolicy, duration time.Duration) *SlotChecker {
	if policy != config.SlotPolicyInterval || duration <= 0 {
		policy = config.SlotPolicyPoint
		duration = 0
	}
	return &SlotChecker{repo: repo, policy: policy, duration: duration}
}

// Policy returns the policy in effect
func (c *SlotChecker) Policy() config.SlotPolicy {
	return c.policy
}

// Query returns the conflict query for booking doctorID at at
func (c *SlotChecker) Query(doctorID string, at time.Time) repositories.SlotQuery {
	return repositories.SlotQuery{DoctorID: doctorID, At: at, Window: c.duration}
}

// IsSlotFree reports whether no blocking appointment conflicts with (doctorID, at)
func (c *SlotChecker) IsSlotFree(ctx context.Context, doctorID string, at time.Time) (bool, error) {
	if c.policy == config.SlotPolicyPoint {
		existing, err := c.repo.GetByDoctorAndDate(ctx, doctorID, at)
		if err != nil {
			return false, err
		}
		for _, appointment := range existing {
			if appointment.State.IsBlocking() {
				return false, nil
			}
		}
		return true, nil
	}

	conflicts, err := c.repo.FindConflicts(ctx, c.Query(doctorID, at))
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}
