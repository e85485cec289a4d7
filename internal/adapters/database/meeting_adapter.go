package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
)

// MeetingAdapter implements the MeetingRepository interface
type MeetingAdapter struct {
	*Table[entities.Meeting]
}

var _ repositories.MeetingRepository = (*MeetingAdapter)(nil)

// NewMeetingAdapter creates a new meeting adapter
func NewMeetingAdapter(client *postgres.Client, metrics *observability.Metrics) *MeetingAdapter {
	return &MeetingAdapter{
		Table: NewTable(client, "meetings", "meeting",
			func(m *entities.Meeting) string { return m.ID }, metrics),
	}
}

// ListByAppointment returns the meetings created for an appointment
func (a *MeetingAdapter) ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.Meeting, error) {
	return a.selectAll(ctx, a.from().
		Where(goqu.Ex{"appointment_id": appointmentID}).
		Order(goqu.I("created_at").Asc()))
}
