package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

// NotificationAdapter records appointment notifications with sqlx
type NotificationAdapter struct {
	db *sqlx.DB
}

var _ repositories.NotificationRepository = (*NotificationAdapter)(nil)

// NewNotificationAdapter creates a new notification adapter
func NewNotificationAdapter(db *sqlx.DB) *NotificationAdapter {
	return &NotificationAdapter{db: db}
}

// Create inserts a notification record
func (a *NotificationAdapter) Create(ctx context.Context, notification *entities.AppointmentNotification) error {
	query := `
		INSERT INTO appointment_notifications
		(id, appointment_id, notification_type, channel, recipient, subject, status,
		 sent_at, failed_at, error_message, created_at, updated_at)
		VALUES (:id, :appointment_id, :notification_type, :channel, :recipient, :subject, :status,
		 :sent_at, :failed_at, :error_message, :created_at, :updated_at)
	`
	if _, err := a.db.NamedExecContext(ctx, query, notification); err != nil {
		return apperrors.NewInternalError("failed to create notification record", err)
	}
	return nil
}

// MarkSent records a successful delivery
func (a *NotificationAdapter) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE appointment_notifications SET status = $1, sent_at = $2, updated_at = $2 WHERE id = $3`
	return a.exec(ctx, id, query, entities.NotificationStatusSent, at, id)
}

// MarkFailed records a failed delivery
func (a *NotificationAdapter) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	query := `UPDATE appointment_notifications SET status = $1, failed_at = $2, error_message = $3, updated_at = $2 WHERE id = $4`
	return a.exec(ctx, id, query, entities.NotificationStatusFailed, at, reason, id)
}

// ListByAppointment returns notifications sent for an appointment, oldest first
func (a *NotificationAdapter) ListByAppointment(ctx context.Context, appointmentID string) ([]*entities.AppointmentNotification, error) {
	var notifications []*entities.AppointmentNotification
	query := `SELECT * FROM appointment_notifications WHERE appointment_id = $1 ORDER BY created_at`
	if err := a.db.SelectContext(ctx, &notifications, query, appointmentID); err != nil {
		return nil, apperrors.NewInternalError("failed to list notifications", err)
	}
	return notifications, nil
}

func (a *NotificationAdapter) exec(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update notification", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.Wrap(apperrors.ErrorTypeNotFound, fmt.Sprintf("notification with id %s not found", id), entities.ErrNotFound)
	}
	return nil
}
