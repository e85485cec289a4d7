package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

const createSchedulesTable = `
CREATE TABLE IF NOT EXISTS schedules (
	id          TEXT PRIMARY KEY,
	doctor_id   TEXT NOT NULL,
	day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	start_time  TIME NOT NULL,
	end_time    TIME NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (start_time < end_time)
)`

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id                TEXT PRIMARY KEY,
	doctor_id         TEXT NOT NULL,
	patient_id        TEXT NOT NULL,
	appointment_date  TIMESTAMPTZ NOT NULL,
	diagnosis_id      TEXT,
	prescription      TEXT,
	state             TEXT NOT NULL CHECK (state IN ('planned', 'active', 'completed', 'canceled', 'missed')),
	is_paid           BOOLEAN NOT NULL DEFAULT FALSE,
	price             NUMERIC(12, 2) NOT NULL DEFAULT 0,
	patient_email     TEXT NOT NULL DEFAULT '',
	calendar_event_id TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	canceled_at       TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ
)`

const createMeetingsTable = `
CREATE TABLE IF NOT EXISTS meetings (
	id               TEXT PRIMARY KEY,
	appointment_id   TEXT NOT NULL REFERENCES appointments(id),
	external_id      TEXT NOT NULL,
	topic            TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	join_url         TEXT NOT NULL,
	start_url        TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS appointment_notifications (
	id                TEXT PRIMARY KEY,
	appointment_id    TEXT NOT NULL,
	notification_type TEXT NOT NULL,
	channel           TEXT NOT NULL,
	recipient         TEXT NOT NULL,
	subject           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	sent_at           TIMESTAMPTZ,
	failed_at         TIMESTAMPTZ,
	error_message     TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// appointments_doctor_slot_blocking_idx rejects a second blocking appointment
// for the same doctor and instant; violations surface as SlotTaken.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_doctor_slot_blocking_idx
		ON appointments (doctor_id, appointment_date)
		WHERE state IN ('planned', 'active', 'completed')`,
	`CREATE INDEX IF NOT EXISTS appointments_state_date_idx ON appointments (state, appointment_date)`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id, appointment_date)`,
	`CREATE INDEX IF NOT EXISTS schedules_doctor_day_idx ON schedules (doctor_id, day_of_week)`,
	`CREATE INDEX IF NOT EXISTS meetings_appointment_idx ON meetings (appointment_id)`,
	`CREATE INDEX IF NOT EXISTS appointment_notifications_appointment_idx ON appointment_notifications (appointment_id)`,
}

// EnsureSchema creates tables and indexes that do not exist yet
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		createSchedulesTable,
		createAppointmentsTable,
		createMeetingsTable,
		createNotificationsTable,
	}
	statements = append(statements, indexes...)

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}

	log.Info().Int("statements", len(statements)).Msg("database schema ensured")
	return nil
}
