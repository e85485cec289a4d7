package entities

import "time"

// Meeting holds the video call created for an appointment
type Meeting struct {
	ID              string    `json:"id" db:"id" goqu:"skipupdate"`
	AppointmentID   string    `json:"appointment_id" db:"appointment_id"`
	ExternalID      string    `json:"external_id" db:"external_id"`
	Topic           string    `json:"topic" db:"topic"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	JoinURL         string    `json:"join_url" db:"join_url"`
	StartURL        string    `json:"start_url" db:"start_url"`
	CreatedAt       time.Time `json:"created_at" db:"created_at" goqu:"skipupdate"`
}
