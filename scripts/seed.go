package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hospitalcare/appointments/internal/adapters/database"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/pkg/config"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

// seed gives every doctor in SEED_DOCTORS a Monday to Friday 09:00-17:00
// week, or SEED_START/SEED_END when set.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()
	if err := database.EnsureSchema(ctx, pgClient.DB()); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				appointment_notifications,
				meetings,
				appointments,
				schedules
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	start, err := entities.ParseTimeOfDay(envOr("SEED_START", "09:00"))
	if err != nil {
		log.Fatalf("Invalid SEED_START: %v", err)
	}
	end, err := entities.ParseTimeOfDay(envOr("SEED_END", "17:00"))
	if err != nil {
		log.Fatalf("Invalid SEED_END: %v", err)
	}

	availability := services.NewAvailabilityService(
		database.NewScheduleAdapter(pgClient, nil), nil, cfg.Scheduling.Location())

	created, skipped := 0, 0
	for _, doctorID := range strings.Split(envOr("SEED_DOCTORS", "doc-1,doc-2,doc-3"), ",") {
		doctorID = strings.TrimSpace(doctorID)
		if doctorID == "" {
			continue
		}
		for day := time.Monday; day <= time.Friday; day++ {
			schedule := &entities.Schedule{DoctorID: doctorID, DayOfWeek: day, StartTime: start, EndTime: end}
			err := availability.AddSchedule(ctx, schedule)
			switch {
			case err == nil:
				created++
			case apperrors.TypeOf(err) == apperrors.ErrorTypeConflict:
				skipped++
			default:
				log.Fatalf("Failed to seed %s on %s: %v", doctorID, day, err)
			}
		}
	}

	log.Printf("Seeding complete: %d schedules created, %d already present", created, skipped)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
