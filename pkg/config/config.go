package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hospitalcare/appointments/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	Env          string
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	OTEL         OTELConfig
	Scheduling   SchedulingConfig
	Integrations IntegrationsConfig
	Payments     PaymentsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	StreamHeartbeat time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver      string // postgres or memory
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// SlotPolicy selects how appointment conflicts are detected.
type SlotPolicy string

const (
	// SlotPolicyPoint treats two appointments as conflicting only on an exact timestamp match.
	SlotPolicyPoint SlotPolicy = "point"
	// SlotPolicyInterval treats appointments as occupying [start, start+ServiceDuration).
	SlotPolicyInterval SlotPolicy = "interval"
)

// SchedulingConfig holds booking and sweep settings
type SchedulingConfig struct {
	SlotPolicy       SlotPolicy
	ServiceDuration  time.Duration
	Timezone         string
	SweepInterval    time.Duration
	SweepAt          string
	SweepLockTTL     time.Duration
	SweepNotify      bool
	ScheduleCacheTTL int // seconds
}

// OAuthConfig holds the token sources tried in order for an integration.
type OAuthConfig struct {
	StaticToken         string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	RefreshToken        string
	ServiceAccountEmail string
	ServiceAccountKey   string // PEM encoded RSA private key
	Scopes              []string
}

// IntegrationsConfig holds third-party gateway settings
type IntegrationsConfig struct {
	CalendarBaseURL  string
	CalendarID       string
	CalendarOAuth    OAuthConfig
	MeetingBaseURL   string
	MeetingUserID    string
	MeetingOAuth     OAuthConfig
	MeetingDuration  int // minutes
	EmailBaseURL     string
	EmailAPIKey      string
	EmailFrom        string
	RequestTimeout   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// PaymentsConfig holds payment callback settings
type PaymentsConfig struct {
	WebhookSecret  string
	IdempotencyTTL int // seconds
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
// With VAULT_ENABLED=true the secret at VAULT_PATH is exported into the
// environment before anything else is read.
func Load() (*Config, error) {
	_ = godotenv.Load()

	if _, err := secrets.Apply(context.Background(), secrets.ConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("failed to load vault secrets: %w", err)
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			StreamHeartbeat: getEnvAsDuration("STREAM_HEARTBEAT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "hospital_appointments"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "hospital-appointments"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Scheduling: SchedulingConfig{
			SlotPolicy:       SlotPolicy(strings.ToLower(getEnv("SLOT_POLICY", string(SlotPolicyPoint)))),
			ServiceDuration:  getEnvAsDuration("SLOT_SERVICE_DURATION", 30*time.Minute),
			Timezone:         getEnv("SCHEDULING_TIMEZONE", "UTC"),
			SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 24*time.Hour),
			SweepAt:          getEnv("SWEEP_AT", "00:05"),
			SweepLockTTL:     getEnvAsDuration("SWEEP_LOCK_TTL", 10*time.Minute),
			SweepNotify:      getEnvAsBool("SWEEP_NOTIFY", false),
			ScheduleCacheTTL: getEnvAsInt("SCHEDULE_CACHE_TTL", 300),
		},
		Integrations: IntegrationsConfig{
			CalendarBaseURL: getEnv("CALENDAR_BASE_URL", ""),
			CalendarID:      getEnv("CALENDAR_ID", "primary"),
			CalendarOAuth: OAuthConfig{
				StaticToken:         getEnv("CALENDAR_ACCESS_TOKEN", ""),
				TokenURL:            getEnv("CALENDAR_TOKEN_URL", "https://oauth2.googleapis.com/token"),
				ClientID:            getEnv("CALENDAR_CLIENT_ID", ""),
				ClientSecret:        getEnv("CALENDAR_CLIENT_SECRET", ""),
				RefreshToken:        getEnv("CALENDAR_REFRESH_TOKEN", ""),
				ServiceAccountEmail: getEnv("CALENDAR_SERVICE_ACCOUNT_EMAIL", ""),
				ServiceAccountKey:   getEnv("CALENDAR_SERVICE_ACCOUNT_KEY", ""),
				Scopes:              getEnvAsList("CALENDAR_SCOPES", []string{"https://www.googleapis.com/auth/calendar"}),
			},
			MeetingBaseURL: getEnv("MEETING_BASE_URL", ""),
			MeetingUserID:  getEnv("MEETING_USER_ID", "me"),
			MeetingOAuth: OAuthConfig{
				StaticToken:  getEnv("MEETING_ACCESS_TOKEN", ""),
				TokenURL:     getEnv("MEETING_TOKEN_URL", "https://zoom.us/oauth/token"),
				ClientID:     getEnv("MEETING_CLIENT_ID", ""),
				ClientSecret: getEnv("MEETING_CLIENT_SECRET", ""),
				RefreshToken: getEnv("MEETING_REFRESH_TOKEN", ""),
			},
			MeetingDuration:  getEnvAsInt("MEETING_DURATION_MINUTES", 30),
			EmailBaseURL:     getEnv("EMAIL_BASE_URL", ""),
			EmailAPIKey:      getEnv("EMAIL_API_KEY", ""),
			EmailFrom:        getEnv("EMAIL_FROM", "no-reply@hospital.local"),
			RequestTimeout:   getEnvAsDuration("INTEGRATION_TIMEOUT", 10*time.Second),
			BreakerThreshold: getEnvAsInt("INTEGRATION_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  getEnvAsDuration("INTEGRATION_BREAKER_COOLDOWN", 30*time.Second),
		},
		Payments: PaymentsConfig{
			WebhookSecret:  getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			IdempotencyTTL: getEnvAsInt("PAYMENT_IDEMPOTENCY_TTL", 86400),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	switch c.Scheduling.SlotPolicy {
	case SlotPolicyPoint, SlotPolicyInterval:
	default:
		return fmt.Errorf("invalid SLOT_POLICY %q: must be %q or %q", c.Scheduling.SlotPolicy, SlotPolicyPoint, SlotPolicyInterval)
	}
	if c.Scheduling.ServiceDuration <= 0 {
		return fmt.Errorf("SLOT_SERVICE_DURATION must be positive")
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("invalid SCHEDULING_TIMEZONE: %w", err)
	}
	if _, err := time.Parse("15:04", c.Scheduling.SweepAt); err != nil {
		return fmt.Errorf("invalid SWEEP_AT %q: expected HH:MM", c.Scheduling.SweepAt)
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.Database.Driver)
	}
	return nil
}

// Location returns the configured scheduling timezone.
func (c *SchedulingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
