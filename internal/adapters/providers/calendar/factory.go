package calendar

import (
	"net/http"
	"time"

	"github.com/hospitalcare/appointments/internal/adapters/providers/httpapi"
	"github.com/hospitalcare/appointments/internal/adapters/providers/oauth"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/pkg/config"
)

// NewProvider returns the Google provider when a base URL and at least one
// token source are configured, otherwise the local provider.
func NewProvider(cfg config.IntegrationsConfig, cache providers.CacheProvider, clock providers.Clock, httpClient *http.Client) (providers.CalendarProvider, error) {
	if cfg.CalendarBaseURL == "" {
		return LocalProvider{}, nil
	}

	tokens, err := oauth.NewChainFromConfig("calendar", cfg.CalendarOAuth, cache, httpClient, clock)
	if err != nil {
		return nil, err
	}
	if tokens.Len() == 0 {
		return LocalProvider{}, nil
	}

	api := httpapi.NewClient("calendar", cfg.CalendarBaseURL, httpClient, httpapi.Bearer(tokens), httpapi.BreakerSettings{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
	})
	return NewGoogleProvider(api, cfg.CalendarID, time.Duration(cfg.MeetingDuration)*time.Minute), nil
}
