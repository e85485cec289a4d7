package meeting

import (
	"net/http"

	"github.com/hospitalcare/appointments/internal/adapters/providers/httpapi"
	"github.com/hospitalcare/appointments/internal/adapters/providers/oauth"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/pkg/config"
)

// NewProvider returns the Zoom provider when configured, otherwise the local provider
func NewProvider(cfg config.IntegrationsConfig, cache providers.CacheProvider, clock providers.Clock, httpClient *http.Client) (providers.MeetingProvider, error) {
	local := LocalProvider{DurationMinutes: cfg.MeetingDuration}
	if cfg.MeetingBaseURL == "" {
		return local, nil
	}

	tokens, err := oauth.NewChainFromConfig("meeting", cfg.MeetingOAuth, cache, httpClient, clock)
	if err != nil {
		return nil, err
	}
	if tokens.Len() == 0 {
		return local, nil
	}

	api := httpapi.NewClient("meeting", cfg.MeetingBaseURL, httpClient, httpapi.Bearer(tokens), httpapi.BreakerSettings{
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
	})
	return NewZoomProvider(api, cfg.MeetingUserID, cfg.MeetingDuration), nil
}
