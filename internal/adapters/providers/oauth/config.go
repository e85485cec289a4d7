package oauth

import (
	"net/http"

	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/pkg/config"
)

// NewChainFromConfig assembles the token chain for one integration in
// priority order: shared cache, static token, service account, refresh token.
func NewChainFromConfig(name string, cfg config.OAuthConfig, cache providers.CacheProvider, httpClient *http.Client, clock providers.Clock) (*Chain, error) {
	serviceAccount, err := NewServiceAccount(cfg.TokenURL, cfg.ServiceAccountEmail, cfg.ServiceAccountKey, "", cfg.Scopes, httpClient, clock)
	if err != nil {
		return nil, err
	}

	return NewChain(
		NewCached(cache, name, clock),
		NewStatic(cfg.StaticToken),
		serviceAccount,
		NewRefreshToken(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken, httpClient, clock),
	), nil
}
