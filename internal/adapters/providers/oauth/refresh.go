package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// tokenResponse is the RFC 6749 token endpoint response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// RefreshToken exchanges a long-lived refresh token for an access token
type RefreshToken struct {
	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
	httpClient   *http.Client
	clock        providers.Clock
}

// NewRefreshToken returns nil unless a refresh token and client are configured
func NewRefreshToken(tokenURL, clientID, clientSecret, refreshToken string, httpClient *http.Client, clock providers.Clock) providers.TokenProvider {
	if refreshToken == "" || clientID == "" || tokenURL == "" {
		return nil
	}
	return &RefreshToken{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		httpClient:   httpClient,
		clock:        clock,
	}
}

func (r *RefreshToken) Name() string { return "refresh_token" }

func (r *RefreshToken) Token(ctx context.Context) (*providers.Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {r.refreshToken},
		"client_id":     {r.clientID},
		"client_secret": {r.clientSecret},
	}
	return exchange(ctx, r.httpClient, r.tokenURL, form, r.clock.Now())
}

func exchange(ctx context.Context, client *http.Client, tokenURL string, form url.Values, now time.Time) (*providers.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var result tokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode token response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || result.AccessToken == "" {
		if result.Error != "" {
			return nil, fmt.Errorf("token endpoint returned %d: %s %s", resp.StatusCode, result.Error, result.Description)
		}
		return nil, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	token := &providers.Token{AccessToken: result.AccessToken}
	if result.ExpiresIn > 0 {
		token.ExpiresAt = now.Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	return token, nil
}
