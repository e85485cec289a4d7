package oauth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

const jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// ServiceAccount signs an RS256 assertion with a service account key and
// trades it for an access token (RFC 7523).
type ServiceAccount struct {
	tokenURL   string
	email      string
	subject    string
	scopes     []string
	key        *rsa.PrivateKey
	httpClient *http.Client
	clock      providers.Clock
}

// NewServiceAccount parses keyPEM. It returns (nil, nil) when no account is configured.
func NewServiceAccount(tokenURL, email, keyPEM, subject string, scopes []string, httpClient *http.Client, clock providers.Clock) (providers.TokenProvider, error) {
	if email == "" || keyPEM == "" {
		return nil, nil
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(strings.ReplaceAll(keyPEM, `\n`, "\n")))
	if err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}
	return &ServiceAccount{
		tokenURL:   tokenURL,
		email:      email,
		subject:    subject,
		scopes:     scopes,
		key:        key,
		httpClient: httpClient,
		clock:      clock,
	}, nil
}

func (s *ServiceAccount) Name() string { return "service_account" }

func (s *ServiceAccount) Token(ctx context.Context) (*providers.Token, error) {
	now := s.clock.Now()
	assertion, err := s.assertion(now)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	return exchange(ctx, s.httpClient, s.tokenURL, form, now)
}

type assertionClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func (s *ServiceAccount) assertion(now time.Time) (string, error) {
	claims := assertionClaims{
		Scope: strings.Join(s.scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.email,
			Subject:   s.subject,
			Audience:  jwt.ClaimStrings{s.tokenURL},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}
