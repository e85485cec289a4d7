package oauth

import (
	"context"
	"errors"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// Static serves a token configured out of band. It never expires.
type Static struct {
	token string
}

// NewStatic returns nil when token is empty so it drops out of a chain
func NewStatic(token string) providers.TokenProvider {
	if token == "" {
		return nil
	}
	return &Static{token: token}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Token(context.Context) (*providers.Token, error) {
	if s.token == "" {
		return nil, errors.New("static token is empty")
	}
	return &providers.Token{AccessToken: s.token}, nil
}
