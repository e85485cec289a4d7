package providers

import (
	"context"
	"time"
)

// Token is an OAuth bearer token
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be used at now, leaving a small margin.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Add(30*time.Second).Before(t.ExpiresAt)
}

// TokenProvider is one strategy for obtaining an access token
type TokenProvider interface {
	Name() string
	Token(ctx context.Context) (*Token, error)
}

// TokenSink is implemented by providers that can remember a token obtained elsewhere in a chain
type TokenSink interface {
	Store(ctx context.Context, token *Token) error
}
