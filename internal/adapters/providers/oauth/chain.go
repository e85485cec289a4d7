package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/domain/providers"
)

// ErrNoTokenProvider is returned by an empty chain
var ErrNoTokenProvider = errors.New("no token provider configured")

// Chain tries providers in order and returns the first token obtained.
// When a later provider succeeds, earlier providers that implement
// providers.TokenSink are given the token so the next call is cheaper.
type Chain struct {
	providers []providers.TokenProvider
}

var _ providers.TokenProvider = (*Chain)(nil)

// NewChain builds a chain from the given providers, skipping nils
func NewChain(ps ...providers.TokenProvider) *Chain {
	c := &Chain{}
	for _, p := range ps {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

// Len reports how many providers the chain holds
func (c *Chain) Len() int { return len(c.providers) }

// Token walks the chain. If every provider fails the errors are joined.
func (c *Chain) Token(ctx context.Context) (*providers.Token, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoTokenProvider
	}

	var errs []error
	for i, p := range c.providers {
		token, err := p.Token(ctx)
		if err != nil {
			log.Debug().Err(err).Str("provider", p.Name()).Msg("token provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		c.backfill(ctx, i, token)
		return token, nil
	}
	return nil, errors.Join(errs...)
}

func (c *Chain) backfill(ctx context.Context, upTo int, token *providers.Token) {
	for _, p := range c.providers[:upTo] {
		sink, ok := p.(providers.TokenSink)
		if !ok {
			continue
		}
		if err := sink.Store(ctx, token); err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("failed to store token")
		}
	}
}
