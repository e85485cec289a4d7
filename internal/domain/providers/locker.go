package providers

import (
	"context"
	"time"
)

// Lock is a held lease. Release is safe to call more than once.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker grants time-limited leases shared across replicas
type Locker interface {
	// TryAcquire returns (nil, nil) when another holder owns the key
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
