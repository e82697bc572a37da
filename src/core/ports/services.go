package ports

import (
	"context"
	"time"
)

// ExternalService is the base interface for external service adapters.
type ExternalService interface {
	// Health checks if the external service is reachable.
	Health(ctx context.Context) error
}

// Clock supplies the current time to services.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
