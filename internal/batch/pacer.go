package batch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out image requests. Wait blocks until the next request may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer is a process-wide pacer shared by batch runs and individual regenerations.
type RatePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer allows burst requests and then one per interval. A zero interval disables pacing.
func NewRatePacer(interval time.Duration, burst int) *RatePacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &RatePacer{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until the limiter admits one request or ctx ends.
func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// PacerFunc adapts a function to Pacer.
type PacerFunc func(ctx context.Context) error

func (f PacerFunc) Wait(ctx context.Context) error {
	return f(ctx)
}
