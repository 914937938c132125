package llm

import (
	"context"
	"sync"
	"time"

	llmclient "snapsolve/internal/llm/client"
)

// rpsLimiter is a lightweight token-bucket limiter that throttles to at most
// R requests per second with an optional burst capacity.
type rpsLimiter struct {
	tokens   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// newRPSLimiter creates a limiter that allows up to rps events per second
// with a burst capacity of 'burst'. If rps <= 0, the limiter is disabled
// (Acquire becomes a no-op).
func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}

	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	go l.refill(period)
	return l
}

func (l *rpsLimiter) refill(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case l.tokens <- struct{}{}:
			default:
				// bucket full
			}
		case <-l.stopCh:
			return
		}
	}
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// Stop terminates the refill goroutine. Pending and later Acquire calls fail.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// RateLimit limits request rate with a token bucket. If rps <= 0 the middleware
// passes calls through. The refill goroutine stops when the provider is closed.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.Provider) llmclient.Provider {
		rl := newRPSLimiter(rps, burst)
		return Intercept(func(ctx context.Context, call Call, fn func(context.Context) error) error {
			if err := rl.Acquire(ctx); err != nil {
				return err
			}
			return fn(ctx)
		}, rl.Stop)(next)
	}
}
