package llm

import (
	"context"
	"time"

	llmclient "snapsolve/internal/llm/client"
)

// Retryable reports whether err may be retried.
type Retryable func(err error) bool

// NetworkOnly retries only transient network failures.
func NetworkOnly(err error) bool {
	kind, ok := llmclient.KindOf(err)
	return ok && kind == llmclient.KindNetworkUnavailable
}

// Retry retries an operation up to maxAttempts while retryable(err) holds,
// sleeping delay between attempts. If context is canceled, it stops immediately.
// A nil retryable defaults to NetworkOnly.
func Retry(maxAttempts int, delay time.Duration, retryable Retryable) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if retryable == nil {
		retryable = NetworkOnly
	}
	return Intercept(func(ctx context.Context, call Call, fn func(context.Context) error) error {
		var last error
		for i := 1; i <= maxAttempts; i++ {
			last = fn(withAttempt(ctx, i))
			if last == nil || !retryable(last) || i == maxAttempts {
				return last
			}
			if delay <= 0 {
				if ctx.Err() != nil {
					return last
				}
				continue
			}
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return last
			case <-t.C:
			}
		}
		return last
	}, nil)
}
