package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitHeaders represents normalized provider rate-limit signals.
type RateLimitHeaders struct {
	RetryAfter time.Duration

	LimitRequests     int
	LimitTokens       int
	RemainingRequests int
	RemainingTokens   int

	ResetRequests time.Duration
	ResetTokens   time.Duration
}

type RateLimitHeaderHandler func(headers RateLimitHeaders)

// RateLimitHeaderAware is implemented by adapters that expose the last
// rate-limit headers they saw.
type RateLimitHeaderAware interface {
	SetRateLimitHeaderHandler(handler RateLimitHeaderHandler)
	LastRateLimitHeaders() (RateLimitHeaders, bool)
}

// NextWait converts the signals into the wait a caller should observe before retrying.
func (h RateLimitHeaders) NextWait() time.Duration {
	if h.RetryAfter > 0 {
		return h.RetryAfter
	}
	if h.RemainingTokens == 0 && h.ResetTokens > 0 {
		return h.ResetTokens
	}
	if h.RemainingRequests == 0 && h.ResetRequests > 0 {
		return h.ResetRequests
	}
	return 0
}

// parseRateLimitHeaders reads the x-ratelimit-* family used by OpenAI-compatible APIs.
func parseRateLimitHeaders(h http.Header) (RateLimitHeaders, bool) {
	out := RateLimitHeaders{
		RemainingRequests: -1,
		RemainingTokens:   -1,
	}
	found := false

	readInt := func(key string) (int, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	readDur := func(key string) (time.Duration, bool) {
		v := strings.TrimSpace(h.Get(key))
		if v == "" {
			return 0, false
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	}

	if v, ok := readInt("retry-after-ms"); ok {
		out.RetryAfter = time.Duration(v) * time.Millisecond
		found = true
	} else if v, ok := readInt("retry-after"); ok {
		out.RetryAfter = time.Duration(v) * time.Second
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-requests"); ok {
		out.LimitRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-tokens"); ok {
		out.LimitTokens = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-requests"); ok {
		out.RemainingRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-tokens"); ok {
		out.RemainingTokens = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-requests"); ok {
		out.ResetRequests = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-tokens"); ok {
		out.ResetTokens = v
		found = true
	}
	return out, found
}
