package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// ErrInvalidInput marks a violated precondition such as an empty screenshot list.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInput wraps ErrInvalidInput with detail.
func InvalidInput(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, detail)
}

// ProviderErrorKind classifies a provider failure without vendor vocabulary.
type ProviderErrorKind string

const (
	KindCredentialInvalid  ProviderErrorKind = "credential_invalid"
	KindQuotaExceeded      ProviderErrorKind = "quota_exceeded"
	KindRateLimited        ProviderErrorKind = "rate_limited"
	KindNetworkUnavailable ProviderErrorKind = "network_unavailable"
	KindMalformedResponse  ProviderErrorKind = "malformed_response"
	KindTimeout            ProviderErrorKind = "timeout"
	KindUnknown            ProviderErrorKind = "unknown"
)

// ProviderError is the only error shape adapters return for vendor failures.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   string
	StatusCode int
	// RetryAfter is the vendor's suggested wait, when it sent one.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// KindOf returns the provider error kind carried by err, if any.
func KindOf(err error) (ProviderErrorKind, bool) {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Kind, true
	}
	return "", false
}

// Malformed builds a MalformedResponse error.
func Malformed(provider, format string, args ...any) *ProviderError {
	return NewProviderError(provider, KindMalformedResponse, fmt.Errorf(format, args...))
}

// classifyTransportError maps errors raised before any HTTP status was read.
func classifyTransportError(provider string, err error) *ProviderError {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(provider, KindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(provider, KindUnknown, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewProviderError(provider, KindTimeout, err)
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.As(err, &urlErr) {
		return NewProviderError(provider, KindNetworkUnavailable, err)
	}
	return NewProviderError(provider, KindUnknown, err)
}
