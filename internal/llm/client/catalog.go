package llmclient

import (
	"context"
	"strings"
)

// Secret holds a credential. It prints and marshals as a placeholder so it can
// sit inside loggable structs.
type Secret string

const redacted = "[redacted]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return s.String() }

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reveal returns the plaintext credential for the adapter that needs it.
func (s Secret) Reveal() string { return string(s) }

// ProviderConfig is the resolved provider selection for one session.
type ProviderConfig struct {
	Provider   string
	Model      string
	Credential Secret
	// Endpoint overrides the vendor base URL when set.
	Endpoint string
}

// ID is the "provider:model" identifier shown to users and logs.
func (c ProviderConfig) ID() string {
	return c.Provider + ":" + c.Model
}

type Factory func(ctx context.Context, cfg ProviderConfig) (Provider, error)

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Registration describes a provider adapter that can be selected by name.
type Registration struct {
	Name         string
	DefaultModel string
	// CredentialKey is the config key holding the API key; empty means none is required.
	CredentialKey string
	RateLimit     *RateLimitConfig
	Factory       Factory
}

type Registrar interface {
	Register(spec Registration) error
}

// NormalizeName canonicalizes provider names for lookups.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EnvPrefix returns the config key prefix for a provider ("openai" -> "OPENAI").
func EnvPrefix(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
}
