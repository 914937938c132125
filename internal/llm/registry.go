package llm

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"snapsolve/internal/config"
	llmclient "snapsolve/internal/llm/client"
)

// DefaultProvider is selected when LLM_PROVIDER is unset.
const DefaultProvider = "openai"

// ConfigurationError reports a missing or invalid setting found before any provider call.
type ConfigurationError struct {
	Key  string
	Hint string
}

func (e *ConfigurationError) Error() string {
	if e.Hint == "" {
		return "configuration: " + e.Key
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Hint)
}

// Registry stores provider registrations in memory.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]llmclient.Registration
	logger   *log.Logger
	maxTries int
}

// NewRegistry creates an empty registry. A nil logger uses log.Default().
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{entries: map[string]llmclient.Registration{}, logger: logger, maxTries: 2}
}

// DefaultRegistry returns a registry with every built-in provider registered.
func DefaultRegistry(logger *log.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for _, register := range []func(llmclient.Registrar) error{
		llmclient.RegisterOpenAI,
		llmclient.RegisterGemini,
		llmclient.RegisterGroq,
		RegisterFake,
	} {
		if err := register(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a provider. Re-registering a name replaces the previous entry.
func (r *Registry) Register(spec llmclient.Registration) error {
	if spec.Factory == nil {
		return fmt.Errorf("register provider: factory is nil")
	}
	name := llmclient.NormalizeName(spec.Name)
	if name == "" {
		return fmt.Errorf("register provider: name is required")
	}
	if strings.TrimSpace(spec.DefaultModel) == "" {
		return fmt.Errorf("register provider %s: default model is required", name)
	}
	spec.Name = name
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = spec
	return nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) lookup(name string) (llmclient.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.entries[llmclient.NormalizeName(name)]
	return spec, ok
}

// Select resolves provider, model, credential and endpoint from src:
//
//	LLM_PROVIDER            provider name (default "openai")
//	<PROVIDER>_MODEL        model id (default: the registration's default)
//	<CredentialKey>         API key, required when the registration names one
//	<PROVIDER>_BASE_URL     endpoint override
//
// It never calls a factory.
func (r *Registry) Select(src config.Source) (llmclient.ProviderConfig, error) {
	name := llmclient.NormalizeName(config.Get(src, "LLM_PROVIDER"))
	if name == "" {
		name = DefaultProvider
	}
	spec, ok := r.lookup(name)
	if !ok {
		return llmclient.ProviderConfig{}, &ConfigurationError{
			Key:  "LLM_PROVIDER",
			Hint: fmt.Sprintf("unknown provider %q (registered: %s)", name, strings.Join(r.Names(), ", ")),
		}
	}
	prefix := llmclient.EnvPrefix(name)
	cfg := llmclient.ProviderConfig{
		Provider: name,
		Model:    config.Get(src, prefix+"_MODEL"),
		Endpoint: config.Get(src, prefix+"_BASE_URL"),
	}
	if cfg.Model == "" {
		cfg.Model = spec.DefaultModel
	}
	if spec.CredentialKey != "" {
		key := config.Get(src, spec.CredentialKey)
		if key == "" {
			return llmclient.ProviderConfig{}, &ConfigurationError{
				Key:  spec.CredentialKey,
				Hint: fmt.Sprintf("set %s to use the %s provider", spec.CredentialKey, name),
			}
		}
		cfg.Credential = llmclient.Secret(key)
	}
	return cfg, nil
}

// BuildOptions tune the middleware chain applied by Build.
type BuildOptions struct {
	// RateLimit overrides the registration's default limit.
	RateLimit *llmclient.RateLimitConfig
}

// RateLimitFrom reads <PROVIDER>_RPS and <PROVIDER>_BURST. It returns nil when neither is set.
func RateLimitFrom(src config.Source, provider string) *llmclient.RateLimitConfig {
	prefix := llmclient.EnvPrefix(provider)
	rps := config.Float(src, prefix+"_RPS")
	burst := config.Int(src, prefix+"_BURST")
	if rps <= 0 && burst <= 0 {
		return nil
	}
	return &llmclient.RateLimitConfig{RPS: rps, Burst: burst}
}

// Build creates the provider for cfg and wraps it as
// logging -> hooks -> rate limit -> retry -> adapter.
func (r *Registry) Build(ctx context.Context, cfg llmclient.ProviderConfig, opts BuildOptions) (llmclient.Provider, error) {
	spec, ok := r.lookup(cfg.Provider)
	if !ok {
		return nil, &ConfigurationError{Key: "LLM_PROVIDER", Hint: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
	if spec.CredentialKey != "" && cfg.Credential == "" {
		return nil, &ConfigurationError{Key: spec.CredentialKey, Hint: "credential is empty"}
	}
	inner, err := spec.Factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", cfg.ID(), err)
	}
	rl := spec.RateLimit
	if opts.RateLimit != nil {
		rl = opts.RateLimit
	}
	mws := []Middleware{WithLogging(r.logger), WithHooks()}
	if rl != nil && rl.RPS > 0 {
		mws = append(mws, RateLimit(rl.RPS, rl.Burst))
	}
	mws = append(mws, Retry(r.maxTries, 0, NetworkOnly))
	return Wrap(inner, mws...), nil
}
