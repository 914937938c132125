package llm

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"snapsolve/internal/config"
	llmclient "snapsolve/internal/llm/client"
	"snapsolve/internal/tester"
	"snapsolve/internal/types"
)

func quietRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := DefaultRegistry(log.New(io.Discard, "", 0))
	tester.NoErr(t, err)
	return r
}

func mustNotBuild(t *testing.T) llmclient.Factory {
	return func(ctx context.Context, cfg llmclient.ProviderConfig) (llmclient.Provider, error) {
		t.Fatalf("factory must not be invoked")
		return nil, nil
	}
}

func TestSelect_MissingCredentialIsConfigurationError(t *testing.T) {
	r := NewRegistry(log.New(io.Discard, "", 0))
	tester.NoErr(t, r.Register(llmclient.Registration{
		Name: "guarded", DefaultModel: "m1", CredentialKey: "GUARDED_API_KEY", Factory: mustNotBuild(t),
	}))

	_, err := r.Select(config.Map{"LLM_PROVIDER": "guarded"})
	var cErr *ConfigurationError
	tester.True(t, errors.As(err, &cErr), "expected ConfigurationError")
	tester.Eq(t, cErr.Key, "GUARDED_API_KEY")
}

func TestSelect_UnknownProvider(t *testing.T) {
	_, err := quietRegistry(t).Select(config.Map{"LLM_PROVIDER": "nope"})
	var cErr *ConfigurationError
	tester.True(t, errors.As(err, &cErr), "expected ConfigurationError")
	tester.Eq(t, cErr.Key, "LLM_PROVIDER")
	tester.Contains(t, cErr.Hint, "fake")
}

func TestSelect_DefaultsToOpenAI(t *testing.T) {
	cfg, err := quietRegistry(t).Select(config.Map{"OPENAI_API_KEY": "sk-1"})
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Provider, "openai")
	tester.Eq(t, cfg.Model, "gpt-4o")
	tester.Eq(t, cfg.Credential.Reveal(), "sk-1")
	tester.Eq(t, cfg.ID(), "openai:gpt-4o")
}

func TestSelect_ModelAndEndpointOverrides(t *testing.T) {
	cfg, err := quietRegistry(t).Select(config.Map{
		"LLM_PROVIDER":    " Gemini ",
		"GEMINI_API_KEY":  "g-1",
		"GEMINI_MODEL":    "gemini-2.5-pro",
		"GEMINI_BASE_URL": "http://localhost:9999",
	})
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Provider, "gemini")
	tester.Eq(t, cfg.Model, "gemini-2.5-pro")
	tester.Eq(t, cfg.Endpoint, "http://localhost:9999")
}

func TestBuild_FakeEndToEnd(t *testing.T) {
	r := quietRegistry(t)
	cfg, err := r.Select(config.Map{"LLM_PROVIDER": "fake"})
	tester.NoErr(t, err)
	tester.Eq(t, cfg.ID(), "fake:test-1")

	p, err := r.Build(context.Background(), cfg, BuildOptions{})
	tester.NoErr(t, err)
	defer p.Close()
	tester.Eq(t, p.Name(), "fake:test-1")

	ctx := context.Background()
	problem, err := p.ExtractProblem(ctx, oneShot)
	tester.NoErr(t, err)
	tester.Eq(t, problem.Title, "Sum Two Numbers")
	sol, err := p.GenerateSolution(ctx, problem, "")
	tester.NoErr(t, err)
	tester.Eq(t, sol.Language, "python")
	dbg, err := p.DebugSolution(ctx, problem, sol, oneShot)
	tester.NoErr(t, err)
	tester.Eq(t, dbg.Solution.Language, "python")
	tester.True(t, dbg.Solution.Code != sol.Code, "debug must revise the code")
	tester.Eq(t, dbg.Screenshots, types.RefsOf(oneShot))
}

func TestBuild_RefusesEmptyCredential(t *testing.T) {
	r := NewRegistry(log.New(io.Discard, "", 0))
	tester.NoErr(t, r.Register(llmclient.Registration{
		Name: "guarded", DefaultModel: "m1", CredentialKey: "GUARDED_API_KEY", Factory: mustNotBuild(t),
	}))
	_, err := r.Build(context.Background(), llmclient.ProviderConfig{Provider: "guarded", Model: "m1"}, BuildOptions{})
	var cErr *ConfigurationError
	tester.True(t, errors.As(err, &cErr), "expected ConfigurationError")
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry(nil)
	tester.True(t, r.Register(llmclient.Registration{Name: "x", DefaultModel: "m"}) != nil, "nil factory")
	tester.True(t, r.Register(llmclient.Registration{DefaultModel: "m", Factory: mustNotBuild(t)}) != nil, "empty name")
	tester.True(t, r.Register(llmclient.Registration{Name: "x", Factory: mustNotBuild(t)}) != nil, "empty model")
}

func TestRateLimitFrom(t *testing.T) {
	tester.True(t, RateLimitFrom(config.Map{}, "openai") == nil, "unset should be nil")
	rl := RateLimitFrom(config.Map{"OPENAI_RPS": "1.5", "OPENAI_BURST": "3"}, "openai")
	tester.Eq(t, *rl, llmclient.RateLimitConfig{RPS: 1.5, Burst: 3})
}
