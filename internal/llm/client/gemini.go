package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	genai "google.golang.org/genai"

	"snapsolve/internal/types"
)

const (
	geminiName         = "gemini"
	geminiDefaultModel = "gemini-2.5-flash"
)

// GeminiClient is a thin wrapper around the official genai client.
// Cross-cutting concerns (rate limiting, retries, logging, hooks) are applied via middleware.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, cfg ProviderConfig) (*GeminiClient, error) {
	key := cfg.Credential.Reveal()
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: ep}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return geminiName + ":" + g.model }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) ExtractProblem(ctx context.Context, shots []types.Screenshot) (types.ProblemStatement, error) {
	if err := validateScreenshots("extract", shots); err != nil {
		return types.ProblemStatement{}, err
	}
	text, err := g.generate(ctx, extractPrompt(shots))
	if err != nil {
		return types.ProblemStatement{}, err
	}
	return decodeProblem(geminiName, text)
}

func (g *GeminiClient) GenerateSolution(ctx context.Context, problem types.ProblemStatement, language string) (types.Solution, error) {
	if strings.TrimSpace(problem.Description) == "" {
		return types.Solution{}, InvalidInput("solve requires a problem description")
	}
	if language = strings.TrimSpace(language); language == "" {
		language = DefaultLanguage
	}
	text, err := g.generate(ctx, solvePrompt(problem, language))
	if err != nil {
		return types.Solution{}, err
	}
	return decodeSolution(geminiName, text, language)
}

func (g *GeminiClient) DebugSolution(ctx context.Context, problem types.ProblemStatement, solution types.Solution, shots []types.Screenshot) (types.DebugResult, error) {
	if err := validateScreenshots("debug", shots); err != nil {
		return types.DebugResult{}, err
	}
	if strings.TrimSpace(solution.Code) == "" {
		return types.DebugResult{}, InvalidInput("debug requires a prior solution")
	}
	text, err := g.generate(ctx, debugPrompt(problem, solution, shots))
	if err != nil {
		return types.DebugResult{}, err
	}
	return decodeDebug(geminiName, text, solution, shots)
}

func geminiContents(p stagePrompt) []*genai.Content {
	parts := make([]*genai.Part, 0, len(p.Images)+1)
	parts = append(parts, &genai.Part{Text: p.Text})
	for _, s := range p.Images {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeOrDefault(s), Data: s.Data}})
	}
	return []*genai.Content{{Role: "user", Parts: parts}}
}

func (g *GeminiClient) generate(ctx context.Context, p stagePrompt) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, geminiContents(p), &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: p.System}}},
	})
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}
	text := geminiText(resp)
	if strings.TrimSpace(text) == "" {
		return "", Malformed(geminiName, "empty response")
	}
	return text, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// classifyGeminiError maps genai errors into the shared taxonomy.
func classifyGeminiError(ctx context.Context, err error) *ProviderError {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		if ctx.Err() != nil {
			return classifyTransportError(geminiName, ctx.Err())
		}
		return classifyTransportError(geminiName, err)
	}

	status := strings.ToUpper(apiErr.Status)
	msg := strings.ToLower(apiErr.Message)
	kind := KindUnknown
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden,
		status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED",
		apiErr.Code == http.StatusBadRequest && strings.Contains(msg, "api key not valid"):
		kind = KindCredentialInvalid
	case apiErr.Code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		if strings.Contains(msg, "per day") || strings.Contains(msg, "billing") {
			kind = KindQuotaExceeded
		} else {
			kind = KindRateLimited
		}
	case apiErr.Code == http.StatusGatewayTimeout || status == "DEADLINE_EXCEEDED":
		kind = KindTimeout
	case apiErr.Code == http.StatusServiceUnavailable || apiErr.Code == http.StatusBadGateway || status == "UNAVAILABLE":
		kind = KindNetworkUnavailable
	}
	pErr := NewProviderError(geminiName, kind, fmt.Errorf("status %d %s: %s", apiErr.Code, apiErr.Status, apiErr.Message))
	pErr.StatusCode = apiErr.Code
	return pErr
}

// RegisterGemini adds the Gemini adapter to reg.
func RegisterGemini(reg Registrar) error {
	return reg.Register(Registration{
		Name:          geminiName,
		DefaultModel:  geminiDefaultModel,
		CredentialKey: "GEMINI_API_KEY",
		RateLimit:     &RateLimitConfig{RPS: 1, Burst: 2},
		Factory: func(ctx context.Context, cfg ProviderConfig) (Provider, error) {
			return NewGeminiClient(ctx, cfg)
		},
	})
}
