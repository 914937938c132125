package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"snapsolve/internal/types"
)

const (
	openAIName           = "openai"
	openAIDefaultModel   = "gpt-4o"
	openAIDefaultBaseURL = "https://api.openai.com/v1"
)

// OpenAIClient calls the OpenAI Chat Completions API with image inputs and JSON output.
// See: https://platform.openai.com/docs/api-reference/chat
type OpenAIClient struct {
	vendor    string
	http      *http.Client
	apiKey    Secret
	model     string
	baseURL   string
	maxTokens int

	rlMu      sync.RWMutex
	rlLast    RateLimitHeaders
	rlHasLast bool
	rlHandler RateLimitHeaderHandler
}

// NewOpenAIClient creates a client. If the credential is empty it falls back to OPENAI_API_KEY.
func NewOpenAIClient(cfg ProviderConfig) (*OpenAIClient, error) {
	return newChatCompletionsClient(openAIName, openAIDefaultModel, openAIDefaultBaseURL, "OPENAI_API_KEY", cfg)
}

// newChatCompletionsClient builds a client for any vendor that speaks the
// OpenAI Chat Completions wire format.
func newChatCompletionsClient(vendor, defaultModel, defaultBase, envKey string, cfg ProviderConfig) (*OpenAIClient, error) {
	key := cfg.Credential
	if key == "" {
		key = Secret(os.Getenv(envKey))
	}
	if key == "" {
		return nil, errors.New(vendor + ": api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if base == "" {
		base = defaultBase
	}
	return &OpenAIClient{
		vendor:    vendor,
		http:      &http.Client{Timeout: 120 * time.Second},
		apiKey:    key,
		model:     model,
		baseURL:   base,
		maxTokens: 4096,
	}, nil
}

func (c *OpenAIClient) Name() string { return c.vendor + ":" + c.model }
func (c *OpenAIClient) Close() error { return nil }

func (c *OpenAIClient) SetRateLimitHeaderHandler(handler RateLimitHeaderHandler) {
	c.rlMu.Lock()
	defer c.rlMu.Unlock()
	c.rlHandler = handler
}

func (c *OpenAIClient) LastRateLimitHeaders() (RateLimitHeaders, bool) {
	c.rlMu.RLock()
	defer c.rlMu.RUnlock()
	return c.rlLast, c.rlHasLast
}

func (c *OpenAIClient) ExtractProblem(ctx context.Context, shots []types.Screenshot) (types.ProblemStatement, error) {
	if err := validateScreenshots("extract", shots); err != nil {
		return types.ProblemStatement{}, err
	}
	text, err := c.complete(ctx, extractPrompt(shots))
	if err != nil {
		return types.ProblemStatement{}, err
	}
	return decodeProblem(c.vendor, text)
}

func (c *OpenAIClient) GenerateSolution(ctx context.Context, problem types.ProblemStatement, language string) (types.Solution, error) {
	if strings.TrimSpace(problem.Description) == "" {
		return types.Solution{}, InvalidInput("solve requires a problem description")
	}
	if language = strings.TrimSpace(language); language == "" {
		language = DefaultLanguage
	}
	text, err := c.complete(ctx, solvePrompt(problem, language))
	if err != nil {
		return types.Solution{}, err
	}
	return decodeSolution(c.vendor, text, language)
}

func (c *OpenAIClient) DebugSolution(ctx context.Context, problem types.ProblemStatement, solution types.Solution, shots []types.Screenshot) (types.DebugResult, error) {
	if err := validateScreenshots("debug", shots); err != nil {
		return types.DebugResult{}, err
	}
	if strings.TrimSpace(solution.Code) == "" {
		return types.DebugResult{}, InvalidInput("debug requires a prior solution")
	}
	text, err := c.complete(ctx, debugPrompt(problem, solution, shots))
	if err != nil {
		return types.DebugResult{}, err
	}
	return decodeDebug(c.vendor, text, solution, shots)
}

type openAIChatReq struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role string `json:"role"`
	// Content is a string or a []openAIPart.
	Content any `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func buildOpenAIMessages(p stagePrompt) []openAIMessage {
	user := make([]openAIPart, 0, len(p.Images)+1)
	user = append(user, openAIPart{Type: "text", Text: p.Text})
	for _, s := range p.Images {
		user = append(user, openAIPart{
			Type: "image_url",
			ImageURL: &openAIImageURL{
				URL:    "data:" + mimeOrDefault(s) + ";base64," + base64.StdEncoding.EncodeToString(s.Data),
				Detail: "high",
			},
		})
	}
	return []openAIMessage{
		{Role: "system", Content: p.System},
		{Role: "user", Content: user},
	}
}

// complete sends one chat completion and returns the assistant text.
func (c *OpenAIClient) complete(ctx context.Context, p stagePrompt) (string, error) {
	b, err := json.Marshal(openAIChatReq{
		Model:          c.model,
		Messages:       buildOpenAIMessages(p),
		Temperature:    0,
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", c.vendor, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", c.vendor, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Reveal())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransportError(c.vendor, err)
	}
	defer resp.Body.Close()
	headers, hasHeaders := c.captureRateLimitHeaders(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		pErr := classifyOpenAIStatus(c.vendor, resp.StatusCode, body)
		if hasHeaders && pErr.Kind == KindRateLimited {
			pErr.RetryAfter = headers.NextWait()
		}
		return "", pErr
	}

	var out openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", classifyTransportError(c.vendor, ctx.Err())
		}
		return "", Malformed(c.vendor, "decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", Malformed(c.vendor, "response has no choices")
	}
	choice := out.Choices[0]
	if choice.Message.Refusal != "" {
		return "", Malformed(c.vendor, "model refused: %s", choice.Message.Refusal)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", Malformed(c.vendor, "empty completion (finish_reason=%s)", choice.FinishReason)
	}
	return choice.Message.Content, nil
}

// classifyOpenAIStatus maps a non-2xx reply into the shared taxonomy.
func classifyOpenAIStatus(vendor string, status int, body []byte) *ProviderError {
	var eb openAIErrorBody
	_ = json.Unmarshal(body, &eb)
	msg := strings.TrimSpace(eb.Error.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	err := fmt.Errorf("status %d: %s", status, msg)

	kind := KindUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindCredentialInvalid
	case status == http.StatusTooManyRequests:
		if eb.Error.Code == "insufficient_quota" || eb.Error.Type == "insufficient_quota" {
			kind = KindQuotaExceeded
		} else {
			kind = KindRateLimited
		}
	case status == http.StatusRequestTimeout:
		kind = KindTimeout
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		kind = KindNetworkUnavailable
	}
	pErr := NewProviderError(vendor, kind, err)
	pErr.StatusCode = status
	return pErr
}

func (c *OpenAIClient) captureRateLimitHeaders(h http.Header) (RateLimitHeaders, bool) {
	parsed, ok := parseRateLimitHeaders(h)
	if !ok {
		return parsed, false
	}
	c.rlMu.Lock()
	c.rlLast = parsed
	c.rlHasLast = true
	handler := c.rlHandler
	c.rlMu.Unlock()
	if handler != nil {
		handler(parsed)
	}
	return parsed, true
}

// RegisterOpenAI adds the OpenAI adapter to reg.
func RegisterOpenAI(reg Registrar) error {
	return reg.Register(Registration{
		Name:          openAIName,
		DefaultModel:  openAIDefaultModel,
		CredentialKey: "OPENAI_API_KEY",
		Factory: func(_ context.Context, cfg ProviderConfig) (Provider, error) {
			return NewOpenAIClient(cfg)
		},
	})
}
