package llmclient

import "context"

const (
	groqName         = "groq"
	groqDefaultModel = "meta-llama/llama-4-scout-17b-16e-instruct"
	groqBaseURL      = "https://api.groq.com/openai/v1"
)

// NewGroqClient returns a Chat Completions client pointed at Groq's OpenAI-compatible API.
// Only the llama-4 models accept image input there.
// See: https://console.groq.com/docs/vision
func NewGroqClient(cfg ProviderConfig) (*OpenAIClient, error) {
	return newChatCompletionsClient(groqName, groqDefaultModel, groqBaseURL, "GROQ_API_KEY", cfg)
}

// RegisterGroq adds the Groq adapter to reg. The default limit follows the
// free tier (30 RPM).
// See: https://console.groq.com/docs/rate-limits
func RegisterGroq(reg Registrar) error {
	return reg.Register(Registration{
		Name:          groqName,
		DefaultModel:  groqDefaultModel,
		CredentialKey: "GROQ_API_KEY",
		RateLimit:     &RateLimitConfig{RPS: 0.5, Burst: 2},
		Factory: func(_ context.Context, cfg ProviderConfig) (Provider, error) {
			return NewGroqClient(cfg)
		},
	})
}
