package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// NewProvider creates the provider named in config. It is called once at
// startup and the result is shared by every stage.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, eris.Errorf("unknown LLM provider: %q (supported: openai, anthropic, gemini, ollama)", config.Provider)
	}
}
