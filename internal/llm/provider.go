package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrchat/hrchat/internal/config"
)

const DefaultOpenAIBaseURL = "https://api.openai.com"

// New builds the completer for the configured provider.
func New(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.AIProviderOpenAI, "":
		baseURL := cfg.BaseURL
		if strings.TrimSpace(baseURL) == "" {
			baseURL = DefaultOpenAIBaseURL
		}
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:     baseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case config.AIProviderGemini:
		model := cfg.Model
		if strings.HasPrefix(model, "gpt-") {
			model = ""
		}
		return NewGeminiClient(ctx, GeminiConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
