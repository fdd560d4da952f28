// Package provider builds the configured extraction capability.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm/gemini"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm/openai"
)

// New returns nil, nil when no API key is configured so extraction degrades
// to empty results instead of failing.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Capability, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		logger.Warn("llm.provider.disabled", "provider", cfg.Provider, "hint", "no API key; extraction returns empty results")
		return nil, nil
	}
	switch cfg.Provider {
	case constants.ProviderGemini, "":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case constants.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
