package llm

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// Backend kinds understood by BuildProviders.
const (
	KindOpenAI = "openai"
	KindGemini = "gemini"
)

// ProviderConfig describes one configured backend.
type ProviderConfig struct {
	Name      string
	Kind      string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// Pacing is the client-side request rate applied to each backend.
// A zero Limit disables pacing.
type Pacing struct {
	Limit rate.Limit
	Burst int
}

// BuildProviders constructs providers in the order given. Backends without an
// API key are skipped and logged; an unknown kind is a configuration error.
func BuildProviders(ctx context.Context, configs []ProviderConfig, pacing Pacing, logger *slog.Logger) ([]Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	providers := make([]Provider, 0, len(configs))
	for _, cfg := range configs {
		if cfg.APIKey == "" {
			logger.Info("provider disabled: no API key", "provider", cfg.Name)
			continue
		}

		var (
			p   Provider
			err error
		)
		switch cfg.Kind {
		case KindOpenAI:
			p, err = NewOpenAIProvider(cfg)
		case KindGemini:
			p, err = NewGeminiProvider(ctx, cfg)
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", cfg.Name, cfg.Kind)
		}
		if err != nil {
			return nil, err
		}

		if pacing.Limit > 0 {
			burst := pacing.Burst
			if burst < 1 {
				burst = 1
			}
			p = RateLimited(p, rate.NewLimiter(pacing.Limit, burst))
		}

		logger.Info("provider enabled", "provider", cfg.Name, "kind", cfg.Kind, "model", cfg.Model)
		providers = append(providers, p)
	}
	return providers, nil
}

// Names returns the provider names in order.
func Names(providers []Provider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}
