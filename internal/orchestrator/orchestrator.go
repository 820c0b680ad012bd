// Package orchestrator turns a conversation into one assistant reply by trying
// completion providers in priority order.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/llm"
	"github.com/kaihuan-huang/HR-AI/internal/metrics"
)

// FallbackReply replaces a blank provider reply.
const FallbackReply = "I apologize, but I couldn't generate a response at this time. Please try again."

const (
	// DefaultProviderTimeout bounds a single provider attempt.
	DefaultProviderTimeout = 8 * time.Second
	// DefaultHistoryWindow is how many recent turns, including the new user
	// turn, are sent with each completion.
	DefaultHistoryWindow = 5
)

// Config controls fallback behavior.
type Config struct {
	ProviderTimeout time.Duration
	HistoryWindow   int
}

// Request is the context for one completion. Turns must already include the
// user turn being answered.
type Request struct {
	Turns     []domain.Turn
	Workspace string
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	providers []llm.Provider
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates an orchestrator. Zero config values take the defaults.
func New(cfg Config, providers []llm.Provider, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		providers: append([]llm.Provider(nil), providers...),
		logger:    logger,
		metrics:   m,
	}
}

// Providers returns the provider names in attempt order.
func (o *Orchestrator) Providers() []string {
	return llm.Names(o.providers)
}

// HistoryWindow returns the number of turns sent to providers.
func (o *Orchestrator) HistoryWindow() int {
	return o.cfg.HistoryWindow
}

// Complete asks each provider once, in order, and returns the first reply.
// The returned text is never blank. When no provider answers the error is an
// *llm.AllProvidersFailedError.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	prompt := SystemPrompt(req.Workspace)
	msgs := RecentMessages(req.Turns, o.cfg.HistoryWindow)

	if len(o.providers) == 0 {
		o.metrics.ObserveCompletion(start, false)
		return "", &llm.AllProvidersFailedError{Attempts: []error{llm.ErrNoProviders}}
	}

	attempts := make([]error, 0, len(o.providers))
	for _, p := range o.providers {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, err)
			break
		}

		reply, err := o.attempt(ctx, p, prompt, msgs)
		if err == nil {
			o.metrics.ObserveAttempt(p.Name(), true)
			o.metrics.ObserveCompletion(start, true)
			if strings.TrimSpace(reply) == "" {
				o.logger.Warn("provider returned blank reply", "provider", p.Name())
				return FallbackReply, nil
			}
			return reply, nil
		}

		o.metrics.ObserveAttempt(p.Name(), false)
		o.logger.Warn("provider failed, trying next",
			"provider", p.Name(),
			"error", err,
		)
		attempts = append(attempts, err)
	}

	o.metrics.ObserveCompletion(start, false)
	o.logger.Error("all providers failed", "attempts", len(attempts))
	return "", &llm.AllProvidersFailedError{Attempts: attempts}
}

func (o *Orchestrator) attempt(ctx context.Context, p llm.Provider, prompt string, msgs []llm.Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	reply, err := p.Complete(attemptCtx, prompt, msgs)
	if err != nil {
		return "", llm.NewProviderError(p.Name(), "", err)
	}
	return reply, nil
}
