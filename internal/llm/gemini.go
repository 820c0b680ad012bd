package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// geminiModels is the subset of genai.Models used by GeminiProvider.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider talks to Google's Gemini API.
type GeminiProvider struct {
	name      string
	model     string
	models    geminiModels
	maxTokens int32
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key required", cfg.Name)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Name, err)
	}
	return &GeminiProvider{
		name:      cfg.Name,
		model:     model,
		models:    client.Models,
		maxTokens: int32(cfg.MaxTokens),
	}, nil
}

// Name returns the configured backend name.
func (p *GeminiProvider) Name() string {
	return p.name
}

// Complete sends the conversation to Gemini. System turns are folded into the
// system instruction because Gemini contents only accept user and model roles.
func (p *GeminiProvider) Complete(ctx context.Context, systemPrompt string, turns []Message) (string, error) {
	if err := ValidateMessages(turns); err != nil {
		return "", NewProviderError(p.name, p.model, err)
	}

	instruction := systemPrompt
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case domain.RoleSystem:
			if instruction != "" {
				instruction += "\n\n"
			}
			instruction += t.Content
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{}
	if instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
	}
	if p.maxTokens > 0 {
		config.MaxOutputTokens = p.maxTokens
	}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", NewProviderError(p.name, p.model, withAPIStatus(err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", NewProviderError(p.name, p.model, ErrEmptyResponse)
	}
	return resp.Text(), nil
}

func withAPIStatus(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return WithStatus(apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return WithStatus(apiErrPtr.Code, err)
	}
	return err
}
