package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

// Default endpoints for the OpenAI-compatible backends.
const (
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel = "mixtral-8x7b-32768"

	DefaultOpenAIModel = "gpt-4o"
)

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// contentGenerator is the subset of llms.Model used by OpenAIProvider.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint.
type OpenAIProvider struct {
	name  string
	model string
	llm   contentGenerator
	opts  []llms.CallOption
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
// An empty BaseURL targets api.openai.com.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key required", cfg.Name)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Name, err)
	}
	return newOpenAIProvider(cfg.Name, model, client, cfg.MaxTokens), nil
}

func newOpenAIProvider(name, model string, gen contentGenerator, maxTokens int) *OpenAIProvider {
	var opts []llms.CallOption
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	return &OpenAIProvider{name: name, model: model, llm: gen, opts: opts}
}

// Name returns the configured backend name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete sends the system prompt and turns as one chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt string, turns []Message) (string, error) {
	if err := ValidateMessages(turns); err != nil {
		return "", NewProviderError(p.name, p.model, err)
	}

	messages := make([]llms.MessageContent, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt))
	}
	for _, t := range turns {
		messages = append(messages, llms.TextParts(chatMessageType(t.Role), t.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, messages, p.opts...)
	if err != nil {
		return "", NewProviderError(p.name, p.model, withSDKStatus(err))
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", NewProviderError(p.name, p.model, ErrEmptyResponse)
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(role domain.Role) schema.ChatMessageType {
	switch role {
	case domain.RoleSystem:
		return schema.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

// withSDKStatus recovers the HTTP status the SDK folds into its error text.
func withSDKStatus(err error) error {
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return err
	}
	return WithStatus(code, err)
}
