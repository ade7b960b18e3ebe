package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configure one OpenAI-compatible layer.
type OpenAIOptions struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// Relaxed skips certificate and hostname verification.
	Relaxed bool
}

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(name string, opts OpenAIOptions) *OpenAIProvider {
	config := openai.DefaultConfig(opts.APIKey)
	config.BaseURL = NormalizeBaseURL(opts.Endpoint)
	config.HTTPClient = newHTTPClient(opts.Timeout, opts.Relaxed)

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(config),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Chat sends messages and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, chatRequest(p.model, p.temperature, p.maxTokens, messages))
	if err != nil {
		return "", Classify(p.name, err)
	}
	return firstChoice(p.name, resp)
}

func chatRequest(model string, temperature float64, maxTokens int, messages []Message) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
}

func firstChoice(layer string, resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", &TransportError{Kind: KindRequestFailed, Reason: "missing_choices", Layer: layer}
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &TransportError{Kind: KindRequestFailed, Reason: "missing_content", Layer: layer}
	}
	return content, nil
}

// toOpenAIMessages converts messages to the SDK format, merging every system
// message into one leading system message.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	var system strings.Builder
	rest := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == openai.ChatMessageRoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		rest = append(rest, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	result := make([]openai.ChatCompletionMessage, 0, len(rest)+1)
	if system.Len() > 0 {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system.String(),
		})
	}
	result = append(result, rest...)
	if len(rest) == 0 && len(result) > 0 {
		log.Debug().Msg("OpenAI: only system messages present, adding minimal user message")
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "Begin."})
	}
	return result
}
