package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/xonecas/spire-advisor/internal/constants"
)

// GeminiOptions configure one Gemini layer.
type GeminiOptions struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Relaxed     bool
}

// GeminiProvider calls the Gemini generateContent API.
type GeminiProvider struct {
	name        string
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGemini creates a Gemini provider. No network call is made here.
func NewGemini(ctx context.Context, name string, opts GeminiOptions) (*GeminiProvider, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = constants.DefaultGeminiBaseURL
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: newHTTPClient(opts.Timeout, opts.Relaxed),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: endpoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		name:        name,
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return p.name
}

// Chat sends the system messages as the system instruction and the rest as
// user content.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.temperature)),
		MaxOutputTokens: int32(p.maxTokens),
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", Classify(p.name, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &TransportError{Kind: KindRequestFailed, Reason: "missing_choices", Layer: p.name}
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &TransportError{Kind: KindRequestFailed, Reason: "missing_content", Layer: p.name}
	}
	return text, nil
}
