package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Settings describe one configured provider endpoint.
type Settings struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64
	RateBurst   int
	// AllowRelaxedTLS enables the relaxed retry after a handshake failure.
	AllowRelaxedTLS bool
	// CurlPath enables the subprocess layer when non-empty.
	CurlPath string
	CurlArgs []string
}

// Factory builds a ready-to-use fallback chain for one configured endpoint.
type Factory interface {
	Name() string
	Create(ctx context.Context) (Provider, error)
}

func newLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

// OpenAIFactory creates chains for OpenAI-compatible endpoints. All chains
// created by one factory share its rate limiter.
type OpenAIFactory struct {
	name     string
	settings Settings
	limiter  *rate.Limiter
}

func NewOpenAIFactory(name string, settings Settings) *OpenAIFactory {
	return &OpenAIFactory{
		name:     name,
		settings: settings,
		limiter:  newLimiter(settings.RateLimit, settings.RateBurst),
	}
}

func (f *OpenAIFactory) Name() string { return f.name }

func (f *OpenAIFactory) Create(ctx context.Context) (Provider, error) {
	s := f.settings
	opts := OpenAIOptions{
		Endpoint:    s.Endpoint,
		APIKey:      s.APIKey,
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Timeout:     s.Timeout,
	}
	chain := ChainOptions{
		Primary: NewOpenAI(f.name+"/https", opts),
		Limiter: f.limiter,
	}
	if s.AllowRelaxedTLS {
		opts.Relaxed = true
		chain.Relaxed = NewOpenAI(f.name+"/relaxed", opts)
	}
	if s.CurlPath != "" {
		chain.Subprocess = NewCurl(f.name+"/curl", CurlOptions{
			Path:        s.CurlPath,
			Endpoint:    s.Endpoint,
			APIKey:      s.APIKey,
			Model:       s.Model,
			Temperature: s.Temperature,
			MaxTokens:   s.MaxTokens,
			Timeout:     s.Timeout,
			ExtraArgs:   s.CurlArgs,
		})
	}
	return NewChain(f.name, chain), nil
}

// GeminiFactory creates chains for the Gemini API. The curl layer speaks the
// OpenAI wire format, so Gemini chains stop at relaxed TLS.
type GeminiFactory struct {
	name     string
	settings Settings
	limiter  *rate.Limiter
}

func NewGeminiFactory(name string, settings Settings) *GeminiFactory {
	return &GeminiFactory{
		name:     name,
		settings: settings,
		limiter:  newLimiter(settings.RateLimit, settings.RateBurst),
	}
}

func (f *GeminiFactory) Name() string { return f.name }

func (f *GeminiFactory) Create(ctx context.Context) (Provider, error) {
	s := f.settings
	opts := GeminiOptions{
		Endpoint:    s.Endpoint,
		APIKey:      s.APIKey,
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Timeout:     s.Timeout,
	}
	primary, err := NewGemini(ctx, f.name+"/https", opts)
	if err != nil {
		return nil, err
	}
	chain := ChainOptions{Primary: primary, Limiter: f.limiter}
	if s.AllowRelaxedTLS {
		opts.Relaxed = true
		relaxed, err := NewGemini(ctx, f.name+"/relaxed", opts)
		if err != nil {
			return nil, err
		}
		chain.Relaxed = relaxed
	}
	return NewChain(f.name, chain), nil
}
