package provider

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Chain runs one request through the layered transports: direct HTTPS, then
// relaxed TLS after a handshake-class failure, then the subprocess client
// when the platform stack still cannot reach the endpoint. The last failing
// layer's error is the one returned.
type Chain struct {
	name       string
	primary    Provider
	relaxed    Provider
	subprocess Provider
	limiter    *rate.Limiter
}

// ChainOptions lists the layers of a chain. Only Primary is required.
type ChainOptions struct {
	Primary    Provider
	Relaxed    Provider
	Subprocess Provider
	Limiter    *rate.Limiter
}

// NewChain creates a fallback chain registered under name.
func NewChain(name string, opts ChainOptions) *Chain {
	return &Chain{
		name:       name,
		primary:    opts.Primary,
		relaxed:    opts.Relaxed,
		subprocess: opts.Subprocess,
		limiter:    opts.Limiter,
	}
}

// Name returns the provider identifier.
func (c *Chain) Name() string {
	return c.name
}

// Chat executes the fallback policy. Errors are always *TransportError.
func (c *Chain) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", Classify(c.name, err)
		}
	}

	text, err := c.primary.Chat(ctx, messages)
	if err == nil {
		return text, nil
	}
	last := Classify(c.primary.Name(), err)
	c.logFailure(last)
	if !last.TLSClass() {
		return "", last
	}

	if c.relaxed != nil {
		text, err = c.relaxed.Chat(ctx, messages)
		if err == nil {
			log.Info().Str("provider", c.name).Msg("request succeeded with relaxed TLS")
			return text, nil
		}
		last = Classify(c.relaxed.Name(), err)
		c.logFailure(last)
		if !last.Unreachable() {
			return "", last
		}
	}
	if c.subprocess == nil {
		return "", last
	}

	text, err = c.subprocess.Chat(ctx, messages)
	if err == nil {
		log.Info().Str("provider", c.name).Msg("request succeeded through curl")
		return text, nil
	}
	if errors.Is(err, ErrCurlUnavailable) {
		log.Warn().Str("provider", c.name).Msg("curl fallback unavailable")
		return "", last
	}
	last = Classify(c.subprocess.Name(), err)
	c.logFailure(last)
	return "", last
}

func (c *Chain) logFailure(err *TransportError) {
	if err.Cancelled() {
		return
	}
	log.Warn().
		Str("provider", c.name).
		Str("layer", err.Layer).
		Str("code", err.Code()).
		Err(err.Err).
		Msg("transport layer failed")
}
