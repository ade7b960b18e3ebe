package config

import "strings"

// ConfigError kinds.
const (
	ErrMissingAPIKey   = "missing_api_key"
	ErrMissingModel    = "missing_model"
	ErrUnknownProvider = "unknown_provider"
)

// ConfigError reports a configuration that cannot make a request.
type ConfigError struct {
	Kind     string
	Provider string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return "config: " + e.Kind
	}
	return "config: " + e.Kind + " (" + e.Provider + ")"
}

// Code is the status-line tag for the failure.
func (e *ConfigError) Code() string {
	return e.Kind
}

// Validate checks that provider name can be used with apiKey. It runs before
// every request so nothing reaches the network with a broken setup.
func (c *Config) Validate(name, apiKey string) error {
	p, ok := c.Providers[name]
	if !ok {
		return &ConfigError{Kind: ErrUnknownProvider, Provider: name}
	}
	if strings.TrimSpace(p.Model) == "" {
		return &ConfigError{Kind: ErrMissingModel, Provider: name}
	}
	if strings.TrimSpace(apiKey) == "" && !isLocalEndpoint(p.Endpoint) {
		return &ConfigError{Kind: ErrMissingAPIKey, Provider: name}
	}
	return nil
}

// isLocalEndpoint reports endpoints that commonly run without a key.
func isLocalEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, "localhost") || strings.Contains(endpoint, "127.0.0.1")
}
