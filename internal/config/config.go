// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xonecas/spire-advisor/internal/constants"
)

// Provider kinds.
const (
	KindOpenAI = "openai"
	KindGemini = "gemini"
)

// Config is the root configuration structure.
type Config struct {
	Provider  string                    `toml:"provider"`
	Features  FeaturesConfig            `toml:"features"`
	Snapshot  SnapshotConfig            `toml:"snapshot"`
	Debounce  map[string]int            `toml:"debounce"`
	Transport TransportConfig           `toml:"transport"`
	Providers map[string]ProviderConfig `toml:"providers"`
	State     StateConfig               `toml:"state"`
}

// FeaturesConfig holds the user-facing toggles.
type FeaturesConfig struct {
	AutoTriggers         bool `toml:"auto_triggers"`
	CombatAdvice         bool `toml:"combat_advice"`
	MultiRecommendations bool `toml:"multi_recommendations"`
	UseKnowledgeBase     bool `toml:"use_knowledge_base"`
	ShowSnapshot         bool `toml:"show_snapshot"`
}

// SnapshotConfig holds snapshot budget settings.
type SnapshotConfig struct {
	MaxBytes       int `toml:"max_bytes"`
	MinIntervalMs  int `toml:"min_interval_ms"`
	PromptMaxChars int `toml:"prompt_max_chars"`
}

// MinInterval returns the refresh throttle as a duration.
func (s SnapshotConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMs) * time.Millisecond
}

// TransportConfig controls the fallback layers.
type TransportConfig struct {
	RelaxedTLS    bool     `toml:"relaxed_tls"`
	Subprocess    bool     `toml:"subprocess"`
	CurlPath      string   `toml:"curl_path"`
	CurlExtraArgs []string `toml:"curl_extra_args"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Kind        string  `toml:"kind"`
	Endpoint    string  `toml:"endpoint"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	TimeoutMs   int     `toml:"timeout_ms"`
	RateLimit   float64 `toml:"rate_limit"`
	RateBurst   int     `toml:"rate_burst"`
}

// Timeout returns the per-request timeout, falling back to the default.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return constants.DefaultRequestTimeout
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// StateConfig locates the game state export.
type StateConfig struct {
	Path   string `toml:"path"`
	PollMs int    `toml:"poll_ms"`
}

// PollInterval returns the engine tick interval, falling back to the
// default for non-positive values.
func (s StateConfig) PollInterval() time.Duration {
	if s.PollMs <= 0 {
		return constants.TickInterval
	}
	return time.Duration(s.PollMs) * time.Millisecond
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: "openai",
		Features: FeaturesConfig{
			AutoTriggers:         true,
			CombatAdvice:         true,
			MultiRecommendations: false,
			UseKnowledgeBase:     true,
		},
		Snapshot: SnapshotConfig{
			MaxBytes:       constants.DefaultSnapshotMaxBytes,
			MinIntervalMs:  int(constants.DefaultSnapshotMinInterval / time.Millisecond),
			PromptMaxChars: constants.PromptSnapshotMaxChars,
		},
		Debounce: map[string]int{},
		Transport: TransportConfig{
			RelaxedTLS: true,
			Subprocess: true,
			CurlPath:   "curl",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Kind:        KindOpenAI,
				Endpoint:    constants.DefaultOpenAIBaseURL,
				Model:       constants.DefaultOpenAIModel,
				Temperature: constants.DefaultTemperature,
				MaxTokens:   constants.DefaultMaxTokens,
				TimeoutMs:   int(constants.DefaultRequestTimeout / time.Millisecond),
				RateLimit:   1.0,
				RateBurst:   2,
			},
			"gemini": {
				Kind:        KindGemini,
				Endpoint:    constants.DefaultGeminiBaseURL,
				Model:       constants.DefaultGeminiModel,
				Temperature: constants.DefaultTemperature,
				MaxTokens:   constants.DefaultMaxTokens,
				TimeoutMs:   int(constants.DefaultRequestTimeout / time.Millisecond),
				RateLimit:   1.0,
				RateBurst:   2,
			},
		},
		State: StateConfig{
			PollMs: int(constants.TickInterval / time.Millisecond),
		},
	}
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if it exists
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.fillProviderDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// fillProviderDefaults completes partially specified providers. A TOML
// table replaces the default entry wholesale, so zero fields are refilled
// from the default of the same kind.
func (c *Config) fillProviderDefaults() {
	defaults := DefaultConfig().Providers
	for name, p := range c.Providers {
		if p.Kind == "" {
			if strings.Contains(name, "gemini") || strings.Contains(p.Endpoint, "generativelanguage") {
				p.Kind = KindGemini
			} else {
				p.Kind = KindOpenAI
			}
		}
		base, ok := defaults[name]
		if !ok {
			base = defaults[p.Kind]
		}
		if p.Endpoint == "" {
			p.Endpoint = base.Endpoint
		}
		if p.Model == "" && ok {
			p.Model = base.Model
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = base.MaxTokens
		}
		if p.TimeoutMs == 0 {
			p.TimeoutMs = base.TimeoutMs
		}
		c.Providers[name] = p
	}
}

// Active returns the configuration of the selected provider.
func (c *Config) Active() (ProviderConfig, bool) {
	p, ok := c.Providers[c.Provider]
	return p, ok
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPIRE_PROVIDER"); v != "" {
		cfg.Provider = v
	}

	envBool("SPIRE_AUTO_TRIGGERS", &cfg.Features.AutoTriggers)
	envBool("SPIRE_COMBAT_ADVICE", &cfg.Features.CombatAdvice)
	envBool("SPIRE_MULTI_RECOMMENDATIONS", &cfg.Features.MultiRecommendations)
	envBool("SPIRE_USE_KNOWLEDGE_BASE", &cfg.Features.UseKnowledgeBase)
	envInt("SPIRE_SNAPSHOT_MAX_BYTES", &cfg.Snapshot.MaxBytes)
	envBool("SPIRE_RELAXED_TLS", &cfg.Transport.RelaxedTLS)
	envBool("SPIRE_SUBPROCESS", &cfg.Transport.Subprocess)

	if v := os.Getenv("SPIRE_CURL_PATH"); v != "" {
		cfg.Transport.CurlPath = v
	}
	if v := os.Getenv("SPIRE_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}

	p, ok := cfg.Providers[cfg.Provider]
	if !ok {
		return
	}
	if v := os.Getenv("SPIRE_ENDPOINT"); v != "" {
		p.Endpoint = v
	}
	if v := os.Getenv("SPIRE_MODEL"); v != "" {
		p.Model = v
	}
	if v := os.Getenv("SPIRE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.Temperature = f
		}
	}
	envInt("SPIRE_TIMEOUT_MS", &p.TimeoutMs)
	cfg.Providers[cfg.Provider] = p
}

// DebounceIntervals returns the configured per-kind intervals. Keys are
// trigger kind names; non-positive values are ignored.
func (c *Config) DebounceIntervals() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Debounce))
	for k, ms := range c.Debounce {
		if ms > 0 {
			out[strings.ToUpper(k)] = time.Duration(ms) * time.Millisecond
		}
	}
	return out
}

// DataDir returns the path to the advisor data directory (~/.spire-advisor).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".spire-advisor"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
