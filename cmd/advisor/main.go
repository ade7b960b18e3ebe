package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/spire-advisor/internal/config"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/core"
	"github.com/xonecas/spire-advisor/internal/provider"
	"github.com/xonecas/spire-advisor/internal/statefile"
	"github.com/xonecas/spire-advisor/internal/store"
	"github.com/xonecas/spire-advisor/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	var (
		showVersion  = flag.Bool("version", false, "Show version and exit")
		configPath   = flag.String("config", "config.toml", "Path to config file")
		debug        = flag.Bool("debug", false, "Enable debug logging")
		headless     = flag.Bool("headless", false, "Run without the TUI and log advice instead")
		statePath    = flag.String("state", "", "Path to the game state export (overrides config)")
		setKey       = flag.String("set-key", "", "Store an API key for the active provider and exit")
		testProvider = flag.Bool("test-provider", false, "Send a short prompt through the active provider and exit")
		dumpSnapshot = flag.String("dump-snapshot", "", "Print the last snapshot stored for a context (\"list\" shows contexts) and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Spire Advisor %s\n", Version)
		os.Exit(0)
	}

	if *setKey != "" {
		runSetKey(*configPath, *setKey)
		return
	}
	if *testProvider {
		runProviderTest(*configPath)
		return
	}
	if *dumpSnapshot != "" {
		runDumpSnapshot(*dumpSnapshot)
		return
	}

	if err := initLogging(*debug, *headless); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().Str("version", Version).Msg("Starting Spire Advisor")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *statePath != "" {
		cfg.State.Path = *statePath
	}
	if cfg.State.Path == "" {
		dir, err := config.DataDir()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve data dir")
		}
		cfg.State.Path = filepath.Join(dir, "state.json")
	}
	log.Debug().Interface("config", cfg).Msg("Configuration loaded")

	creds, err := config.LoadCredentials()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load credentials")
		creds = &config.Credentials{}
	}

	s, err := store.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer s.Close()
	if n, err := s.PruneAdvice(constants.AdviceLogRetention); err != nil {
		log.Warn().Err(err).Msg("Failed to prune advice log")
	} else if n > 0 {
		log.Debug().Int64("removed", n).Msg("Advice log pruned")
	}

	bus := core.NewEventBus(constants.MinEventBusBufferSize)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := initProviders(ctx, cfg, creds)
	log.Debug().Strs("providers", registry.List()).Msg("Providers initialized")

	game, err := statefile.New(cfg.State.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open game state export")
	}
	if err := game.Start(ctx); err != nil {
		log.Fatal().Err(err).Str("path", game.Path()).Msg("Failed to watch game state export")
	}
	defer game.Stop()
	log.Info().Str("path", game.Path()).Msg("Watching game state export")

	engine := core.NewEngine(core.Options{
		Config:    cfg,
		State:     game,
		Host:      game,
		Providers: registry,
		APIKey:    creds.ResolveAPIKey(cfg.Provider),
		Bus:       bus,
	})
	defer engine.Close()

	recorder := core.NewRecorder(s, bus)
	go recorder.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *headless {
		runHeadless(ctx, engine, bus, cfg.State.PollInterval(), sigCh)
	} else {
		model := tui.New(engine, s, bus.Subscribe(), cfg.State.PollInterval())
		program := tea.NewProgram(model, tea.WithAltScreen())

		go func() {
			<-sigCh
			log.Info().Msg("Received shutdown signal")
			program.Quit()
		}()

		if _, err := program.Run(); err != nil {
			log.Fatal().Err(err).Msg("TUI error")
		}
	}

	cancel()
	<-recorder.Done()
	log.Info().Msg("Spire Advisor shutdown complete")
}

func initLogging(debug, console bool) error {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	logPath := filepath.Join(dataDir, "advisor.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// The TUI owns stdout, so only headless runs also log to the console.
	if console {
		out := zerolog.MultiLevelWriter(logFile, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return nil
	}
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()

	return nil
}

// initProviders builds one fallback chain per configured provider. A
// provider that fails to build is logged and left out; requests naming it
// fail with unknown_provider.
func initProviders(ctx context.Context, cfg *config.Config, creds *config.Credentials) *provider.Registry {
	registry := provider.NewRegistry()

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		factory, err := newFactory(name, cfg.Providers[name], cfg.Transport, creds.ResolveAPIKey(name))
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Skipping provider")
			continue
		}
		p, err := factory.Create(ctx)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		registry.Register(p)
	}

	return registry
}

func newFactory(name string, pc config.ProviderConfig, tc config.TransportConfig, apiKey string) (provider.Factory, error) {
	settings := provider.Settings{
		Endpoint:        pc.Endpoint,
		APIKey:          apiKey,
		Model:           pc.Model,
		Temperature:     pc.Temperature,
		MaxTokens:       pc.MaxTokens,
		Timeout:         pc.Timeout(),
		RateLimit:       pc.RateLimit,
		RateBurst:       pc.RateBurst,
		AllowRelaxedTLS: tc.RelaxedTLS,
	}
	if tc.Subprocess {
		settings.CurlPath = tc.CurlPath
		settings.CurlArgs = tc.CurlExtraArgs
	}

	switch pc.Kind {
	case config.KindOpenAI:
		return provider.NewOpenAIFactory(name, settings), nil
	case config.KindGemini:
		return provider.NewGeminiFactory(name, settings), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

// runHeadless ticks the engine on the calling goroutine and logs what it
// publishes until ctx ends or a signal arrives.
func runHeadless(ctx context.Context, engine *core.Engine, bus *core.EventBus, poll time.Duration, sigCh <-chan os.Signal) {
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			log.Info().Msg("Received shutdown signal")
			return
		case <-ticker.C:
			engine.Tick()
		case ev, ok := <-events:
			if !ok {
				return
			}
			logEvent(ev)
		}
	}
}

func logEvent(ev core.Event) {
	switch ev.Type {
	case core.EventRequestSubmitted:
		if ev.Request != nil {
			log.Info().Str("label", ev.Request.Label).Str("reason", ev.Request.Reason).Bool("auto", ev.Request.Auto).Msg("Analyzing")
		}
	case core.EventRequestCompleted:
		if ev.Result == nil || ev.Result.Recommendation == nil {
			return
		}
		rec := ev.Result.Recommendation
		log.Info().Str("context", string(rec.Context)).Dur("latency", ev.Result.Latency).Msg(rec.Summary)
		for i, item := range rec.Items {
			log.Info().Int("rank", i+1).Str("action", item.Action).Float64("confidence", item.Confidence).Msg(item.Title)
		}
	case core.EventRequestFailed:
		if ev.Result != nil {
			log.Warn().Str("code", ev.Result.Code).Str("label", ev.Result.Request.Label).Msg("Request failed")
		}
	case core.EventRequestSkipped:
		if ev.Skip != nil {
			log.Debug().Str("kind", ev.Skip.Kind).Str("reason", ev.Skip.Reason).Msg("Request skipped")
		}
	case core.EventRunEnded:
		log.Info().Msg("Run ended")
	}
}
