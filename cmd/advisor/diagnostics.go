package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/spire-advisor/internal/advice"
	"github.com/xonecas/spire-advisor/internal/config"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/core"
	"github.com/xonecas/spire-advisor/internal/gamestate"
	"github.com/xonecas/spire-advisor/internal/provider"
	"github.com/xonecas/spire-advisor/internal/store"
)

const testSnapshot = `{"context_type":"MAP","run":{"floor":1,"hp":80,"max_hp":80,"gold":99,"character":"IRONCLAD"},"choices":["MonsterRoom","EventRoom"]}`

// runSetKey stores key for the active provider.
func runSetKey(configPath, key string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to load config: %v\n", err)
		os.Exit(1)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Printf("ERROR: Failed to load credentials: %v\n", err)
		os.Exit(1)
	}
	creds.SetAPIKey(cfg.Provider, strings.TrimSpace(key))
	if err := config.SaveCredentials(creds); err != nil {
		fmt.Printf("ERROR: Failed to save credentials: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: API key stored for %s\n", cfg.Provider)
}

// runProviderTest sends one canned snapshot through the active provider's
// fallback chain and reports each step.
func runProviderTest(configPath string) {
	fmt.Println("=== Provider Test ===")
	fmt.Println()

	// Transport fallbacks log at warn level; show them on the console.
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to load config: %v\n", err)
		os.Exit(1)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Printf("WARNING: Failed to load credentials: %v\n", err)
		creds = &config.Credentials{}
	}

	pc, _ := cfg.Active()
	fmt.Printf("Provider: %s (%s)\n", cfg.Provider, pc.Kind)
	fmt.Printf("Endpoint: %s\n", pc.Endpoint)
	fmt.Printf("Model:    %s\n", pc.Model)
	fmt.Printf("Relaxed TLS: %t  Subprocess: %t\n", cfg.Transport.RelaxedTLS, cfg.Transport.Subprocess)

	if err := cfg.Validate(cfg.Provider, creds.ResolveAPIKey(cfg.Provider)); err != nil {
		fmt.Printf("\nERROR: %v [%s]\n", err, core.ErrorCode(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ProviderTestTimeout)
	defer cancel()

	registry := initProviders(ctx, cfg, creds)
	p, err := registry.Get(cfg.Provider)
	if err != nil {
		fmt.Printf("\nERROR: %v [%s]\n", err, core.ErrorCode(err))
		os.Exit(1)
	}

	fmt.Println("\n--- Sending test snapshot ---")
	start := time.Now()
	text, err := p.Chat(ctx, []provider.Message{
		{Role: "system", Content: constants.SystemPrompt},
		{Role: "user", Content: "Snapshot:\n" + testSnapshot},
	})
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		fmt.Printf("ERROR after %s: %v [%s]\n", elapsed, err, core.ErrorCode(err))
		os.Exit(1)
	}
	fmt.Printf("OK: reply in %s (%d bytes)\n", elapsed, len(text))

	fmt.Println("\n--- Parsing reply ---")
	rec, err := advice.ParseReply(text, gamestate.ContextMap, advice.Cap(gamestate.ContextMap, false))
	if err != nil {
		fmt.Printf("ERROR: %v [%s]\n", err, core.ErrorCode(err))
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Printf("Raw: %s\n", text)
		os.Exit(1)
	}
	fmt.Printf("Summary: %s\n", rec.Summary)
	for i, item := range rec.Items {
		fmt.Printf("  %d. %s: %s (%.0f%%)\n", i+1, item.Title, item.Action, item.Confidence*100)
	}

	fmt.Println("\n=== Test Complete ===")
}

// runDumpSnapshot prints the snapshot last sent for a context as flattened
// "path: value" lines, or the list of stored contexts when asked for "list".
func runDumpSnapshot(tag string) {
	s, err := store.New()
	if err != nil {
		fmt.Printf("ERROR: Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if tag == "list" {
		contexts, err := s.ListSnapshotContexts()
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		if len(contexts) == 0 {
			fmt.Println("No stored snapshots")
			return
		}
		for _, c := range contexts {
			fmt.Println(c)
		}
		return
	}

	snap, err := s.GetSnapshot(strings.ToUpper(tag))
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Printf("No snapshot stored for %s\n", strings.ToUpper(tag))
		return
	}
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("# %s digest=%s captured=%s\n", snap.Context, snap.Digest, snap.CapturedAt.Local().Format(time.DateTime))
	for _, line := range gamestate.DebugLines([]byte(snap.Payload), false) {
		fmt.Println(line)
	}
}
