// Package app assembles the assistant from its parts: configuration,
// settings store, speech provider, capture backend, command handlers,
// MCP tool imports, playback, and the terminal UI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/core/audio/miniaudio"
	"github.com/lunavoice/luna/core/audio/playback"
	"github.com/lunavoice/luna/core/audio/portaudio"
	"github.com/lunavoice/luna/core/events"
	"github.com/lunavoice/luna/core/speech/deepgram"
	openainlu "github.com/lunavoice/luna/core/speech/nlu/openai"
	"github.com/lunavoice/luna/internal/commands"
	"github.com/lunavoice/luna/internal/config"
	"github.com/lunavoice/luna/internal/mcptool"
	"github.com/lunavoice/luna/internal/store"
	"github.com/lunavoice/luna/internal/tui"
)

type options struct {
	provider   orchestration.SpeechProvider
	capture    orchestration.CaptureClient
	settings   store.Store
	classifier deepgram.IntentClassifier
}

// Option overrides one wired component, primarily for tests and for
// hosts embedding the assistant with their own backends.
type Option func(*options)

func WithSpeechProvider(provider orchestration.SpeechProvider) Option {
	return func(o *options) { o.provider = provider }
}

func WithCaptureClient(capture orchestration.CaptureClient) Option {
	return func(o *options) { o.capture = capture }
}

func WithSettingsStore(settings store.Store) Option {
	return func(o *options) { o.settings = settings }
}

func WithClassifier(classifier deepgram.IntentClassifier) Option {
	return func(o *options) { o.classifier = classifier }
}

// App owns every long-lived component and tears them down together.
type App struct {
	cfg *config.Config

	orchestrator *orchestration.Orchestrator
	table        *orchestration.DispatchTable
	capture      orchestration.CaptureClient
	player       *playback.Player
	importer     *mcptool.Importer

	unsubscribe func()
	closeOnce   sync.Once
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	var assembled options
	for _, opt := range opts {
		opt(&assembled)
	}

	settings := assembled.settings
	if settings == nil {
		fileStore, err := store.Open(storePath(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open settings store: %w", err)
		}
		settings = fileStore
	}

	table := orchestration.NewDispatchTable()
	builtins := commands.Set{
		Clock:    commands.NewClock(),
		Launcher: commands.NewLauncher(cfg.Commands.Launcher),
		Settings: commands.NewSettings(settings),
	}
	if cfg.Commands.Weather.BaseURL != "" {
		builtins.Weather = commands.NewWeather(
			commands.NewHTTPWeatherService(cfg.Commands.Weather.BaseURL, cfg.Commands.Weather.Units, nil),
		)
	}
	intents := builtins.Register(table)

	provider := assembled.provider
	if provider == nil {
		classifier := assembled.classifier
		if classifier == nil {
			classifier = newClassifier(cfg, settings, intents)
		}
		built, err := newSpeechProvider(cfg, settings, classifier)
		if err != nil {
			return nil, err
		}
		provider = built
	}

	capture := assembled.capture
	if capture == nil {
		built, err := newCaptureClient(cfg)
		if err != nil {
			return nil, err
		}
		capture = built
	}

	orchestratorOpts := []orchestration.OrchestratorOption{
		orchestration.WithSpeechProvider(provider),
		orchestration.WithCaptureClient(capture),
		orchestration.WithDispatchTable(table),
		orchestration.WithApologyText(cfg.Assistant.ApologyText),
		orchestration.WithVoice(cfg.Assistant.Voice),
	}
	if cfg.Assistant.OrbHideDelayMS > 0 {
		orchestratorOpts = append(orchestratorOpts, orchestration.WithOrbHideDelay(time.Duration(cfg.Assistant.OrbHideDelayMS)*time.Millisecond))
	}
	if cfg.Assistant.SettleDelayMS > 0 {
		orchestratorOpts = append(orchestratorOpts, orchestration.WithSettleDelay(time.Duration(cfg.Assistant.SettleDelayMS)*time.Millisecond))
	}
	orchestrator := orchestration.NewOrchestrator(orchestratorOpts...)

	player := playback.NewPlayer()
	unsubscribeChunks := orchestrator.Bus().Subscribe(events.KindSpeechChunk, func(event events.Event) {
		chunk, ok := event.(events.SpeechChunk)
		if !ok {
			return
		}
		if !player.Enqueue(chunk.Audio) {
			logger.Warn("playback queue full, dropping speech chunk", "ordinal", chunk.Ordinal)
		}
	})
	// A reset abandons the turn; clips already queued must not play out.
	unsubscribeReset := orchestrator.Bus().Subscribe(events.KindConversationReset, func(events.Event) {
		player.Interrupt()
	})

	return &App{
		cfg:          cfg,
		orchestrator: orchestrator,
		table:        table,
		capture:      capture,
		player:       player,
		importer:     mcptool.NewImporter(table),
		unsubscribe: func() {
			unsubscribeChunks()
			unsubscribeReset()
		},
	}, nil
}

// Orchestrator exposes the turn controls and the event bus.
func (a *App) Orchestrator() *orchestration.Orchestrator { return a.orchestrator }

// DispatchTable exposes the command table, including imported MCP tools.
func (a *App) DispatchTable() *orchestration.DispatchTable { return a.table }

// Run starts playback, imports MCP tools, and blocks on the UI (or on
// ctx when the UI is disabled). A failing MCP server is logged and
// skipped so one dead tool server cannot take the assistant down.
func (a *App) Run(ctx context.Context) error {
	a.player.Start(ctx)

	for _, server := range a.cfg.MCP.Servers {
		registered, err := a.importer.ImportServer(ctx, server)
		if err != nil {
			logger.WarnContext(ctx, "failed to import mcp server", "server", server.Name, "error", err)
			continue
		}
		logger.InfoContext(ctx, "imported mcp server", "server", server.Name, "commands", registered)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if a.cfg.UI.Disabled {
		group.Go(func() error {
			<-groupCtx.Done()
			return nil
		})
	} else {
		group.Go(func() error {
			return tui.Run(groupCtx, a.orchestrator.Bus(), a.orchestrator)
		})
	}
	return group.Wait()
}

// Close tears components down in reverse dependency order. Safe to call
// more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.unsubscribe()
		a.orchestrator.Close()
		a.capture.Close()
		a.player.Close()
		err = a.importer.Close()
	})
	return err
}

// newClassifier declares every registered intent to the model, with the
// reflected argument schema where one exists so the model learns each
// intent's args shape.
func newClassifier(cfg *config.Config, settings store.Store, intents []string) *openainlu.Classifier {
	schemas := make(map[string]mcptool.ToolSchema)
	for _, schema := range mcptool.BuiltinSchemas() {
		schemas[schema.Name] = schema
	}

	declarations := make([]openainlu.IntentDeclaration, 0, len(intents))
	for _, intent := range intents {
		declaration := openainlu.IntentDeclaration{Name: intent}
		if schema, ok := schemas[intent]; ok {
			declaration.Description = schema.Description
			declaration.ArgsSchema = schema.InputSchemaJSON()
		}
		declarations = append(declarations, declaration)
	}

	classifierOpts := []openainlu.ClassifierOption{openainlu.WithIntentDeclarations(declarations...)}
	if key := credential(cfg.Providers.NLU.APIKey, settings, "openai.api_key", "OPENAI_API_KEY"); key != "" {
		classifierOpts = append(classifierOpts, openainlu.WithAPIKey(key))
	}
	if cfg.Providers.NLU.BaseURL != "" {
		classifierOpts = append(classifierOpts, openainlu.WithBaseURL(cfg.Providers.NLU.BaseURL))
	}
	if cfg.Providers.NLU.Model != "" {
		classifierOpts = append(classifierOpts, openainlu.WithModel(cfg.Providers.NLU.Model))
	}
	return openainlu.NewClassifier(classifierOpts...)
}

func newSpeechProvider(cfg *config.Config, settings store.Store, classifier deepgram.IntentClassifier) (*deepgram.Provider, error) {
	providerOpts := []deepgram.ProviderOption{deepgram.WithClassifier(classifier)}
	if key := credential(cfg.Providers.Speech.APIKey, settings, "deepgram.api_key", "DEEPGRAM_API_KEY"); key != "" {
		providerOpts = append(providerOpts, deepgram.WithAPIKey(key))
	}
	if cfg.Assistant.Voice != "" {
		providerOpts = append(providerOpts, deepgram.WithVoice(cfg.Assistant.Voice))
	}

	provider, err := deepgram.NewProvider(providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build speech provider: %w", err)
	}
	return provider, nil
}

func newCaptureClient(cfg *config.Config) (orchestration.CaptureClient, error) {
	switch cfg.Audio.Backend {
	case config.BackendPortaudio:
		// 100ms buffers keep upload latency low without starving the device.
		client, err := portaudio.NewClient(cfg.Audio.SampleRate / 10)
		if err != nil {
			return nil, fmt.Errorf("failed to open portaudio capture: %w", err)
		}
		return client, nil
	case config.BackendMiniaudio, "":
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to open miniaudio capture: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
}

// credential resolves an API key: explicit config first, then the
// settings store, then the environment.
func credential(configured string, settings store.Store, storeKey, envVar string) string {
	if configured != "" {
		return configured
	}
	if value, ok := store.Credential(settings, storeKey, envVar); ok {
		return value
	}
	return ""
}

func storePath(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "luna-settings.yaml"
	}
	return filepath.Join(dir, "luna", "settings.yaml")
}
