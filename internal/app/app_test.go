package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	orchestration "github.com/lunavoice/luna/core"
	"github.com/lunavoice/luna/core/audio"
	"github.com/lunavoice/luna/core/events"
	"github.com/lunavoice/luna/core/speech"
	"github.com/lunavoice/luna/internal/config"
	"github.com/lunavoice/luna/internal/store"
)

type fakeProvider struct {
	transcript  string
	response    *speech.IntentResponse
	synthesized []string
}

func (f *fakeProvider) Converse(_ context.Context, request speech.ConversationRequest, opts ...speech.ConversationOption) (*speech.ConversationResult, error) {
	var options speech.ConversationOptions
	for _, opt := range opts {
		opt(&options)
	}

	if _, err := io.ReadAll(request.Audio); err != nil {
		return nil, err
	}
	if options.TranscriptionCallback != nil {
		options.TranscriptionCallback(f.transcript)
	}
	return &speech.ConversationResult{
		Transcript: f.transcript,
		Response:   f.response,
		Context:    request.Context,
	}, nil
}

func (f *fakeProvider) Synthesize(_ context.Context, text string, opts ...speech.SynthesizeOption) ([]byte, error) {
	var options speech.SynthesizeOptions
	for _, opt := range opts {
		opt(&options)
	}
	f.synthesized = append(f.synthesized, text)

	clip := []byte{0xF0, 0x0D}
	if options.AudioChunkCallback != nil {
		options.AudioChunkCallback(clip)
	}
	return clip, nil
}

type fakeCapture struct {
	onAudio func([]byte)
	started int
	stopped int
}

func (f *fakeCapture) StartCapture(_ context.Context, onAudio func([]byte)) error {
	f.onAudio = onAudio
	f.started++
	return nil
}

func (f *fakeCapture) StopCapture() error {
	f.stopped++
	return nil
}

func (f *fakeCapture) Close() {}

func (f *fakeCapture) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func testConfig() *config.Config {
	return &config.Config{
		Commands: config.CommandsConfig{
			Weather: config.WeatherConfig{BaseURL: "http://127.0.0.1:1", Units: "metric"},
			Launcher: []config.LauncherApp{
				{Name: "Terminal", Command: "true"},
			},
		},
		Assistant: config.AssistantConfig{
			SettleDelayMS:  1,
			OrbHideDelayMS: 1,
		},
		UI: config.UIConfig{Disabled: true},
	}
}

func newTestApp(t *testing.T, provider *fakeProvider, capture *fakeCapture) *App {
	t.Helper()

	settings, err := store.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("expected store to open, got %v", err)
	}

	application, err := New(testConfig(),
		WithSpeechProvider(provider),
		WithCaptureClient(capture),
		WithSettingsStore(settings),
	)
	if err != nil {
		t.Fatalf("expected app to assemble, got %v", err)
	}
	t.Cleanup(func() { _ = application.Close() })
	return application
}

func TestNewRegistersBuiltinCommands(t *testing.T) {
	application := newTestApp(t, &fakeProvider{}, &fakeCapture{})

	intents := application.DispatchTable().Intents()
	if len(intents) != 5 {
		t.Fatalf("expected all built-in commands registered, got %v", intents)
	}
}

func TestHeadlessTurnEndToEnd(t *testing.T) {
	provider := &fakeProvider{
		transcript: "what time is it",
		response:   &speech.IntentResponse{Intent: "get_time"},
	}
	capture := &fakeCapture{}
	application := newTestApp(t, provider, capture)
	orchestrator := application.Orchestrator()

	ended := make(chan struct{})
	orchestrator.Bus().Subscribe(events.KindConversationEnded, func(events.Event) {
		close(ended)
	})

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("expected listening to start, got %v", err)
	}
	if capture.started != 1 {
		t.Fatalf("expected capture backend started, got %d", capture.started)
	}
	capture.onAudio([]byte{0x01, 0x02})
	orchestrator.StopListening()

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the turn to finish")
	}

	if len(provider.synthesized) == 0 {
		t.Fatalf("expected the clock reply to be synthesized")
	}
	if capture.stopped == 0 {
		t.Fatalf("expected capture backend stopped")
	}
}

func TestRunHeadlessStopsOnContextCancel(t *testing.T) {
	application := newTestApp(t, &fakeProvider{}, &fakeCapture{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected run to return after cancel")
	}
}

var _ orchestration.SpeechProvider = (*fakeProvider)(nil)
var _ orchestration.CaptureClient = (*fakeCapture)(nil)
