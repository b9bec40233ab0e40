package config_test

import (
	"strings"
	"testing"

	"github.com/lunavoice/luna/internal/config"
)

const sampleYAML = `
log:
  level: debug

audio:
  backend: portaudio
  sample_rate: 16000

providers:
  speech:
    name: deepgram
    api_key: dg-file-key
    model: aura-2-thalia-en
  nlu:
    name: openai
    api_key: sk-file-key
    model: gpt-5-nano

assistant:
  voice: aura-2-thalia-en
  apology_text: Sorry, let's try that again.
  orb_hide_delay_ms: 1200
  settle_delay_ms: 250

commands:
  weather:
    base_url: https://api.open-meteo.com/v1/forecast
    units: metric
  launcher:
    - name: terminal
      command: x-terminal-emulator
    - name: browser
      command: xdg-open
      args: ["https://example.com"]

mcp:
  servers:
    - name: files
      transport: stdio
      command: mcp-filesystem
    - name: remote
      transport: streamable-http
      url: https://mcp.example.com
`

func TestLoadFromReaderParsesFullConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}

	if cfg.Log.Level != config.LogDebug {
		t.Fatalf("expected debug log level, got %q", cfg.Log.Level)
	}
	if cfg.Audio.Backend != config.BackendPortaudio {
		t.Fatalf("expected portaudio backend, got %q", cfg.Audio.Backend)
	}
	if cfg.Assistant.OrbHideDelayMS != 1200 {
		t.Fatalf("expected orb hide delay, got %d", cfg.Assistant.OrbHideDelayMS)
	}
	if len(cfg.Commands.Launcher) != 2 || cfg.Commands.Launcher[1].Args[0] != "https://example.com" {
		t.Fatalf("expected launcher apps parsed, got %+v", cfg.Commands.Launcher)
	}
	if len(cfg.MCP.Servers) != 2 || cfg.MCP.Servers[1].Transport != config.TransportStreamableHTTP {
		t.Fatalf("expected MCP servers parsed, got %+v", cfg.MCP.Servers)
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("expected empty config to load with defaults, got %v", err)
	}

	if cfg.Log.Level != config.LogInfo {
		t.Fatalf("expected default log level info, got %q", cfg.Log.Level)
	}
	if cfg.Audio.Backend != config.BackendMiniaudio {
		t.Fatalf("expected default miniaudio backend, got %q", cfg.Audio.Backend)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Providers.Speech.Name != "deepgram" || cfg.Providers.NLU.Name != "openai" {
		t.Fatalf("expected default providers, got %+v", cfg.Providers)
	}
}

func TestEnvironmentOverlaysAPIKeys(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-env-key")
	t.Setenv("OPENAI_API_KEY", "sk-env-key")

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Providers.Speech.APIKey != "dg-env-key" {
		t.Fatalf("expected env to win over file, got %q", cfg.Providers.Speech.APIKey)
	}
	if cfg.Providers.NLU.APIKey != "sk-env-key" {
		t.Fatalf("expected env to win over file, got %q", cfg.Providers.NLU.APIKey)
	}
}

func TestValidateRejectsIncoherentValues(t *testing.T) {
	bad := `
log:
  level: loud
audio:
  backend: pulseaudio
  sample_rate: 44100
commands:
  weather:
    units: kelvin
  launcher:
    - name: ""
      command: ""
mcp:
  servers:
    - name: files
      transport: stdio
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	for _, fragment := range []string{
		"log.level", "audio.backend", "audio.sample_rate",
		"weather.units", "launcher[0].name", "launcher[0].command",
		"mcp.servers[0].command",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in validation error, got %v", fragment, err)
		}
	}
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	if _, err := config.LoadFromReader(strings.NewReader("bogus_field: 1\n")); err == nil {
		t.Fatalf("expected unknown fields to be rejected")
	}
}
