package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A .env file in the working directory, when present, is
// loaded first so credential environment variables can overlay the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and the
// environment overlay, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverlay(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogInfo
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = BackendMiniaudio
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Providers.Speech.Name == "" {
		cfg.Providers.Speech.Name = "deepgram"
	}
	if cfg.Providers.NLU.Name == "" {
		cfg.Providers.NLU.Name = "openai"
	}
	if cfg.Commands.Weather.Units == "" {
		cfg.Commands.Weather.Units = "metric"
	}
}

// applyEnvOverlay lets credential environment variables win over values
// committed to the config file.
func applyEnvOverlay(cfg *Config) {
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok && apiKey != "" {
		cfg.Providers.Speech.APIKey = apiKey
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok && apiKey != "" {
		cfg.Providers.NLU.APIKey = apiKey
	}
}

// Validate checks that cfg contains a coherent set of values. It returns
// a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if !cfg.Audio.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: miniaudio, portaudio", cfg.Audio.Backend))
	}
	switch cfg.Audio.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is unsupported; valid values: 8000, 16000, 24000, 32000, 48000", cfg.Audio.SampleRate))
	}
	if units := cfg.Commands.Weather.Units; units != "metric" && units != "imperial" {
		errs = append(errs, fmt.Errorf("commands.weather.units %q is invalid; valid values: metric, imperial", units))
	}
	if cfg.Assistant.OrbHideDelayMS < 0 {
		errs = append(errs, fmt.Errorf("assistant.orb_hide_delay_ms must not be negative"))
	}
	if cfg.Assistant.SettleDelayMS < 0 {
		errs = append(errs, fmt.Errorf("assistant.settle_delay_ms must not be negative"))
	}

	launcherNames := make(map[string]int, len(cfg.Commands.Launcher))
	for i, app := range cfg.Commands.Launcher {
		prefix := fmt.Sprintf("commands.launcher[%d]", i)
		if app.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := launcherNames[app.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of commands.launcher[%d]", prefix, app.Name, prev))
			}
			launcherNames[app.Name] = i
		}
		if app.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required", prefix))
		}
	}

	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	return errors.Join(errs...)
}
