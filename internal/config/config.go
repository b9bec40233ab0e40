// Package config provides the configuration schema and loader for the
// Luna voice assistant.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// AudioBackend selects the microphone capture implementation.
type AudioBackend string

const (
	BackendMiniaudio AudioBackend = "miniaudio"
	BackendPortaudio AudioBackend = "portaudio"
)

// IsValid reports whether b is a recognised audio backend.
func (b AudioBackend) IsValid() bool {
	return b == BackendMiniaudio || b == BackendPortaudio
}

// MCPTransport selects how an MCP server is reached.
type MCPTransport string

const (
	TransportStdio          MCPTransport = "stdio"
	TransportStreamableHTTP MCPTransport = "streamable-http"
)

// IsValid reports whether t is a recognised MCP transport.
func (t MCPTransport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// Config is the root configuration structure for Luna. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Assistant AssistantConfig `yaml:"assistant"`
	Store     StoreConfig     `yaml:"store"`
	Commands  CommandsConfig  `yaml:"commands"`
	MCP       MCPConfig       `yaml:"mcp"`
	UI        UIConfig        `yaml:"ui"`
}

type LogConfig struct {
	// Level controls verbosity. Defaults to info.
	Level LogLevel `yaml:"level"`
}

type AudioConfig struct {
	// Backend selects the capture implementation. Defaults to miniaudio.
	Backend AudioBackend `yaml:"backend"`

	// SampleRate of the capture stream in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`
}

// ProvidersConfig declares the external speech and NLU endpoints.
type ProvidersConfig struct {
	Speech ProviderEntry `yaml:"speech"`
	NLU    ProviderEntry `yaml:"nlu"`
}

// ProviderEntry is the common configuration block shared by providers.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g. "deepgram", "openai").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider. Environment variables
	// (DEEPGRAM_API_KEY, OPENAI_API_KEY) take precedence when set.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model or voice within the provider.
	Model string `yaml:"model"`
}

// AssistantConfig tunes the turn lifecycle.
type AssistantConfig struct {
	// Voice is the synthesis voice model (e.g. "aura-2-thalia-en").
	Voice string `yaml:"voice"`

	// ApologyText is spoken when a turn fails without a recovery line.
	ApologyText string `yaml:"apology_text"`

	// OrbHideDelayMS delays hiding the orb after a turn ends.
	OrbHideDelayMS int `yaml:"orb_hide_delay_ms"`

	// SettleDelayMS is the pause between stopping capture and closing
	// the upload stream.
	SettleDelayMS int `yaml:"settle_delay_ms"`
}

type StoreConfig struct {
	// Path of the YAML settings file. Defaults to luna-settings.yaml in
	// the user config directory.
	Path string `yaml:"path"`
}

type CommandsConfig struct {
	Weather  WeatherConfig `yaml:"weather"`
	Launcher []LauncherApp `yaml:"launcher"`
}

type WeatherConfig struct {
	// BaseURL of the forecast service.
	BaseURL string `yaml:"base_url"`

	// Units is "metric" or "imperial". Defaults to metric.
	Units string `yaml:"units"`
}

// LauncherApp is one application the launch command may start. Only
// listed applications can be launched.
type LauncherApp struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes one external MCP server whose tools are
// imported as voice commands.
type MCPServerConfig struct {
	Name      string       `yaml:"name"`
	Transport MCPTransport `yaml:"transport"`

	// Command and Args start the server when transport is stdio.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// URL locates the server when transport is streamable-http.
	URL string `yaml:"url"`
}

type UIConfig struct {
	// Disabled turns the terminal status surface off (headless mode).
	Disabled bool `yaml:"disabled"`
}
