// Package config provides the configuration schema, loader, hot-reload
// watcher and STT provider registry for the voicefill server.
package config

import "time"

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

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Capture   CaptureConfig   `yaml:"capture"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, additionally writes logs to a size-rotated file.
	LogFile string `yaml:"log_file"`
}

// ProvidersConfig selects the speech-to-text backends.
type ProvidersConfig struct {
	// STT is the primary speech-to-text backend. An empty name disables
	// the /v1/capture endpoint; text extraction keeps working.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary fails to open a
	// stream or its circuit breaker is open.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the configuration block shared by all STT backends. Name
// is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation, e.g. "deepgram".
	Name string `yaml:"name"`

	// APIKey authenticates against the provider's API. Use ${VAR} to read
	// it from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific recognition model, e.g. "nova-2".
	Model string `yaml:"model"`

	// Options holds provider-specific settings not covered above.
	Options map[string]any `yaml:"options"`
}

// CaptureConfig tunes speech capture sessions. The section is hot-reloadable.
type CaptureConfig struct {
	// Language is the BCP-47 recognition language. Default "zh-CN".
	Language string `yaml:"language"`

	// SampleRate of the PCM audio sent by clients, in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels of the PCM audio sent by clients. Default 1.
	Channels int `yaml:"channels"`

	// MaxDuration bounds a single capture. Default 60s.
	MaxDuration time.Duration `yaml:"max_duration"`

	// SingleUtterance ends a capture at the first final transcript.
	SingleUtterance bool `yaml:"single_utterance"`

	// Keywords are recognition hints, typically destination names.
	Keywords []KeywordConfig `yaml:"keywords"`
}

// KeywordConfig is one recognition hint.
type KeywordConfig struct {
	Word  string  `yaml:"word"`
	Boost float64 `yaml:"boost"`
}

// TelemetryConfig configures OpenTelemetry resource attributes and sampling.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default "voicefill".
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of request traces kept, in [0, 1].
	// Zero keeps all of them.
	SampleRatio float64 `yaml:"sample_ratio"`
}

const (
	defaultListenAddr  = ":8080"
	defaultLanguage    = "zh-CN"
	defaultSampleRate  = 16000
	defaultChannels    = 1
	defaultMaxDuration = 60 * time.Second
	defaultServiceName = "voicefill"
)

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Capture.Language == "" {
		c.Capture.Language = defaultLanguage
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = defaultSampleRate
	}
	if c.Capture.Channels == 0 {
		c.Capture.Channels = defaultChannels
	}
	if c.Capture.MaxDuration == 0 {
		c.Capture.MaxDuration = defaultMaxDuration
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
}

// Default returns a Config with every default applied and no STT provider.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
