package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the STT provider names known to this build. Used
// by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{"deepgram"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// from the environment, applies defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	errs = append(errs, validateProvider("providers.stt", cfg.Providers.STT)...)
	if cfg.Providers.STT.Name == "" && len(cfg.Providers.STTFallbacks) > 0 {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt to be set"))
	}
	seen := map[string]string{cfg.Providers.STT.Name: "providers.stt"}
	for i, fb := range cfg.Providers.STTFallbacks {
		prefix := fmt.Sprintf("providers.stt_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		errs = append(errs, validateProvider(prefix, fb)...)
		if prev, ok := seen[fb.Name]; ok && fb.Model == "" {
			slog.Warn("STT fallback repeats a provider without a distinct model",
				"fallback", prefix, "same_as", prev)
		}
		seen[fb.Name] = prefix
	}

	c := cfg.Capture
	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", c.SampleRate))
	}
	if c.Channels < 0 || c.Channels > 2 {
		errs = append(errs, fmt.Errorf("capture.channels %d is out of range [1, 2]", c.Channels))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("capture.max_duration %s must not be negative", c.MaxDuration))
	}
	for i, kw := range c.Keywords {
		if kw.Word == "" {
			errs = append(errs, fmt.Errorf("capture.keywords[%d].word is required", i))
		}
	}

	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %g is out of range [0, 1]", r))
	}

	return errors.Join(errs...)
}

func validateProvider(prefix string, e ProviderEntry) []error {
	if e.Name == "" {
		return nil
	}
	var errs []error
	if e.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
	}
	if !slices.Contains(ValidProviderNames, e.Name) {
		slog.Warn("unknown provider name; may be a typo or third-party provider",
			"field", prefix,
			"name", e.Name,
			"known", ValidProviderNames,
		)
	}
	return errs
}
