package config

import "slices"

// ConfigDiff describes what changed between two configs. Only settings that
// can be applied without a restart are tracked; everything else is reported
// through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CaptureChanged is true when any capture setting differs. New captures
	// pick up the new section; running captures keep the old one.
	CaptureChanged  bool
	KeywordsChanged bool

	// RestartRequired is true when the listen address, log file, telemetry
	// or provider settings changed.
	RestartRequired bool
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CaptureChanged || d.RestartRequired
}

// Diff compares old and new configs.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oc, nc := old.Capture, new.Capture
	d.KeywordsChanged = !slices.Equal(oc.Keywords, nc.Keywords)
	d.CaptureChanged = d.KeywordsChanged ||
		oc.Language != nc.Language ||
		oc.SampleRate != nc.SampleRate ||
		oc.Channels != nc.Channels ||
		oc.MaxDuration != nc.MaxDuration ||
		oc.SingleUtterance != nc.SingleUtterance

	d.RestartRequired = old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.LogFile != new.Server.LogFile ||
		old.Telemetry != new.Telemetry ||
		!providerEqual(old.Providers.STT, new.Providers.STT) ||
		!slices.EqualFunc(old.Providers.STTFallbacks, new.Providers.STTFallbacks, providerEqual)

	return d
}

// providerEqual compares the scalar fields of two entries. Options are not
// compared.
func providerEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
