package resilience

import (
	"context"
	"log/slog"

	"github.com/MrWong99/voicefill/pkg/provider/stt"
)

// STTFailover implements [stt.Provider] with automatic failover across
// several STT backends. Each backend has its own circuit breaker.
type STTFailover struct {
	group   *FallbackGroup[stt.Provider]
	primary string
}

var _ stt.Provider = (*STTFailover)(nil)

// NewSTTFailover creates an [STTFailover] with primary as the preferred
// backend.
func NewSTTFailover(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFailover {
	return &STTFailover{
		group:   NewFallbackGroup(primary, primaryName, cfg),
		primary: primaryName,
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFailover) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens a session against the first healthy provider.
func (f *STTFailover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	h, name, err := Try(ctx, f.group, func(ctx context.Context, p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	if name != f.primary {
		slog.Info("stt: stream served by fallback", "provider", name)
	}
	return h, nil
}

// Available reports whether any backend's breaker is not open.
func (f *STTFailover) Available() bool {
	return f.group.Available()
}

// Status returns the breaker state of every backend.
func (f *STTFailover) Status() []EntryStatus {
	return f.group.Status()
}
