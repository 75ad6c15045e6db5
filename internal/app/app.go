// Package app wires the voicefill subsystems into a running HTTP server.
//
// The App struct owns the full lifecycle: New builds the form-filling
// service, health checks and routes from the config, Run serves them, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSTT, WithMetrics,
// WithGatherer). When an option is not provided, New uses the defaults.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicefill/internal/capture"
	"github.com/MrWong99/voicefill/internal/config"
	"github.com/MrWong99/voicefill/internal/formfill"
	"github.com/MrWong99/voicefill/internal/health"
	"github.com/MrWong99/voicefill/internal/observe"
	"github.com/MrWong99/voicefill/pkg/provider/stt"
	"github.com/MrWong99/voicefill/pkg/slotfill"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// selfTestTranscript is extracted by the readiness check.
const selfTestTranscript = "想去北京，大概玩5天"

// availability is implemented by STT providers that track backend health,
// such as resilience.STTFailover.
type availability interface {
	Available() bool
}

// App owns all subsystem lifetimes of the voicefill server.
type App struct {
	cfg *config.Config

	stt      stt.Provider
	sttName  string
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer

	svc     *formfill.Service
	handler http.Handler
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithSTT sets the speech-to-text provider used for captures. name labels
// provider metrics. Without it the /v1/capture endpoint is disabled.
func WithSTT(p stt.Provider, name string) Option {
	return func(a *App) {
		a.stt = p
		a.sttName = name
	}
}

// WithMetrics injects the metrics sink instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer sets the Prometheus gatherer served on /metrics. Default:
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithCloser registers fn to run during Shutdown, after the HTTP server has
// stopped.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App from cfg. cfg must already be validated.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}

	svcOpts := []formfill.Option{
		formfill.WithMetrics(a.metrics),
		formfill.WithCaptureConfig(CaptureConfig(cfg.Capture)),
	}
	if a.stt != nil {
		svcOpts = append(svcOpts, formfill.WithSTT(a.stt, a.sttName))
	}
	a.svc = formfill.New(svcOpts...)

	mux := http.NewServeMux()
	formfill.NewHandler(a.svc).Register(mux)
	health.New(a.checkers()).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return a, nil
}

// checkers builds the readiness checks. The stt check is only registered when
// a provider is configured.
func (a *App) checkers() []health.Checker {
	checks := []health.Checker{{
		Name: "extractor",
		Check: func(context.Context) error {
			if v, _ := slotfill.Extract(selfTestTranscript).Get(slotfill.Destination); v != "北京" {
				return fmt.Errorf("self-test extracted destination %q", v)
			}
			return nil
		},
	}}
	if a.stt != nil {
		checks = append(checks, health.Checker{
			Name: "stt",
			Check: func(context.Context) error {
				if av, ok := a.stt.(availability); ok && !av.Available() {
					return errors.New("all stt providers have open circuits")
				}
				return nil
			},
		})
	}
	return checks
}

// Handler returns the root HTTP handler with middleware applied.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Service returns the form-filling service.
func (a *App) Service() *formfill.Service {
	return a.svc
}

// CaptureConfig converts the capture config section into capture settings.
func CaptureConfig(c config.CaptureConfig) capture.Config {
	keywords := make([]stt.KeywordBoost, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		keywords = append(keywords, stt.KeywordBoost{Keyword: k.Word, Boost: k.Boost})
	}
	return capture.Config{
		Stream: stt.StreamConfig{
			SampleRate: c.SampleRate,
			Channels:   c.Channels,
			Language:   c.Language,
			Keywords:   keywords,
		},
		MaxDuration:     c.MaxDuration,
		SingleUtterance: c.SingleUtterance,
	}
}

// ApplyConfig applies the hot-reloadable parts of a changed config. It is
// meant as the onChange callback of a [config.Watcher]. Settings that need a
// restart are logged and otherwise ignored.
func (a *App) ApplyConfig(old, new *config.Config) config.ConfigDiff {
	d := config.Diff(old, new)
	if d.CaptureChanged {
		a.svc.SetCaptureConfig(CaptureConfig(new.Capture))
		slog.Info("capture settings reloaded",
			"language", new.Capture.Language,
			"keywords_changed", d.KeywordsChanged,
		)
	}
	if d.RestartRequired {
		slog.Warn("config changes require a restart to take effect")
	}
	return d
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts the server down
// gracefully. It returns nil after a clean shutdown.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("http server listening", "addr", ln.Addr().String(), "capture", a.svc.CaptureEnabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	return g.Wait()
}

// Shutdown stops the HTTP server and runs the registered closers. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
