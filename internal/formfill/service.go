// Package formfill is the application service that turns transcripts into
// travel-plan form updates. It wraps the slot extractor with tracing,
// metrics and logging, and drives speech captures over a configured STT
// provider.
package formfill

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voicefill/internal/capture"
	"github.com/MrWong99/voicefill/internal/observe"
	"github.com/MrWong99/voicefill/pkg/provider/stt"
	"github.com/MrWong99/voicefill/pkg/slotfill"
)

// ErrNoSTT is returned by [Service.StartCapture] when no STT provider is
// configured.
var ErrNoSTT = errors.New("formfill: no speech-to-text provider configured")

// Filled is the outcome of one extraction applied to a form.
type Filled struct {
	// Patch holds only the slots that matched.
	Patch slotfill.Patch

	// Form is the input form with Patch applied.
	Form slotfill.FormState

	// Results explains every slot, matched or not.
	Results []slotfill.Result
}

// Option configures a [Service].
type Option func(*Service)

// WithExtractor replaces the default extractor.
func WithExtractor(e *slotfill.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSTT enables speech capture over provider. name labels provider metrics.
func WithSTT(provider stt.Provider, name string) Option {
	return func(s *Service) {
		s.stt = provider
		s.sttName = name
	}
}

// WithCaptureConfig sets the initial capture settings.
func WithCaptureConfig(cfg capture.Config) Option {
	return func(s *Service) { s.captureCfg.Store(&cfg) }
}

// Service fills forms from transcripts and speech. It is safe for concurrent
// use.
type Service struct {
	extractor  *slotfill.Extractor
	metrics    *observe.Metrics
	stt        stt.Provider
	sttName    string
	captureCfg atomic.Pointer[capture.Config]
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{}
	s.captureCfg.Store(&capture.Config{})
	for _, o := range opts {
		o(s)
	}
	if s.extractor == nil {
		s.extractor = slotfill.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Fill extracts a patch from transcript and applies it to form. form is
// taken by value; the caller's copy is not modified.
func (s *Service) Fill(ctx context.Context, transcript string, form slotfill.FormState) Filled {
	ctx, span := observe.StartSpan(ctx, "formfill.Fill",
		trace.WithAttributes(attribute.Int("transcript.runes", len([]rune(transcript)))))
	defer span.End()

	start := time.Now()
	results := s.extractor.Explain(transcript)
	s.metrics.RecordExtraction(ctx, time.Since(start))

	for _, r := range results {
		s.metrics.RecordSlot(ctx, r.Slot.String(), r.Value.IsMatch(), r.Source)
	}
	patch := slotfill.PatchOf(results)
	form.Apply(patch)

	span.SetAttributes(attribute.Int("patch.slots", patch.Len()))
	observe.Logger(ctx).Debug("transcript extracted",
		"transcript", transcript,
		"patch", patch.Map(),
	)
	return Filled{Patch: patch, Form: form, Results: results}
}

// SetCaptureConfig replaces the settings used by captures started after the
// call. Running captures keep their settings.
func (s *Service) SetCaptureConfig(cfg capture.Config) {
	s.captureCfg.Store(&cfg)
}

// CaptureConfig returns the current capture settings.
func (s *Service) CaptureConfig() capture.Config {
	return *s.captureCfg.Load()
}

// CaptureEnabled reports whether an STT provider is configured.
func (s *Service) CaptureEnabled() bool {
	return s.stt != nil
}

// Capture is one running speech capture started by [Service.StartCapture].
type Capture struct {
	*capture.Session

	// ID identifies the capture in logs and client messages.
	ID string

	svc     *Service
	span    trace.Span
	started time.Time
}

// StartCapture opens an STT stream and begins a capture. The caller must
// consume [Capture.Done] or call [Capture.Finish].
func (s *Service) StartCapture(ctx context.Context) (*Capture, error) {
	if s.stt == nil {
		return nil, ErrNoSTT
	}
	id := uuid.NewString()
	ctx, span := observe.StartSpan(ctx, "formfill.Capture",
		trace.WithAttributes(
			attribute.String("capture.session_id", id),
			attribute.String("stt.provider", s.sttName),
		))

	sess := capture.New(s.stt, s.CaptureConfig())
	if err := sess.StartCapture(ctx); err != nil {
		s.metrics.RecordProviderRequest(ctx, s.sttName, "error")
		s.metrics.RecordProviderError(ctx, s.sttName)
		observe.FailSpan(span, err)
		span.End()
		return nil, err
	}
	s.metrics.RecordProviderRequest(ctx, s.sttName, "ok")
	s.metrics.ActiveCaptures.Add(ctx, 1)

	c := &Capture{Session: sess, ID: id, svc: s, span: span, started: time.Now()}
	observe.Logger(ctx).Info("capture started", "session_id", id)
	return c, nil
}

// Finish records the outcome of a capture result and, on success, fills form
// from the transcript.
func (c *Capture) Finish(ctx context.Context, res capture.Result, form slotfill.FormState) (Filled, error) {
	s := c.svc
	ctx = trace.ContextWithSpan(ctx, c.span)
	defer c.span.End()
	s.metrics.ActiveCaptures.Add(ctx, -1)

	status := "ok"
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, capture.ErrNoSpeech):
		status = "no_speech"
	case errors.Is(res.Err, context.Canceled):
		status = "cancelled"
	default:
		status = "error"
	}
	s.metrics.RecordCapture(ctx, status, time.Since(c.started))
	c.span.SetAttributes(attribute.String("capture.status", status))
	if status == "error" {
		observe.FailSpan(c.span, res.Err)
	}
	observe.Logger(ctx).Info("capture finished",
		"session_id", c.ID,
		"status", status,
		"duration", time.Since(c.started),
	)
	if res.Err != nil {
		return Filled{Form: form}, res.Err
	}
	return s.Fill(ctx, res.Transcript, form), nil
}
