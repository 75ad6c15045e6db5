// Package capture turns a stream of microphone audio into one finished
// transcript.
//
// A [Session] opens a streaming session on an [stt.Provider], forwards audio
// written by the caller and collects final transcripts. Interim results are
// drained and dropped. The capture ends when the caller stops it, when the
// first final arrives in single-utterance mode, when the maximum duration
// elapses or when the provider closes the stream. The collected finals are
// joined into one transcript and delivered on [Session.Done].
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/MrWong99/voicefill/pkg/provider/stt"
)

var (
	// ErrNoSpeech is reported when a capture ends without any final
	// transcript text.
	ErrNoSpeech = errors.New("capture: no speech recognised")

	// ErrAlreadyStarted is returned by StartCapture on a session that has
	// already been started.
	ErrAlreadyStarted = errors.New("capture: already started")

	// ErrNotStarted is returned by Write and StopCapture before StartCapture.
	ErrNotStarted = errors.New("capture: not started")
)

const defaultDrainTimeout = 2 * time.Second

// Result is the outcome of one capture. Exactly one of Transcript and Err is
// meaningful.
type Result struct {
	Transcript string
	Err        error
}

// Capturer is a one-shot speech capture.
type Capturer interface {
	// StartCapture begins listening. It fails if the speech backend cannot
	// open a session.
	StartCapture(ctx context.Context) error

	// StopCapture ends listening. Finals still in flight are collected
	// before the result is delivered.
	StopCapture() error

	// Done delivers exactly one Result and is then closed.
	Done() <-chan Result
}

// Config tunes a capture session.
type Config struct {
	// Stream is passed to the provider when the session opens.
	Stream stt.StreamConfig

	// MaxDuration bounds the capture. Zero means no limit.
	MaxDuration time.Duration

	// SingleUtterance ends the capture on the first non-empty final.
	SingleUtterance bool

	// DrainTimeout bounds how long a stopped capture waits for the provider
	// to flush its remaining finals. Default: 2s.
	DrainTimeout time.Duration
}

// Session is a [Capturer] backed by an [stt.Provider]. A Session captures
// once; create a new one for every utterance.
type Session struct {
	provider stt.Provider
	cfg      Config

	mu     sync.Mutex
	handle stt.SessionHandle

	stop     chan struct{}
	stopOnce sync.Once
	done     chan Result
}

var _ Capturer = (*Session)(nil)

// New creates a capture session over provider.
func New(provider stt.Provider, cfg Config) *Session {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Stream.Language == "" {
		cfg.Stream.Language = stt.DefaultLanguage
	}
	return &Session{
		provider: provider,
		cfg:      cfg,
		stop:     make(chan struct{}),
		done:     make(chan Result, 1),
	}
}

// StartCapture opens the provider stream and starts collecting finals in the
// background. Cancelling ctx aborts the capture.
func (s *Session) StartCapture(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return ErrAlreadyStarted
	}
	h, err := s.provider.StartStream(ctx, s.cfg.Stream)
	if err != nil {
		return fmt.Errorf("capture: start stream: %w", err)
	}
	s.handle = h
	go s.run(ctx, h)
	return nil
}

// Write forwards one chunk of PCM audio to the provider.
func (s *Session) Write(chunk []byte) error {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return ErrNotStarted
	}
	return h.SendAudio(chunk)
}

// StopCapture asks the session to finish. It is safe to call more than once.
func (s *Session) StopCapture() error {
	s.mu.Lock()
	started := s.handle != nil
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Done returns the channel that delivers the capture's Result.
func (s *Session) Done() <-chan Result {
	return s.done
}

func (s *Session) run(ctx context.Context, h stt.SessionHandle) {
	var finals []string
	deliver := func(r Result) {
		s.done <- r
		close(s.done)
	}
	defer func() {
		if err := h.Close(); err != nil {
			slog.Debug("capture: close stt session", "err", err)
		}
	}()

	var deadline <-chan time.Time
	if s.cfg.MaxDuration > 0 {
		timer := time.NewTimer(s.cfg.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	partials, finalsCh := h.Partials(), h.Finals()
	for {
		select {
		case <-ctx.Done():
			deliver(Result{Err: ctx.Err()})
			return

		case _, ok := <-partials:
			if !ok {
				partials = nil
			}

		case t, ok := <-finalsCh:
			if !ok {
				deliver(finish(finals))
				return
			}
			if strings.TrimSpace(t.Text) == "" {
				continue
			}
			finals = append(finals, t.Text)
			if s.cfg.SingleUtterance {
				deliver(finish(finals))
				return
			}

		case <-deadline:
			slog.Debug("capture: max duration reached", "max_duration", s.cfg.MaxDuration)
			deliver(finish(s.drain(ctx, h, finals)))
			return

		case <-s.stop:
			deliver(finish(s.drain(ctx, h, finals)))
			return
		}
	}
}

// drain closes the provider session and collects the finals it flushes
// until the finals channel closes or the drain timeout elapses.
func (s *Session) drain(ctx context.Context, h stt.SessionHandle, finals []string) []string {
	go func() {
		if err := h.Close(); err != nil {
			slog.Debug("capture: close stt session", "err", err)
		}
	}()

	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()

	partials, finalsCh := h.Partials(), h.Finals()
	for {
		select {
		case <-ctx.Done():
			return finals
		case <-timer.C:
			return finals
		case _, ok := <-partials:
			if !ok {
				partials = nil
			}
		case t, ok := <-finalsCh:
			if !ok {
				return finals
			}
			if strings.TrimSpace(t.Text) != "" {
				finals = append(finals, t.Text)
			}
		}
	}
}

func finish(finals []string) Result {
	text := JoinFinals(finals)
	if text == "" {
		return Result{Err: ErrNoSpeech}
	}
	return Result{Transcript: text}
}

// JoinFinals concatenates final transcripts into one. Whitespace next to a
// Han character or CJK punctuation is removed; other whitespace runs collapse
// to a single space.
func JoinFinals(finals []string) string {
	runes := []rune(strings.Join(finals, " "))
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if i > 0 && j < len(runes) && !isCJK(runes[i-1]) && !isCJK(runes[j]) {
			b.WriteByte(' ')
		}
		i = j - 1
	}
	return b.String()
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK symbols and punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // full-width forms
}
