// Package mock provides scripted test doubles for the stt package.
//
// A Session plays back transcripts queued on its channels, so a test can
// describe what the "recogniser heard" up front:
//
//	sess := mock.NewSession("想去北京，", "预算3000元")
//	sess.End() // no more finals; consumers see the channel close
//	p := &mock.Provider{Session: sess}
//
// Provider records every StartStream call for assertions on the
// [stt.StreamConfig] a caller derived from its settings.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicefill/pkg/provider/stt"
)

// queueSize is the buffer of channels created by NewSession and by Provider
// when no Session is set.
const queueSize = 16

// StartStreamCall records one invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a scripted [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// Session is returned by StartStream. When nil, each call gets a fresh
	// empty Session.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, makes StartStream fail.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream. Read it through
	// Calls when the provider may still be in use.
	StartStreamCalls []StartStreamCall
}

var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns Session or StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Calls returns a copy of the recorded StartStream calls.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StartStreamCall(nil), p.StartStreamCalls...)
}

// Session is a scripted [stt.SessionHandle]. Tests push transcripts onto
// PartialsCh and FinalsCh (directly or through Emit) and close FinalsCh to
// signal the end of recognition.
type Session struct {
	mu sync.Mutex

	// PartialsCh is returned by Partials.
	PartialsCh chan stt.Transcript

	// FinalsCh is returned by Finals.
	FinalsCh chan stt.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// SetKeywordsErr, if non-nil, is returned by every SetKeywords call.
	SetKeywordsErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	audio    [][]byte
	keywords [][]stt.KeywordBoost
	closes   int

	endOnce sync.Once
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession returns a Session with buffered channels and finals already
// queued, in order.
func NewSession(finals ...string) *Session {
	s := &Session{
		PartialsCh: make(chan stt.Transcript, queueSize),
		FinalsCh:   make(chan stt.Transcript, max(queueSize, len(finals))),
	}
	for _, f := range finals {
		s.FinalsCh <- stt.Transcript{Text: f, IsFinal: true, Confidence: 1}
	}
	return s
}

// Emit queues a transcript on the partials or finals channel. It blocks when
// the channel is full.
func (s *Session) Emit(text string, final bool) {
	t := stt.Transcript{Text: text, IsFinal: final, Confidence: 1}
	if final {
		s.FinalsCh <- t
		return
	}
	s.PartialsCh <- t
}

// End closes FinalsCh. It is safe to call more than once but must not be
// combined with closing FinalsCh directly.
func (s *Session) End() {
	s.endOnce.Do(func() { close(s.FinalsCh) })
}

// SendAudio copies and records chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, append([]byte(nil), chunk...))
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan stt.Transcript { return s.PartialsCh }

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan stt.Transcript { return s.FinalsCh }

// SetKeywords records keywords and returns SetKeywordsErr.
func (s *Session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = append(s.keywords, append([]stt.KeywordBoost(nil), keywords...))
	return s.SetKeywordsErr
}

// Close counts the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.CloseErr
}

// SendAudioCallCount returns the number of SendAudio calls.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audio)
}

// AudioBytes returns the total number of audio bytes received.
func (s *Session) AudioBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.audio {
		n += len(c)
	}
	return n
}

// KeywordUpdates returns every keyword list passed to SetKeywords.
func (s *Session) KeywordUpdates() [][]stt.KeywordBoost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]stt.KeywordBoost(nil), s.keywords...)
}

// Closed reports how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
