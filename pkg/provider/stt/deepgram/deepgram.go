// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. It implements the stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicefill/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-2"
	defaultSampleRate = 16000

	// Deepgram drops a stream that sees neither audio nor a KeepAlive for
	// ten seconds.
	keepAliveInterval = 8 * time.Second

	// closeTimeout bounds how long Close waits for the last results after
	// CloseStream.
	closeTimeout = 5 * time.Second
)

// ErrSessionClosed is returned by SendAudio after the session has been closed.
var ErrSessionClosed = errors.New("deepgram: session is closed")

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the provider-level recognition language. A non-empty
// StreamConfig.Language takes precedence.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpointing sets how long Deepgram waits after speech stops before it
// finalises an utterance. Zero leaves the server default.
func WithEndpointing(d time.Duration) Option {
	return func(p *Provider) {
		p.endpointing = d
	}
}

// WithEndpoint overrides the streaming endpoint URL. Used to point the
// provider at a local test server.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	sampleRate  int
	endpointing time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   deepgramEndpoint,
		model:      defaultModel,
		language:   stt.DefaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	// The session outlives the dial context; Close ends it.
	sessCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{
		conn:     conn,
		stop:     stop,
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		audio:    make(chan []byte, 256),
		closing:  make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.receive(sessCtx)
	go sess.send(sessCtx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if p.endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(p.endpointing.Milliseconds(), 10))
	}

	for _, kw := range cfg.Keywords {
		if kw.Boost == 0 {
			q.Add("keywords", kw.Keyword)
			continue
		}
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// listenResult is the subset of a Deepgram "Results" message that is used.
type listenResult struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram stream. One goroutine owns all writes to conn
// so that pending audio always precedes CloseStream.
type session struct {
	conn     *websocket.Conn
	stop     context.CancelFunc
	partials chan stt.Transcript
	finals   chan stt.Transcript
	audio    chan []byte

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// SendAudio queues a PCM chunk for the sender.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.closing:
		return ErrSessionClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.closing:
		return ErrSessionClosed
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords always fails: Deepgram reads keywords from the connection URL
// only.
func (s *session) SetKeywords([]stt.KeywordBoost) error {
	return fmt.Errorf("deepgram: set keywords: %w", stt.ErrNotSupported)
}

// Close sends the queued audio, asks Deepgram to finalise and waits up to
// closeTimeout for the remaining results to reach Finals.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		timer := time.AfterFunc(closeTimeout, s.stop)
		s.wg.Wait()
		timer.Stop()
		s.stop()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

func (s *session) send(ctx context.Context) {
	defer s.wg.Done()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
			keepAlive.Reset(keepAliveInterval)
		case <-keepAlive.C:
			if err := s.control(ctx, "KeepAlive"); err != nil {
				return
			}
		case <-s.closing:
			for {
				select {
				case chunk := <-s.audio:
					if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
						return
					}
				default:
					_ = s.control(ctx, "CloseStream")
					return
				}
			}
		}
	}
}

func (s *session) control(ctx context.Context, typ string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"`+typ+`"}`))
}

// receive dispatches results until Deepgram closes the stream. Finals block
// until read; partials are dropped when nobody is reading them.
func (s *session) receive(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		t, ok := parseResult(msg)
		if !ok {
			continue
		}
		if !t.IsFinal {
			select {
			case s.partials <- t:
			default:
			}
			continue
		}
		select {
		case s.finals <- t:
		case <-ctx.Done():
			return
		}
	}
}

// parseResult converts a Results message. Other message types, malformed
// JSON and results without alternatives report false.
func parseResult(data []byte) (stt.Transcript, bool) {
	var res listenResult
	if err := json.Unmarshal(data, &res); err != nil || res.Type != "Results" {
		return stt.Transcript{}, false
	}
	if len(res.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}

	alt := res.Channel.Alternatives[0]
	t := stt.Transcript{
		Text:       joinHan(alt.Transcript),
		IsFinal:    res.IsFinal,
		Confidence: alt.Confidence,
		Timestamp:  seconds(res.Start),
		Duration:   seconds(res.Duration),
	}
	for _, w := range alt.Words {
		t.Words = append(t.Words, stt.WordDetail{
			Word:       w.Word,
			Start:      seconds(w.Start),
			End:        seconds(w.End),
			Confidence: w.Confidence,
		})
	}
	return t, true
}

// joinHan removes the spaces Deepgram puts between the words of a Chinese
// transcript. A space survives unless both neighbours are dense, i.e. Han,
// CJK punctuation or digits.
func joinHan(s string) string {
	if !strings.Contains(s, " ") {
		return s
	}
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range rs {
		if r == ' ' && i > 0 && i+1 < len(rs) && dense(rs[i-1]) && dense(rs[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func dense(r rune) bool {
	switch {
	case unicode.Is(unicode.Han, r), unicode.IsDigit(r):
		return true
	case r >= 0x3000 && r <= 0x303F, r >= 0xFF00 && r <= 0xFFEF:
		return true
	}
	return false
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
