package formfill

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicefill/internal/capture"
	sttmock "github.com/MrWong99/voicefill/pkg/provider/stt/mock"
	"github.com/MrWong99/voicefill/pkg/slotfill"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	metrics, _ := newTestMetrics(t)
	svc := New(append([]Option{WithMetrics(metrics)}, opts...)...)
	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_Extract(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	body := `{"transcript":"想去北京，大概玩5天","form":{"people":"3"}}`
	resp, err := http.Post(srv.URL+"/v1/extract", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got ExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := slotfill.FormState{Destination: "北京", Days: "5", People: "3"}
	if got.Form != want {
		t.Errorf("form = %+v, want %+v", got.Form, want)
	}
	if v, _ := got.Patch.Get(slotfill.People); v != "" {
		t.Errorf("patch carries people = %q", v)
	}
	if len(got.Explain) != len(slotfill.Slots()) {
		t.Fatalf("explain has %d entries", len(got.Explain))
	}
	for _, e := range got.Explain {
		if e.Slot == "destination" && (!e.Match || e.Source == "") {
			t.Errorf("destination explanation = %+v, want a match with a source", e)
		}
		if e.Slot == "budget" && e.Match {
			t.Errorf("budget explanation = %+v, want no match", e)
		}
	}
}

func TestHandler_ExtractBadRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	tests := map[string]string{
		"malformed":     `{"transcript":`,
		"unknown field": `{"text":"想去北京"}`,
		"unknown slot":  `{"transcript":"x","form":{"hotel":"y"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/extract", "application/json", bytes.NewBufferString(body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestHandler_ExtractMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/extract")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/capture"
	if query != "" {
		u += "?" + query
	}
	return u
}

func TestHandler_CaptureWithoutSTT(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	_, _, err = conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusPolicyViolation {
		t.Errorf("close status = %v (err %v), want policy violation", got, err)
	}
}

func TestHandler_CaptureStop(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession("想去北京，", "预算3000元")

	srv := newTestServer(t,
		WithSTT(&sttmock.Provider{Session: sess}, "mock"),
		WithCaptureConfig(capture.Config{DrainTimeout: 50 * time.Millisecond}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	form := url.Values{"form": {`{"days":"9"}`}}.Encode()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, form), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	var started captureMessage
	if err := wsjson.Read(ctx, conn, &started); err != nil {
		t.Fatalf("read started: %v", err)
	}
	if started.Type != "started" || started.SessionID == "" {
		t.Fatalf("first message = %+v, want started with a session id", started)
	}

	if err := conn.Write(ctx, websocket.MessageBinary, make([]byte, 640)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := wsjson.Write(ctx, conn, captureMessage{Type: "stop"}); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	var result captureMessage
	if err := wsjson.Read(ctx, conn, &result); err != nil {
		t.Fatalf("read result: %v", err)
	}
	if result.Type != "result" {
		t.Fatalf("message = %+v, want result", result)
	}
	if result.Transcript != "想去北京，预算3000元" {
		t.Errorf("transcript = %q", result.Transcript)
	}
	want := slotfill.FormState{Destination: "北京", Days: "9", Budget: "3000"}
	if result.Form == nil || *result.Form != want {
		t.Errorf("form = %+v, want %+v", result.Form, want)
	}
	if n := sess.SendAudioCallCount(); n != 1 {
		t.Errorf("SendAudio calls = %d, want 1", n)
	}
	if n := sess.AudioBytes(); n != 640 {
		t.Errorf("audio bytes = %d, want 640", n)
	}
}

func TestHandler_CaptureNoSpeech(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession()
	sess.End()

	srv := newTestServer(t, WithSTT(&sttmock.Provider{Session: sess}, "mock"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	var msgs []captureMessage
	for range 2 {
		var m captureMessage
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			t.Fatalf("read: %v", err)
		}
		msgs = append(msgs, m)
	}
	if msgs[0].Type != "started" {
		t.Errorf("first message = %+v, want started", msgs[0])
	}
	if msgs[1].Type != "error" || msgs[1].Message != capture.ErrNoSpeech.Error() {
		t.Errorf("second message = %+v, want no-speech error", msgs[1])
	}
}

func TestHandler_CaptureBadForm(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, WithSTT(&sttmock.Provider{}, "mock"))
	resp, err := http.Get(srv.URL + "/v1/capture?form=" + url.QueryEscape("{"))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
