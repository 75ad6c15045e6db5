package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voicefill/internal/app"
	"github.com/MrWong99/voicefill/internal/config"
	"github.com/MrWong99/voicefill/internal/observe"
	sttmock "github.com/MrWong99/voicefill/pkg/provider/stt/mock"
)

// testConfig returns a defaulted config listening on an ephemeral port.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// unavailableSTT reports every backend circuit as open.
type unavailableSTT struct {
	sttmock.Provider
}

func (*unavailableSTT) Available() bool { return false }

// serve starts application on an ephemeral port and returns its base URL.
// The server is stopped when the test ends.
func serve(t *testing.T, application *app.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- application.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Serve() returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve() did not return within 5s after cancellation")
		}
	})
	return "http://" + ln.Addr().String()
}

func getStatus(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	if _, err := app.New(nil); err == nil {
		t.Error("New(nil) returned nil error")
	}
}

func TestApp_Routes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "voicefill_test_total"}))

	application, err := app.New(testConfig(),
		app.WithMetrics(testMetrics(t)),
		app.WithGatherer(reg),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	base := serve(t, application)

	if code, _ := getStatus(t, base+"/healthz"); code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", code)
	}

	code, body := getStatus(t, base+"/readyz")
	if code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200; body %s", code, body)
	}
	if strings.Contains(body, `"stt"`) {
		t.Errorf("/readyz reports an stt check without a provider: %s", body)
	}

	code, body = getStatus(t, base+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "voicefill_test_total") {
		t.Errorf("/metrics = %d %q, want 200 with the registered counter", code, body)
	}

	resp, err := http.Post(base+"/v1/extract", "application/json",
		strings.NewReader(`{"transcript":"预算5万元"}`))
	if err != nil {
		t.Fatalf("POST /v1/extract: %v", err)
	}
	defer resp.Body.Close()
	var got struct {
		Patch map[string]string `json:"patch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Patch["budget"] != "50000" {
		t.Errorf("patch = %v, want budget 50000", got.Patch)
	}
}

func TestApp_ReadyzSTTUnavailable(t *testing.T) {
	t.Parallel()

	application, err := app.New(testConfig(),
		app.WithMetrics(testMetrics(t)),
		app.WithGatherer(prometheus.NewRegistry()),
		app.WithSTT(&unavailableSTT{}, "deepgram"),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if !application.Service().CaptureEnabled() {
		t.Fatal("capture disabled despite an stt provider")
	}
	base := serve(t, application)

	code, body := getStatus(t, base+"/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503; body %s", code, body)
	}
	if !strings.Contains(body, `"stt"`) {
		t.Errorf("/readyz body lacks the stt check: %s", body)
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()

	old := testConfig()
	application, err := app.New(old, app.WithMetrics(testMetrics(t)), app.WithGatherer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	next := testConfig()
	next.Capture.Language = "en-US"
	next.Capture.Keywords = []config.KeywordConfig{{Word: "大理", Boost: 2}}
	next.Server.ListenAddr = "127.0.0.1:9999"

	d := application.ApplyConfig(old, next)
	if !d.CaptureChanged || !d.KeywordsChanged || !d.RestartRequired {
		t.Errorf("diff = %+v, want capture, keyword and restart changes", d)
	}

	cc := application.Service().CaptureConfig()
	if cc.Stream.Language != "en-US" {
		t.Errorf("capture language = %q, want en-US", cc.Stream.Language)
	}
	if len(cc.Stream.Keywords) != 1 || cc.Stream.Keywords[0].Keyword != "大理" || cc.Stream.Keywords[0].Boost != 2 {
		t.Errorf("capture keywords = %+v", cc.Stream.Keywords)
	}
}

func TestCaptureConfig(t *testing.T) {
	t.Parallel()

	cc := app.CaptureConfig(config.CaptureConfig{
		Language:        "zh-CN",
		SampleRate:      16000,
		Channels:        1,
		MaxDuration:     30 * time.Second,
		SingleUtterance: true,
	})
	if cc.Stream.SampleRate != 16000 || cc.Stream.Channels != 1 || cc.Stream.Language != "zh-CN" {
		t.Errorf("stream = %+v", cc.Stream)
	}
	if cc.MaxDuration != 30*time.Second || !cc.SingleUtterance {
		t.Errorf("capture = %+v", cc)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	var closed int
	application, err := app.New(testConfig(),
		app.WithMetrics(testMetrics(t)),
		app.WithGatherer(prometheus.NewRegistry()),
		app.WithCloser(func() error { closed++; return nil }),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
	if closed != 1 {
		t.Errorf("closer ran %d times, want 1", closed)
	}
}

func TestApp_RunAndCancel(t *testing.T) {
	t.Parallel()

	application, err := app.New(testConfig(), app.WithMetrics(testMetrics(t)), app.WithGatherer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}
}
