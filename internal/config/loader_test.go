package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicefill/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Capture.Language != "zh-CN" || cfg.Capture.SampleRate != 16000 || cfg.Capture.Channels != 1 {
		t.Errorf("capture = %+v, want zh-CN/16000/1", cfg.Capture)
	}
	if cfg.Capture.MaxDuration != time.Minute {
		t.Errorf("max_duration = %v, want 1m", cfg.Capture.MaxDuration)
	}
	if cfg.Telemetry.ServiceName != "voicefill" {
		t.Errorf("service_name = %q, want voicefill", cfg.Telemetry.ServiceName)
	}
	if cfg.Providers.STT.Name != "" {
		t.Errorf("stt = %q, want none", cfg.Providers.STT.Name)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: "127.0.0.1:9000"
  log_level: debug
  log_file: /var/log/voicefill.log
providers:
  stt:
    name: deepgram
    api_key: primary-key
    model: nova-2
  stt_fallbacks:
    - name: deepgram
      api_key: backup-key
      model: base
capture:
  language: zh-TW
  sample_rate: 48000
  channels: 2
  max_duration: 45s
  single_utterance: true
  keywords:
    - word: 西双版纳
      boost: 3
    - word: 稻城亚丁
telemetry:
  service_name: voicefill-dev
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9000" || cfg.Server.LogFile != "/var/log/voicefill.log" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.STT.APIKey != "primary-key" || cfg.Providers.STT.Model != "nova-2" {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if len(cfg.Providers.STTFallbacks) != 1 || cfg.Providers.STTFallbacks[0].Model != "base" {
		t.Errorf("stt_fallbacks = %+v", cfg.Providers.STTFallbacks)
	}
	c := cfg.Capture
	if c.Language != "zh-TW" || c.SampleRate != 48000 || c.Channels != 2 || !c.SingleUtterance {
		t.Errorf("capture = %+v", c)
	}
	if c.MaxDuration != 45*time.Second {
		t.Errorf("max_duration = %v, want 45s", c.MaxDuration)
	}
	if len(c.Keywords) != 2 || c.Keywords[0] != (config.KeywordConfig{Word: "西双版纳", Boost: 3}) {
		t.Errorf("keywords = %+v", c.Keywords)
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("VOICEFILL_TEST_DEEPGRAM_KEY", "from-env")

	yaml := `
providers:
  stt:
    name: deepgram
    api_key: ${VOICEFILL_TEST_DEEPGRAM_KEY}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STT.APIKey != "from-env" {
		t.Errorf("api_key = %q, want from-env", cfg.Providers.STT.APIKey)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_port: 80\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "listen_port") {
		t.Errorf("error should name the unknown field, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: bananas\n",
			want: []string{"server.log_level"},
		},
		{
			name: "stt without api key",
			yaml: "providers:\n  stt:\n    name: deepgram\n",
			want: []string{"providers.stt.api_key"},
		},
		{
			name: "fallbacks without primary",
			yaml: "providers:\n  stt_fallbacks:\n    - name: deepgram\n      api_key: k\n",
			want: []string{"requires providers.stt"},
		},
		{
			name: "fallback without name",
			yaml: "providers:\n  stt:\n    name: deepgram\n    api_key: k\n  stt_fallbacks:\n    - api_key: k\n",
			want: []string{"stt_fallbacks[0].name"},
		},
		{
			name: "capture ranges",
			yaml: "capture:\n  channels: 6\n  max_duration: -1s\n  keywords:\n    - boost: 2\n",
			want: []string{"capture.channels", "capture.max_duration", "capture.keywords[0].word"},
		},
		{
			name: "sample ratio",
			yaml: "telemetry:\n  sample_ratio: 1.5\n",
			want: []string{"telemetry.sample_ratio"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()

	yaml := "providers:\n  stt:\n    name: acme-asr\n    api_key: k\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Errorf("unknown provider name should only warn, got: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voicefill.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_addr: \":7000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":7000" {
		t.Errorf("listen_addr = %q, want :7000", cfg.Server.ListenAddr)
	}

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
	}
}
