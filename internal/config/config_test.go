package config_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/voxline/voxline/internal/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  instance_id: box-1

generator:
  name: openai
  api_key: sk-test
  model: gpt-4o-mini
  system_prompt: You are a helpful voice assistant.

tts:
  name: edge
  chinese:
    voice: zh-CN-XiaoxiaoNeural
  english:
    voice: en-US-AriaNeural

language:
  auto: true
  decide_chars: 100

metrics:
  log_dir: /var/log/voxline
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Server.InstanceID != "box-1" {
		t.Errorf("server.instance_id: got %q, want %q", cfg.Server.InstanceID, "box-1")
	}
	if cfg.Generator.Name != "openai" {
		t.Errorf("generator.name: got %q, want %q", cfg.Generator.Name, "openai")
	}
	if cfg.Generator.Model != "gpt-4o-mini" {
		t.Errorf("generator.model: got %q, want %q", cfg.Generator.Model, "gpt-4o-mini")
	}
	if cfg.TTS.Chinese.Voice != "zh-CN-XiaoxiaoNeural" {
		t.Errorf("tts.chinese.voice: got %q", cfg.TTS.Chinese.Voice)
	}
	if !cfg.TTS.English.Configured() {
		t.Error("tts.english should be configured")
	}
	if !cfg.Language.Auto {
		t.Error("language.auto: got false, want true")
	}
	if cfg.Language.DecideChars != 100 {
		t.Errorf("language.decide_chars: got %d, want 100", cfg.Language.DecideChars)
	}
	if cfg.Metrics.LogDir != "/var/log/voxline" {
		t.Errorf("metrics.log_dir: got %q, want %q", cfg.Metrics.LogDir, "/var/log/voxline")
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	// An empty config should succeed (no required top-level fields).
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Generator.Name != "dummy" {
		t.Errorf("default generator.name: got %q, want %q", cfg.Generator.Name, "dummy")
	}
	if cfg.TTS.Name != "edge" {
		t.Errorf("default tts.name: got %q, want %q", cfg.TTS.Name, "edge")
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("generator:\n  name: dummy\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("default listen_addr: got %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Metrics.LogDir != config.DefaultLogDir {
		t.Errorf("default metrics.log_dir: got %q, want %q", cfg.Metrics.LogDir, config.DefaultLogDir)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adress: \":8080\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_MalformedYAML(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server: [not a mapping"))
	if err == nil {
		t.Fatal("expected error for malformed yaml, got nil")
	}
}

// ── validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  log_level: loud\n"))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error does not name log_level: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  tls:\n    cert_file: /etc/voxline/cert.pem\n"))
	if err == nil {
		t.Fatal("expected error for half-configured tls, got nil")
	}
	if !strings.Contains(err.Error(), "tls") {
		t.Errorf("error does not name tls: %v", err)
	}
}

func TestValidate_AnyLLMRequiresProvider(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("generator:\n  name: anyllm\n"))
	if err == nil {
		t.Fatal("expected error for anyllm without provider, got nil")
	}
	if !strings.Contains(err.Error(), "generator.provider") {
		t.Errorf("error does not name generator.provider: %v", err)
	}
}

func TestValidate_PiperRequiresChineseModel(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("tts:\n  name: piper\n"))
	if err == nil {
		t.Fatal("expected error for piper without model_path, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") {
		t.Errorf("error does not name model_path: %v", err)
	}
}

func TestValidate_NegativeSampleRate(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("tts:\n  target_sample_rate: -1\n"))
	if err == nil {
		t.Fatal("expected error for negative sample rate, got nil")
	}
}

func TestValidate_NegativeDecideChars(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("language:\n  decide_chars: -5\n"))
	if err == nil {
		t.Fatal("expected error for negative decide_chars, got nil")
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	yaml := `
server:
  log_level: loud
generator:
  name: anyllm
language:
  decide_chars: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation error, got nil")
	}
	for _, want := range []string{"log_level", "generator.provider", "decide_chars"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

// ── level + voice helpers ─────────────────────────────────────────────────────

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO", "verbose"} {
		if l.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", l)
		}
	}
}

func TestVoiceConfigConfigured(t *testing.T) {
	cases := []struct {
		name  string
		voice config.VoiceConfig
		want  bool
	}{
		{"empty", config.VoiceConfig{}, false},
		{"voice name", config.VoiceConfig{Voice: "en-US-AriaNeural"}, true},
		{"model path", config.VoiceConfig{ModelPath: "/models/en.onnx"}, true},
		{"config path alone", config.VoiceConfig{ConfigPath: "/models/en.json"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.voice.Configured(); got != tc.want {
				t.Errorf("Configured() = %v, want %v", got, tc.want)
			}
		})
	}
}

// ── file loading ──────────────────────────────────────────────────────────────

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/voxline.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}
