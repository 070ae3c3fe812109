package piper

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") error = nil, want error")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Error("New with missing model error = nil, want error")
	}
}

func TestNewReadsNativeRateFromConfig(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "zh_CN-huayan-medium.onnx")
	writeFile(t, model, "fake model")
	writeFile(t, model+".json", `{"audio":{"sample_rate":22050}}`)

	s, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.nativeRate != 22050 {
		t.Errorf("nativeRate = %d, want 22050", s.nativeRate)
	}
	if got := s.Format().SampleRate; got != 22050 {
		t.Errorf("Format().SampleRate = %d, want 22050", got)
	}
}

func TestNewTargetRateOverridesOutput(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	writeFile(t, model, "fake model")
	writeFile(t, model+".json", `{"audio":{"sample_rate":22050}}`)

	s, err := New(model, WithTargetSampleRate(16000))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.nativeRate != 22050 {
		t.Errorf("nativeRate = %d, want 22050", s.nativeRate)
	}
	if got := s.Format().SampleRate; got != 16000 {
		t.Errorf("Format().SampleRate = %d, want 16000", got)
	}
}

func TestNewExplicitConfigPath(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	cfg := filepath.Join(dir, "elsewhere.json")
	writeFile(t, model, "fake model")
	writeFile(t, cfg, `{"audio":{"sample_rate":44100}}`)

	s, err := New(model, WithConfigPath(cfg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.configPath != cfg {
		t.Errorf("configPath = %q, want %q", s.configPath, cfg)
	}
	if s.nativeRate != 44100 {
		t.Errorf("nativeRate = %d, want 44100", s.nativeRate)
	}
}

func TestNewWithoutConfigFallsBackToDefaultRate(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	writeFile(t, model, "fake model")

	s, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.nativeRate != defaultSampleRate {
		t.Errorf("nativeRate = %d, want %d", s.nativeRate, defaultSampleRate)
	}
}

func TestFindVoiceConfig(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "voice.onnx")
	writeFile(t, model, "fake model")

	if got := findVoiceConfig(model); got != "" {
		t.Errorf("findVoiceConfig with no config = %q, want empty", got)
	}

	cfg := model + ".json"
	writeFile(t, cfg, "{}")
	if got := findVoiceConfig(model); got != cfg {
		t.Errorf("findVoiceConfig = %q, want %q", got, cfg)
	}
}

func TestReadSampleRate(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	writeFile(t, good, `{"audio":{"sample_rate":22050}}`)
	if got := readSampleRate(good); got != 22050 {
		t.Errorf("readSampleRate(good) = %d, want 22050", got)
	}

	malformed := filepath.Join(dir, "bad.json")
	writeFile(t, malformed, "not json")
	if got := readSampleRate(malformed); got != defaultSampleRate {
		t.Errorf("readSampleRate(malformed) = %d, want %d", got, defaultSampleRate)
	}

	zero := filepath.Join(dir, "zero.json")
	writeFile(t, zero, `{"audio":{"sample_rate":0}}`)
	if got := readSampleRate(zero); got != defaultSampleRate {
		t.Errorf("readSampleRate(zero) = %d, want %d", got, defaultSampleRate)
	}

	if got := readSampleRate(""); got != defaultSampleRate {
		t.Errorf("readSampleRate(\"\") = %d, want %d", got, defaultSampleRate)
	}
	if got := readSampleRate(filepath.Join(dir, "missing.json")); got != defaultSampleRate {
		t.Errorf("readSampleRate(missing) = %d, want %d", got, defaultSampleRate)
	}
}
