package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"generator": {"dummy", "openai", "anyllm"},
	"tts":       {"edge", "piper", "stub"},
}

// Defaults applied by [LoadFromReader] for fields left empty.
const (
	DefaultListenAddr = ":8080"
	DefaultLogDir     = "logs"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Metrics.LogDir == "" {
		cfg.Metrics.LogDir = DefaultLogDir
	}
	if cfg.Generator.Name == "" {
		cfg.Generator.Name = "dummy"
	}
	if cfg.TTS.Name == "" {
		cfg.TTS.Name = "edge"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("generator", cfg.Generator.Name)
	validateProviderName("tts", cfg.TTS.Name)

	// Generator
	if cfg.Generator.Name == "openai" && cfg.Generator.APIKey == "" && cfg.Generator.BaseURL == "" {
		slog.Warn("generator.api_key is empty; the openai generator will rely on ambient credentials")
	}
	if cfg.Generator.Name == "anyllm" && cfg.Generator.Provider == "" {
		errs = append(errs, errors.New("generator.provider is required for the anyllm generator"))
	}

	// TTS
	if cfg.TTS.Name == "piper" && cfg.TTS.Chinese.ModelPath == "" {
		errs = append(errs, errors.New("tts.chinese.model_path is required for the piper backend"))
	}
	if cfg.TTS.TargetSampleRate < 0 {
		errs = append(errs, fmt.Errorf("tts.target_sample_rate %d must not be negative", cfg.TTS.TargetSampleRate))
	}
	if cfg.TTS.TargetSampleRate != 0 && cfg.TTS.Name != "piper" {
		slog.Warn("tts.target_sample_rate is only honoured by the piper backend",
			"tts", cfg.TTS.Name)
	}

	// Language
	if cfg.Language.DecideChars < 0 {
		errs = append(errs, fmt.Errorf("language.decide_chars %d must not be negative", cfg.Language.DecideChars))
	}
	if cfg.Language.Auto && !cfg.TTS.English.Configured() {
		slog.Warn("language.auto is enabled but no english voice is configured; english replies reuse the chinese voice")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
