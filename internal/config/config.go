// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the Voxline conversation server.
package config

// LogLevel controls log verbosity for the Voxline server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxline.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Generator GeneratorConfig `yaml:"generator"`
	TTS       TTSConfig       `yaml:"tts"`
	Language  LanguageConfig  `yaml:"language"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// InstanceID identifies this process in hello messages. A random id is
	// generated when empty.
	InstanceID string `yaml:"instance_id"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// GeneratorConfig selects and configures the reply text generator.
type GeneratorConfig struct {
	// Name selects the registered generator implementation
	// (e.g., "dummy", "openai", "anyllm").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the backing API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// Provider selects the upstream backend for multi-backend generators
	// (e.g., "ollama" for the anyllm generator).
	Provider string `yaml:"provider"`

	// SystemPrompt seeds every conversation turn.
	SystemPrompt string `yaml:"system_prompt"`
}

// TTSConfig selects and configures the speech synthesizer pair.
type TTSConfig struct {
	// Name selects the registered synthesizer implementation
	// (e.g., "edge", "piper", "stub").
	Name string `yaml:"name"`

	// Chinese is the default voice; it is required for the piper backend.
	Chinese VoiceConfig `yaml:"chinese"`

	// English is optional; Chinese is reused when it is not configured.
	English VoiceConfig `yaml:"english"`

	// TargetSampleRate resamples synthesizer output when non-zero.
	// Only the piper backend honours it.
	TargetSampleRate int `yaml:"target_sample_rate"`

	// CUDA enables GPU synthesis for backends that support it.
	CUDA bool `yaml:"cuda"`
}

// VoiceConfig configures one voice of a synthesizer backend.
type VoiceConfig struct {
	// Voice is the backend voice name (e.g., "zh-CN-XiaoxiaoNeural").
	Voice string `yaml:"voice"`

	// ModelPath is the voice model file for local backends.
	ModelPath string `yaml:"model_path"`

	// ConfigPath is the voice config file accompanying ModelPath.
	ConfigPath string `yaml:"config_path"`
}

// Configured reports whether this voice block selects anything.
func (v VoiceConfig) Configured() bool {
	return v.Voice != "" || v.ModelPath != ""
}

// LanguageConfig controls automatic voice selection.
type LanguageConfig struct {
	// Auto enables script-based voice selection per turn.
	Auto bool `yaml:"auto"`

	// DecideChars is the reply prefix length sampled before a forced
	// decision. Zero selects the built-in default.
	DecideChars int `yaml:"decide_chars"`
}

// MetricsConfig controls per-turn latency persistence.
type MetricsConfig struct {
	// LogDir is the directory daily metrics_<date>.jsonl files land in.
	LogDir string `yaml:"log_dir"`
}
