package config_test

import (
	"testing"

	"github.com/voxline/voxline/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Generator: config.GeneratorConfig{Name: "dummy"},
		TTS:       config.TTSConfig{Name: "edge"},
		Language:  config.LanguageConfig{Auto: false, DecideChars: 0},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.LogLevelChanged {
		t.Error("LogLevelChanged = true for identical configs")
	}
	if d.LanguageChanged {
		t.Error("LanguageChanged = true for identical configs")
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if d.LanguageChanged {
		t.Error("LanguageChanged = true, want false")
	}
}

func TestDiff_LanguageChange(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Language.Auto = true
	new.Language.DecideChars = 80

	d := config.Diff(old, new)
	if !d.LanguageChanged {
		t.Fatal("LanguageChanged = false, want true")
	}
	if !d.NewLanguage.Auto || d.NewLanguage.DecideChars != 80 {
		t.Errorf("NewLanguage = %+v, want auto with 80 chars", d.NewLanguage)
	}
	if d.LogLevelChanged {
		t.Error("LogLevelChanged = true, want false")
	}
}

func TestDiff_RestartOnlyChangesIgnored(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Server.ListenAddr = ":9090"
	new.Generator.Name = "openai"
	new.TTS.Name = "piper"

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.LanguageChanged {
		t.Errorf("Diff = %+v, want no hot-reloadable changes", d)
	}
}
