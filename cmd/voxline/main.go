// Command voxline is the main entry point for the Voxline conversation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voxline/voxline/internal/config"
	"github.com/voxline/voxline/internal/health"
	"github.com/voxline/voxline/internal/metrics"
	"github.com/voxline/voxline/internal/observe"
	"github.com/voxline/voxline/internal/server"
	"github.com/voxline/voxline/internal/session"
	"github.com/voxline/voxline/pkg/provider/generator"
	"github.com/voxline/voxline/pkg/provider/generator/anyllm"
	"github.com/voxline/voxline/pkg/provider/generator/dummy"
	oaigen "github.com/voxline/voxline/pkg/provider/generator/openai"
	"github.com/voxline/voxline/pkg/provider/synth"
	"github.com/voxline/voxline/pkg/provider/synth/edge"
	"github.com/voxline/voxline/pkg/provider/synth/piper"
	"github.com/voxline/voxline/pkg/provider/synth/stub"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxline: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxline: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("voxline starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxline"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	obs := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	gen, synthZH, synthEN, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Metrics recorder ──────────────────────────────────────────────────────
	recorder, err := metrics.NewRecorder(cfg.Metrics.LogDir)
	if err != nil {
		slog.Error("failed to open metrics log", "err", err)
		return 1
	}
	defer recorder.Close()

	// ── Session handler ───────────────────────────────────────────────────────
	instanceID := cfg.Server.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	sessions := session.NewHandler(session.HandlerConfig{
		Generator:   gen,
		SynthZH:     synthZH,
		SynthEN:     synthEN,
		Recorder:    recorder,
		Obs:         obs,
		InstanceID:  instanceID,
		LangAuto:    cfg.Language.Auto,
		DecideRunes: cfg.Language.DecideChars,
		Log:         logger,
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level reloaded", "level", d.NewLogLevel)
		}
		if d.LanguageChanged {
			sessions.SetLanguage(d.NewLanguage.Auto, d.NewLanguage.DecideChars)
			slog.Info("language settings reloaded",
				"auto", d.NewLanguage.Auto, "decide_chars", d.NewLanguage.DecideChars)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, instanceID)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		CertFile:   tlsFile(cfg, func(t *config.TLSConfig) string { return t.CertFile }),
		KeyFile:    tlsFile(cfg, func(t *config.TLSConfig) string { return t.KeyFile }),
		Sessions:   sessions,
		Health:     health.New(metricsDirChecker(cfg.Metrics.LogDir)),
		Obs:        obs,
		Log:        logger,
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends lists the upstream names the anyllm generator accepts.
var anyllmBackends = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Generators ────────────────────────────────────────────────────────────

	reg.RegisterGenerator("dummy", func(config.GeneratorConfig) (generator.Provider, error) {
		return dummy.New(), nil
	})

	reg.RegisterGenerator("openai", func(entry config.GeneratorConfig) (generator.Provider, error) {
		var opts []oaigen.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaigen.WithBaseURL(entry.BaseURL))
		}
		if entry.SystemPrompt != "" {
			opts = append(opts, oaigen.WithSystemPrompt(entry.SystemPrompt))
		}
		return oaigen.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterGenerator("anyllm", func(entry config.GeneratorConfig) (generator.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New(entry.Provider, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		if entry.SystemPrompt != "" {
			p.SetSystemPrompt(entry.SystemPrompt)
		}
		return p, nil
	})

	// ── Synthesizers ──────────────────────────────────────────────────────────

	reg.RegisterSynth("edge", func(_ config.TTSConfig, voice config.VoiceConfig) (synth.Synthesizer, error) {
		return edge.New(voice.Voice), nil
	})

	reg.RegisterSynth("piper", func(tts config.TTSConfig, voice config.VoiceConfig) (synth.Synthesizer, error) {
		var opts []piper.Option
		if voice.ConfigPath != "" {
			opts = append(opts, piper.WithConfigPath(voice.ConfigPath))
		}
		if tts.TargetSampleRate > 0 {
			opts = append(opts, piper.WithTargetSampleRate(tts.TargetSampleRate))
		}
		if tts.CUDA {
			opts = append(opts, piper.WithCUDA(true))
		}
		return piper.New(voice.ModelPath, opts...)
	})

	reg.RegisterSynth("stub", func(config.TTSConfig, config.VoiceConfig) (synth.Synthesizer, error) {
		return stub.New(synth.DefaultFormat.SampleRate), nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
	for _, name := range anyllmBackends {
		slog.Debug("registered anyllm backend", "name", name)
	}
}

// buildProviders instantiates the generator and the per-language synthesizer
// voices named in cfg.
func buildProviders(cfg *config.Config, reg *config.Registry) (generator.Provider, synth.Synthesizer, synth.Synthesizer, error) {
	gen, err := reg.CreateGenerator(cfg.Generator)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create generator %q: %w", cfg.Generator.Name, err)
	}
	slog.Info("provider created", "kind", "generator", "name", cfg.Generator.Name, "model", cfg.Generator.Model)

	zhVoice := cfg.TTS.Chinese
	if cfg.TTS.Name == "edge" && zhVoice.Voice == "" {
		zhVoice.Voice = edge.DefaultVoiceZH
	}
	synthZH, err := reg.CreateSynth(cfg.TTS, zhVoice)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create tts %q (chinese): %w", cfg.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.TTS.Name, "voice", zhVoice.Voice)

	var synthEN synth.Synthesizer
	enVoice := cfg.TTS.English
	if cfg.TTS.Name == "edge" && cfg.Language.Auto && enVoice.Voice == "" {
		enVoice.Voice = edge.DefaultVoiceEN
	}
	if enVoice.Configured() {
		synthEN, err = reg.CreateSynth(cfg.TTS, enVoice)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create tts %q (english): %w", cfg.TTS.Name, err)
		}
		slog.Info("provider created", "kind", "tts", "name", cfg.TTS.Name, "voice", enVoice.Voice)
	}

	return gen, synthZH, synthEN, nil
}

// metricsDirChecker reports readiness of the metrics log directory.
func metricsDirChecker(dir string) health.Checker {
	return health.Checker{
		Name: "metrics_dir",
		Check: func(context.Context) error {
			probe := filepath.Join(dir, ".readyz")
			if err := os.WriteFile(probe, nil, 0o644); err != nil {
				return err
			}
			return os.Remove(probe)
		},
	}
}

func tlsFile(cfg *config.Config, pick func(*config.TLSConfig) string) string {
	if cfg.Server.TLS == nil {
		return ""
	}
	return pick(cfg.Server.TLS)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, instanceID string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Voxline — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Generator", cfg.Generator.Name, cfg.Generator.Model)
	printProvider("TTS", cfg.TTS.Name, cfg.TTS.Chinese.Voice)
	if cfg.Language.Auto {
		fmt.Printf("║  Language auto   : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Language auto   : %-19s ║\n", "disabled")
	}
	printSummaryValue("Metrics dir", cfg.Metrics.LogDir)
	printSummaryValue("Instance", instanceID)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, detail string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if detail != "" {
		value = name + " / " + detail
	}
	printSummaryValue(kind, value)
}

func printSummaryValue(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
