// Package piper provides a synth.Synthesizer backed by a local Piper
// installation. Each Synthesize call runs the piper binary in --output-raw
// mode and streams its stdout as s16le mono PCM chunks, optionally resampled
// to a configured target rate.
package piper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/voxline/voxline/pkg/audio"
	"github.com/voxline/voxline/pkg/provider/synth"
)

const (
	// defaultSampleRate is assumed when the voice config does not carry one.
	defaultSampleRate = 16000

	// readChunkBytes is the stdout read size, ~128 ms of 16 kHz mono s16le.
	readChunkBytes = 4096
)

// Synthesizer shells out to the piper binary for each segment.
type Synthesizer struct {
	binary     string
	modelPath  string
	configPath string
	useCUDA    bool
	targetRate int

	nativeRate int
	format     synth.Format
}

var _ synth.Synthesizer = (*Synthesizer)(nil)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithBinary overrides the piper executable name or path. Default "piper".
func WithBinary(path string) Option {
	return func(s *Synthesizer) { s.binary = path }
}

// WithConfigPath sets the voice config path explicitly. When unset, the
// conventional sibling paths "<model>.json" and "<model>.onnx.json" are tried.
func WithConfigPath(path string) Option {
	return func(s *Synthesizer) { s.configPath = path }
}

// WithTargetSampleRate resamples the output to the given rate. Zero keeps the
// voice's native rate.
func WithTargetSampleRate(rate int) Option {
	return func(s *Synthesizer) { s.targetRate = rate }
}

// WithCUDA enables GPU inference via piper's --cuda flag.
func WithCUDA(enabled bool) Option {
	return func(s *Synthesizer) { s.useCUDA = enabled }
}

// New constructs a piper Synthesizer for the given voice model.
// The native sample rate is read from the voice config file when available;
// options may request resampling to a different output rate.
func New(modelPath string, opts ...Option) (*Synthesizer, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("piper: modelPath must not be empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("piper: voice model: %w", err)
	}

	s := &Synthesizer{
		binary:    "piper",
		modelPath: modelPath,
		format:    synth.DefaultFormat,
	}
	for _, o := range opts {
		o(s)
	}

	if s.configPath == "" {
		s.configPath = findVoiceConfig(modelPath)
	}
	s.nativeRate = readSampleRate(s.configPath)
	s.format.SampleRate = s.nativeRate
	if s.targetRate > 0 {
		s.format.SampleRate = s.targetRate
	}

	slog.Info("piper voice loaded",
		"model", modelPath,
		"native_rate", s.nativeRate,
		"output_rate", s.format.SampleRate,
		"cuda", s.useCUDA,
	)
	return s, nil
}

// Format implements synth.Synthesizer.
func (s *Synthesizer) Format() synth.Format {
	return s.format
}

// Synthesize implements synth.Synthesizer. It spawns one piper process per
// segment; the process is killed when ctx is cancelled.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	args := []string{"--model", s.modelPath, "--output-raw"}
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}
	if s.useCUDA {
		args = append(args, "--cuda")
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Stdin = strings.NewReader(text)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piper: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("piper: start %q: %w", s.binary, err)
	}

	resampler, err := audio.NewResampler(s.nativeRate, s.format.SampleRate)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	ch := make(chan []byte, 8)
	go func() {
		defer close(ch)
		defer func() {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				slog.Warn("piper process exited with error", "err", err)
			}
		}()

		buf := make([]byte, readChunkBytes)
		for {
			n, readErr := stdout.Read(buf)
			if n > 0 {
				out, rerr := resampler.Process(buf[:n])
				if rerr != nil {
					slog.Warn("piper resample failed, dropping stream", "err", rerr)
					return
				}
				if len(out) > 0 {
					select {
					case ch <- out:
					case <-ctx.Done():
						return
					}
				}
			}
			if readErr != nil {
				if readErr != io.EOF && ctx.Err() == nil {
					slog.Warn("piper stdout read failed", "err", readErr)
				}
				return
			}
		}
	}()
	return ch, nil
}

// findVoiceConfig returns the conventional sibling config path for a voice
// model, or "" when neither candidate exists.
func findVoiceConfig(modelPath string) string {
	for _, cand := range []string{modelPath + ".json", modelPath + ".onnx.json"} {
		if _, err := os.Stat(cand); err == nil {
			return cand
		}
	}
	return ""
}

// voiceConfig is the subset of a Piper voice config we care about.
type voiceConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// readSampleRate reads audio.sample_rate from a voice config file, falling
// back to defaultSampleRate when the file is missing or malformed.
func readSampleRate(configPath string) int {
	if configPath == "" {
		return defaultSampleRate
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return defaultSampleRate
	}
	var cfg voiceConfig
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.Audio.SampleRate <= 0 {
		return defaultSampleRate
	}
	return cfg.Audio.SampleRate
}
