// Package mock provides a test double for the synth.Synthesizer interface.
//
// Use Synthesizer in unit tests to feed controlled PCM chunk sequences into
// the turn orchestrator and to verify which segments were synthesised.
package mock

import (
	"context"
	"sync"

	"github.com/voxline/voxline/pkg/provider/synth"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the segment passed to Synthesize.
	Text string
}

// Synthesizer is a mock implementation of synth.Synthesizer.
// The zero value advertises synth.DefaultFormat and produces no audio.
type Synthesizer struct {
	mu sync.Mutex

	// OutputFormat is returned by Format. Zero value falls back to
	// synth.DefaultFormat.
	OutputFormat synth.Format

	// Chunks is the PCM chunk sequence emitted for every synthesised segment.
	Chunks [][]byte

	// ChunksFor, when non-nil, overrides Chunks for specific segment texts.
	// A present key with a nil value yields a stream with no chunks.
	ChunksFor map[string][][]byte

	// StartErr, if non-nil, is returned as the error from Synthesize.
	StartErr error

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

var _ synth.Synthesizer = (*Synthesizer)(nil)

// Format implements synth.Synthesizer.
func (s *Synthesizer) Format() synth.Format {
	if s.OutputFormat == (synth.Format{}) {
		return synth.DefaultFormat
	}
	return s.OutputFormat
}

// Synthesize records the call and returns a channel emitting the configured
// chunks.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	s.mu.Lock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	chunks := s.Chunks
	if s.ChunksFor != nil {
		if override, ok := s.ChunksFor[text]; ok {
			chunks = override
		}
	}
	cp := make([][]byte, len(chunks))
	copy(cp, chunks)
	startErr := s.StartErr
	s.mu.Unlock()

	if startErr != nil {
		return nil, startErr
	}

	ch := make(chan []byte, len(cp))
	go func() {
		defer close(ch)
		for _, c := range cp {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Calls returns a snapshot of recorded Synthesize invocations.
func (s *Synthesizer) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]SynthesizeCall, len(s.SynthesizeCalls))
	copy(calls, s.SynthesizeCalls)
	return calls
}

// Texts returns just the segment texts of recorded calls, in order.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]string, len(s.SynthesizeCalls))
	for i, c := range s.SynthesizeCalls {
		texts[i] = c.Text
	}
	return texts
}
