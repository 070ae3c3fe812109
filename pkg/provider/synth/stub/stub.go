// Package stub provides a synth.Synthesizer that produces silent PCM sized to
// the input text. It exists so the pipeline can run end to end without any
// speech model installed, and so tests get deterministic audio output.
package stub

import (
	"context"
	"time"
	"unicode"

	"github.com/voxline/voxline/pkg/audio"
	"github.com/voxline/voxline/pkg/provider/synth"
)

const (
	// perRune is the simulated speaking time per speakable rune.
	perRune = 60 * time.Millisecond

	// chunkDuration is the playback time covered by one emitted PCM chunk.
	chunkDuration = 100 * time.Millisecond
)

// Synthesizer emits silence proportional to the speakable length of the text.
// Text with no letters, digits, or CJK characters produces no chunks at all,
// mirroring real synthesizers that stay silent on pure punctuation.
type Synthesizer struct {
	format synth.Format
}

var _ synth.Synthesizer = (*Synthesizer)(nil)

// New constructs a stub Synthesizer with the given sample rate.
// A non-positive rate falls back to synth.DefaultFormat.
func New(sampleRate int) *Synthesizer {
	f := synth.DefaultFormat
	if sampleRate > 0 {
		f.SampleRate = sampleRate
	}
	return &Synthesizer{format: f}
}

// Format implements synth.Synthesizer.
func (s *Synthesizer) Format() synth.Format {
	return s.format
}

// Synthesize implements synth.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	speakable := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			speakable++
		}
	}

	ch := make(chan []byte, 4)
	go func() {
		defer close(ch)
		remaining := time.Duration(speakable) * perRune
		for remaining > 0 {
			d := min(remaining, chunkDuration)
			remaining -= d
			select {
			case ch <- audio.Silence(d, s.format.SampleRate):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
