package stub

import (
	"context"
	"testing"
	"time"

	"github.com/voxline/voxline/pkg/audio"
	"github.com/voxline/voxline/pkg/provider/synth"
)

func collectPCM(t *testing.T, s *Synthesizer, text string) []byte {
	t.Helper()
	ch, err := s.Synthesize(context.Background(), text)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	var pcm []byte
	for chunk := range ch {
		pcm = append(pcm, chunk...)
	}
	return pcm
}

func TestFormatDefaults(t *testing.T) {
	if got := New(0).Format(); got != synth.DefaultFormat {
		t.Errorf("Format() = %+v, want default", got)
	}
	if got := New(16000).Format().SampleRate; got != 16000 {
		t.Errorf("SampleRate = %d, want 16000", got)
	}
}

func TestSynthesizeDurationTracksSpeakableRunes(t *testing.T) {
	s := New(24000)
	pcm := collectPCM(t, s, "你好吗")

	want := 3 * perRune
	got := audio.Duration(pcm, 24000)
	if diff := got - want; diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("duration = %v, want about %v", got, want)
	}
}

func TestSynthesizePunctuationOnlyIsSilent(t *testing.T) {
	s := New(24000)
	if pcm := collectPCM(t, s, "……！？"); len(pcm) != 0 {
		t.Errorf("pure punctuation produced %d bytes, want 0", len(pcm))
	}
}

func TestSynthesizeEmptyTextIsSilent(t *testing.T) {
	s := New(24000)
	if pcm := collectPCM(t, s, ""); len(pcm) != 0 {
		t.Errorf("empty text produced %d bytes, want 0", len(pcm))
	}
}

func TestSynthesizeStopsOnCancel(t *testing.T) {
	s := New(24000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch, err := s.Synthesize(ctx, "a long sentence that would otherwise produce many chunks")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	n := 0
	for range ch {
		n++
	}
	// The buffered channel may carry a few chunks, but the stream must close.
	if n > 4 {
		t.Errorf("cancelled stream emitted %d chunks", n)
	}
}
