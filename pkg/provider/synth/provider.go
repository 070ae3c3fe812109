// Package synth defines the Synthesizer interface for text-to-speech backends.
//
// A synthesizer wraps a speech service (a local Piper instance, the Edge
// read-aloud endpoint, or a silence stub) and presents a uniform streaming
// contract: one call per text segment, producing a lazy finite sequence of raw
// PCM byte chunks. Format metadata is static per synthesizer instance and is
// advertised to the client in the audio_begin control message.
//
// Implementations must be safe for concurrent use; each Synthesize call owns
// its returned channel exclusively.
package synth

import "context"

// Format describes the PCM output of a synthesizer.
type Format struct {
	// MIME is the media type advertised to clients (e.g. "audio/L16").
	MIME string

	// Encoding names the sample encoding (e.g. "pcm_s16le").
	Encoding string

	// SampleRate is the output sample rate in Hz.
	SampleRate int

	// Channels is the channel count. The wire protocol carries mono audio.
	Channels int
}

// DefaultFormat is raw signed 16-bit little-endian mono PCM at 16 kHz.
var DefaultFormat = Format{
	MIME:       "audio/L16",
	Encoding:   "pcm_s16le",
	SampleRate: 16000,
	Channels:   1,
}

// Synthesizer is the abstraction over any TTS backend.
//
// Implementations must propagate context cancellation promptly: when ctx is
// cancelled the returned channel must be closed as quickly as possible.
type Synthesizer interface {
	// Format returns the static PCM output format of this synthesizer.
	Format() Format

	// Synthesize converts one text segment to speech and returns a read-only
	// channel that emits raw PCM chunks as they are produced. The channel is
	// closed by the implementation when synthesis finishes, fails, or ctx is
	// cancelled. A segment that produces no audible output yields a channel
	// that closes without emitting any non-empty chunk.
	//
	// Callers must drain the channel to avoid goroutine leaks. The returned
	// error is non-nil only for failures that prevent synthesis from starting;
	// mid-stream failures are signalled by closing the channel early.
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)
}
