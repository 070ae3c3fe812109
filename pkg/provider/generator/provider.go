// Package generator defines the Provider interface for streaming text
// generation backends.
//
// A generator wraps a local model, a retrieval pipeline, or a remote LLM API
// and exposes a uniform streaming contract: one call per user utterance,
// producing a lazy, finite, non-restartable sequence of text deltas. The turn
// orchestrator consumes the deltas to drive both the client-facing text stream
// and the speech synthesis pipeline.
//
// Implementations must be safe for concurrent use; each Stream call owns its
// returned channel exclusively.
package generator

import "context"

// Chunk is a single fragment emitted by a streaming generation.
type Chunk struct {
	// Delta is the incremental text content of this chunk. May be empty on a
	// chunk that only carries Err.
	Delta string

	// Err is non-nil on the final chunk when generation failed after the
	// stream started. The channel is closed immediately after an Err chunk.
	Err error
}

// Provider is the abstraction over any text generation backend.
//
// Implementations must propagate context cancellation promptly: when ctx is
// cancelled the returned channel must be closed as quickly as possible.
type Provider interface {
	// Stream sends the user utterance to the backend and returns a read-only
	// channel that emits Chunk values as they arrive. The channel is closed by
	// the implementation when generation finishes, fails, or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. The returned
	// error is non-nil only for failures that prevent the stream from starting;
	// mid-stream failures are surfaced as a final Chunk with Err set.
	//
	// The returned channel must never be nil when error is nil.
	Stream(ctx context.Context, userText string) (<-chan Chunk, error)
}
