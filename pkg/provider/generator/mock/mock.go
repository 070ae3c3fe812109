// Package mock provides a test double for the generator.Provider interface.
//
// Use Provider in unit tests to feed controlled delta sequences into the turn
// orchestrator without a live backend, and to verify what prompt was sent.
//
// Example:
//
//	p := &mock.Provider{Deltas: []string{"你好", "，", "很高兴见到你。"}}
//	ch, err := p.Stream(ctx, "你好")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxline/voxline/pkg/provider/generator"
)

// StreamCall records a single invocation of Stream.
type StreamCall struct {
	// Ctx is the context passed to Stream.
	Ctx context.Context
	// UserText is the utterance passed to Stream.
	UserText string
}

// Provider is a mock implementation of generator.Provider.
// Zero values cause Stream to return an immediately closed channel.
type Provider struct {
	mu sync.Mutex

	// Deltas is the sequence of text deltas emitted on the channel returned by
	// Stream. All deltas are sent before the channel is closed.
	Deltas []string

	// DeltaDelay, when non-zero, is slept between consecutive deltas. Useful
	// for interruption tests that need an in-flight stream.
	DeltaDelay time.Duration

	// StartErr, if non-nil, is returned as the error from Stream instead of
	// opening a channel.
	StartErr error

	// StreamErr, if non-nil, is emitted as a final Err chunk after all Deltas.
	StreamErr error

	// StreamCalls records every invocation of Stream in order.
	StreamCalls []StreamCall
}

var _ generator.Provider = (*Provider)(nil)

// Stream records the call and returns a channel that emits Deltas.
func (p *Provider) Stream(ctx context.Context, userText string) (<-chan generator.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, UserText: userText})
	deltas := make([]string, len(p.Deltas))
	copy(deltas, p.Deltas)
	delay := p.DeltaDelay
	startErr := p.StartErr
	streamErr := p.StreamErr
	p.mu.Unlock()

	if startErr != nil {
		return nil, startErr
	}

	ch := make(chan generator.Chunk, len(deltas)+1)
	go func() {
		defer close(ch)
		for _, d := range deltas {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- generator.Chunk{Delta: d}:
			case <-ctx.Done():
				return
			}
		}
		if streamErr != nil {
			select {
			case ch <- generator.Chunk{Err: streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// Calls returns a snapshot of recorded Stream invocations.
func (p *Provider) Calls() []StreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make([]StreamCall, len(p.StreamCalls))
	copy(calls, p.StreamCalls)
	return calls
}
