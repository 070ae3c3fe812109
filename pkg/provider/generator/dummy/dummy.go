// Package dummy provides a generator.Provider that echoes the user utterance
// after a simulated thinking delay. It exists so the full pipeline can be
// exercised end to end without any model or API key configured.
package dummy

import (
	"context"
	"time"

	"github.com/voxline/voxline/pkg/provider/generator"
)

const (
	// defaultThinkDelay simulates model time-to-first-token.
	defaultThinkDelay = 300 * time.Millisecond

	// deltaRunes is how many runes each emitted delta carries.
	deltaRunes = 8
)

// Provider echoes the prompt back as a streamed reply.
type Provider struct {
	thinkDelay time.Duration
}

var _ generator.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithThinkDelay overrides the simulated time-to-first-token delay.
func WithThinkDelay(d time.Duration) Option {
	return func(p *Provider) { p.thinkDelay = d }
}

// New constructs a dummy Provider.
func New(opts ...Option) *Provider {
	p := &Provider{thinkDelay: defaultThinkDelay}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stream implements generator.Provider. The reply is "Echo: <utterance>"
// emitted in small rune-aligned deltas.
func (p *Provider) Stream(ctx context.Context, userText string) (<-chan generator.Chunk, error) {
	reply := []rune("Echo: " + userText)

	ch := make(chan generator.Chunk, 8)
	go func() {
		defer close(ch)
		select {
		case <-time.After(p.thinkDelay):
		case <-ctx.Done():
			return
		}
		for i := 0; i < len(reply); i += deltaRunes {
			end := min(i+deltaRunes, len(reply))
			select {
			case ch <- generator.Chunk{Delta: string(reply[i:end])}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
