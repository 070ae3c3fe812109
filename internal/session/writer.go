package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/voxline/voxline/internal/turn"
)

// Socket is the subset of [websocket.Conn] the writer needs. Tests substitute
// an in-memory recorder.
type Socket interface {
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
}

// FrameWriter is the single writer for one connection. Every outbound frame,
// JSON control or binary audio, goes through its mutex so frames from the
// generator worker, the synthesis worker and the handler never interleave.
type FrameWriter struct {
	mu   sync.Mutex
	ctx  context.Context
	conn Socket
}

var _ turn.Sink = (*FrameWriter)(nil)

// NewFrameWriter wraps conn. The context bounds every write and is normally
// the connection's lifetime context.
func NewFrameWriter(ctx context.Context, conn Socket) *FrameWriter {
	return &FrameWriter{ctx: ctx, conn: conn}
}

// SendControl JSON-encodes msg and sends it as one text frame.
func (w *FrameWriter) SendControl(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("session: encode control message: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.Write(w.ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("session: write control frame: %w", err)
	}
	return nil
}

// SendBinary sends data as one binary frame.
func (w *FrameWriter) SendBinary(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.Write(w.ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("session: write binary frame: %w", err)
	}
	return nil
}

// SafeSendControl sends best-effort. Cleanup paths use it where the
// connection may already be gone and the failure changes nothing.
func (w *FrameWriter) SafeSendControl(msg any) {
	if err := w.SendControl(msg); err != nil {
		slog.Debug("best-effort control send failed", "err", err)
	}
}
