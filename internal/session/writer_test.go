package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

// fakeSocket records frames written through the FrameWriter.
type fakeSocket struct {
	mu       sync.Mutex
	types    []websocket.MessageType
	payloads [][]byte
	writeErr error
}

func (s *fakeSocket) Write(_ context.Context, typ websocket.MessageType, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.types = append(s.types, typ)
	s.payloads = append(s.payloads, cp)
	return nil
}

func TestFrameWriterSendControl(t *testing.T) {
	sock := &fakeSocket{}
	w := NewFrameWriter(context.Background(), sock)

	if err := w.SendControl(map[string]string{"type": "hello"}); err != nil {
		t.Fatalf("SendControl() error = %v", err)
	}
	if len(sock.types) != 1 || sock.types[0] != websocket.MessageText {
		t.Errorf("frame types = %v, want one text frame", sock.types)
	}
	if got := string(sock.payloads[0]); got != `{"type":"hello"}` {
		t.Errorf("payload = %s, want JSON control message", got)
	}
}

func TestFrameWriterSendBinary(t *testing.T) {
	sock := &fakeSocket{}
	w := NewFrameWriter(context.Background(), sock)

	if err := w.SendBinary([]byte{1, 2, 3}); err != nil {
		t.Fatalf("SendBinary() error = %v", err)
	}
	if len(sock.types) != 1 || sock.types[0] != websocket.MessageBinary {
		t.Errorf("frame types = %v, want one binary frame", sock.types)
	}
	if string(sock.payloads[0]) != string([]byte{1, 2, 3}) {
		t.Errorf("payload = %v, want passthrough bytes", sock.payloads[0])
	}
}

func TestFrameWriterPropagatesWriteError(t *testing.T) {
	sock := &fakeSocket{writeErr: errors.New("broken pipe")}
	w := NewFrameWriter(context.Background(), sock)

	if err := w.SendControl(map[string]string{"type": "x"}); err == nil {
		t.Error("SendControl() error = nil, want wrapped transport error")
	}
	if err := w.SendBinary([]byte{1}); err == nil {
		t.Error("SendBinary() error = nil, want wrapped transport error")
	}
}

func TestFrameWriterSafeSendSwallowsError(t *testing.T) {
	sock := &fakeSocket{writeErr: errors.New("broken pipe")}
	w := NewFrameWriter(context.Background(), sock)
	w.SafeSendControl(map[string]string{"type": "x"}) // must not panic
}

func TestFrameWriterRejectsUnencodableMessage(t *testing.T) {
	sock := &fakeSocket{}
	w := NewFrameWriter(context.Background(), sock)
	if err := w.SendControl(make(chan int)); err == nil {
		t.Error("SendControl() accepted an unencodable value")
	}
	if len(sock.types) != 0 {
		t.Error("a failed encode still reached the socket")
	}
}
