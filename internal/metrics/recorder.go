// Package metrics persists per-turn latency records as append-only JSON
// lines, one file per UTC date. Writes happen on a dedicated goroutine so
// file I/O never blocks a connection's hot path.
package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// appendQueueDepth bounds how many records may be pending before Append
// starts dropping. Turn completion is the only producer, so the queue only
// fills when disk writes stall badly.
const appendQueueDepth = 256

// Record is one serialized turn outcome. Millisecond fields are deltas from
// the turn's receive time, except InterruptMS which measures interrupt
// receipt to pipeline teardown; nil means the phase never occurred.
type Record struct {
	Timestamp    time.Time `json:"ts"`
	SessionID    string    `json:"session_id"`
	TurnID       int       `json:"turn_id"`
	FirstDeltaMS *int64    `json:"first_delta_ms"`
	FirstAudioMS *int64    `json:"first_audio_ms"`
	TotalMS      *int64    `json:"total_ms"`
	InterruptMS  *int64    `json:"interrupt_ms"`
	Outcome      string    `json:"outcome"`
	ErrKind      string    `json:"err_kind,omitempty"`
	ErrMsg       string    `json:"err_msg,omitempty"`
}

// Recorder appends records to daily JSONL files under a log directory.
// All exported methods are safe for concurrent use.
type Recorder struct {
	dir string

	mu     sync.RWMutex
	closed bool

	ch   chan Record
	done chan struct{}
}

// NewRecorder creates the log directory if needed and starts the writer
// goroutine. Call Close to flush pending records on shutdown.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("metrics: create log dir %q: %w", dir, err)
	}
	r := &Recorder{
		dir:  dir,
		ch:   make(chan Record, appendQueueDepth),
		done: make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Append queues a record for writing. It never blocks; when the queue is
// full, or the recorder has been closed, the record is dropped with a
// warning.
func (r *Recorder) Append(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		slog.Warn("metrics recorder closed, dropping record",
			"session_id", rec.SessionID, "turn_id", rec.TurnID)
		return
	}
	select {
	case r.ch <- rec:
	default:
		slog.Warn("metrics queue full, dropping record",
			"session_id", rec.SessionID, "turn_id", rec.TurnID)
	}
}

// Close stops the writer after flushing queued records. It is idempotent and
// every caller waits for the flush to finish.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

// Path returns the file that records with the given timestamp land in.
func (r *Recorder) Path(ts time.Time) string {
	return filepath.Join(r.dir, fmt.Sprintf("metrics_%s.jsonl", ts.UTC().Format("2006-01-02")))
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		if err := r.appendLine(rec); err != nil {
			slog.Warn("metrics append failed", "err", err)
		}
	}
}

func (r *Recorder) appendLine(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("metrics: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(r.Path(rec.Timestamp), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("metrics: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("metrics: write: %w", err)
	}
	return nil
}
