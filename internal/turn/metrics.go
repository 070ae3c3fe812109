package turn

import (
	"sync"
	"time"

	"github.com/voxline/voxline/internal/metrics"
)

// Turn outcomes recorded per turn.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Error kinds recorded with OutcomeError.
const (
	ErrKindGenerator = "generator"
	ErrKindTTS       = "tts"
	ErrKindTransport = "transport"
)

// TurnMetrics collects the latency milestones of a single turn. Stamps are
// taken from the wall clock at the moment each phase first happens; a zero
// time means the phase never occurred. Safe for concurrent use, the
// generator and synthesis workers stamp from different goroutines.
type TurnMetrics struct {
	mu sync.Mutex

	received      time.Time
	firstDelta    time.Time
	firstAudio    time.Time
	done          time.Time
	interruptRecv time.Time
	interruptDone time.Time

	outcome string
	errKind string
	errMsg  string
}

// NewTurnMetrics stamps the receive time and returns a fresh collector.
func NewTurnMetrics() *TurnMetrics {
	return &TurnMetrics{received: time.Now()}
}

// StampFirstDelta records the first generator delta. Later calls are no-ops.
func (m *TurnMetrics) StampFirstDelta() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstDelta.IsZero() {
		m.firstDelta = time.Now()
	}
}

// StampFirstAudio records the first audio frame sent. Later calls are no-ops.
func (m *TurnMetrics) StampFirstAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstAudio.IsZero() {
		m.firstAudio = time.Now()
	}
}

// StampDone records turn completion. Later calls are no-ops.
func (m *TurnMetrics) StampDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done.IsZero() {
		m.done = time.Now()
	}
}

// StampInterruptRecv records when an interrupt arrived for this turn.
// Later calls are no-ops.
func (m *TurnMetrics) StampInterruptRecv() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interruptRecv.IsZero() {
		m.interruptRecv = time.Now()
	}
}

// StampInterruptDone records when a strong cancel finished tearing the turn
// down. Later calls are no-ops.
func (m *TurnMetrics) StampInterruptDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interruptDone.IsZero() {
		m.interruptDone = time.Now()
	}
}

// SetOutcome records the final outcome. The first non-empty outcome wins so
// an error reported mid-turn is not overwritten by the shutdown path.
func (m *TurnMetrics) SetOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome == "" {
		m.outcome = outcome
	}
}

// SetError records the outcome as OutcomeError with kind and message.
func (m *TurnMetrics) SetError(kind, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome == "" {
		m.outcome = OutcomeError
		m.errKind = kind
		m.errMsg = msg
	}
}

// Outcome returns the recorded outcome, empty while the turn is live.
func (m *TurnMetrics) Outcome() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Record converts the collected stamps into a persistable record.
func (m *TurnMetrics) Record(sessionID string, turnID int) metrics.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := metrics.Record{
		Timestamp: m.received.UTC(),
		SessionID: sessionID,
		TurnID:    turnID,
		Outcome:   m.outcome,
		ErrKind:   m.errKind,
		ErrMsg:    m.errMsg,
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeOK
	}
	rec.FirstDeltaMS = deltaMS(m.received, m.firstDelta)
	rec.FirstAudioMS = deltaMS(m.received, m.firstAudio)
	rec.TotalMS = deltaMS(m.received, m.done)
	rec.InterruptMS = deltaMS(m.interruptRecv, m.interruptDone)
	return rec
}

func deltaMS(from, to time.Time) *int64 {
	if from.IsZero() || to.IsZero() {
		return nil
	}
	ms := to.Sub(from).Milliseconds()
	return &ms
}
