package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxline/voxline/internal/metrics"
	"github.com/voxline/voxline/internal/observe"
	"github.com/voxline/voxline/internal/protocol"
	"github.com/voxline/voxline/internal/turn"
	"github.com/voxline/voxline/pkg/provider/generator"
	"github.com/voxline/voxline/pkg/provider/synth"
)

// cancelGrace bounds how long a strong cancel waits for the superseded
// pipeline to stop before abandoning it.
const cancelGrace = 200 * time.Millisecond

// Conn is the subset of [websocket.Conn] the handler needs.
type Conn interface {
	Socket
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
}

// HandlerConfig carries the shared collaborators every session uses.
type HandlerConfig struct {
	Generator generator.Provider
	// SynthZH is the default voice. SynthEN may be nil.
	SynthZH synth.Synthesizer
	SynthEN synth.Synthesizer

	Recorder *metrics.Recorder
	Obs      *observe.Metrics

	// InstanceID identifies this process in hello messages.
	InstanceID string

	LangAuto    bool
	DecideRunes int

	Log *slog.Logger
}

// Handler drives one conversation connection per Serve call. A single
// Handler is shared by all connections; per-connection state lives in
// [State].
type Handler struct {
	cfg HandlerConfig
	log *slog.Logger

	// Language settings are hot-reloadable, so turns read them through
	// atomics instead of the frozen cfg.
	langAuto    atomic.Bool
	decideRunes atomic.Int64

	sessions sync.WaitGroup
}

// NewHandler validates nothing beyond defaults; providers are assumed wired
// by the caller.
func NewHandler(cfg HandlerConfig) *Handler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{cfg: cfg, log: log}
	h.langAuto.Store(cfg.LangAuto)
	h.decideRunes.Store(int64(cfg.DecideRunes))
	return h
}

// SetLanguage applies reloaded language settings. New turns pick them up;
// in-flight turns keep their decision.
func (h *Handler) SetLanguage(auto bool, decideRunes int) {
	h.langAuto.Store(auto)
	h.decideRunes.Store(int64(decideRunes))
}

// Drain blocks until every active session has finished or ctx expires.
// Cancel the contexts passed to Serve first; Drain only waits.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session: drain: %w", ctx.Err())
	}
}

// Serve runs the session read loop until the client disconnects or ctx is
// cancelled. It always returns after the active turn has been cancelled and
// its metrics flushed.
func (h *Handler) Serve(ctx context.Context, conn Conn) {
	h.sessions.Add(1)
	defer h.sessions.Done()

	state := NewState()
	writer := NewFrameWriter(ctx, conn)
	log := h.log.With("session_id", state.ID)

	if h.cfg.Obs != nil {
		h.cfg.Obs.ActiveSessions.Add(ctx, 1)
		defer h.cfg.Obs.ActiveSessions.Add(ctx, -1)
	}
	log.Info("session opened")
	defer log.Info("session closed")

	if err := writer.SendControl(protocol.NewHello(state.ID, h.cfg.InstanceID)); err != nil {
		log.Warn("hello send failed", "err", err)
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if typ != websocket.MessageText {
			log.Debug("ignoring non-text inbound frame")
			continue
		}

		msg, err := protocol.ParseInbound(data)
		if err != nil {
			log.Warn("malformed inbound message", "err", err)
			h.countProtocolError(ctx, "parse")
			writer.SafeSendControl(protocol.NewError(state.TurnID(), "invalid message"))
			continue
		}

		switch msg.Type {
		case protocol.TypeUserText:
			h.onUserText(ctx, state, writer, log, msg.Text)
		case protocol.TypeInterrupt:
			h.onInterrupt(state, writer, log)
		default:
			log.Warn("unknown inbound type", "type", msg.Type)
			h.countProtocolError(ctx, "unknown_type")
			writer.SafeSendControl(protocol.NewError(state.TurnID(), "unknown type: "+msg.Type))
		}
	}

	// Disconnect: stop the pipeline without emitting further frames, but
	// give it the grace window so its metrics record still lands.
	if o := state.active; o != nil {
		o.Cancel()
		select {
		case <-o.Done():
		case <-time.After(cancelGrace):
		}
	}
}

// onUserText supersedes any in-flight turn and starts a new one. A
// superseded turn is announced with audio_cancel so the client flushes its
// playback buffer before the new turn's audio arrives.
func (h *Handler) onUserText(ctx context.Context, state *State, writer *FrameWriter, log *slog.Logger, text string) {
	prevTurn := state.TurnID()
	if h.strongCancel(state, writer, log) {
		writer.SafeSendControl(protocol.NewAudioCancel(prevTurn))
	}

	turnID := state.AdvanceTurn()
	m := turn.NewTurnMetrics()
	state.PutMetrics(turnID, m)

	fin := &finisher{
		handler: h,
		state:   state,
		turnID:  turnID,
		metrics: m,
	}

	o := turn.New(ctx, turn.Config{
		TurnID:      turnID,
		UserText:    text,
		Sink:        writer,
		Generator:   h.cfg.Generator,
		SynthZH:     h.cfg.SynthZH,
		SynthEN:     h.cfg.SynthEN,
		Metrics:     m,
		Obs:         h.cfg.Obs,
		LangAuto:    h.langAuto.Load(),
		DecideRunes: int(h.decideRunes.Load()),
		SessionTurn: state.TurnID,
		OnFinish:    func(*turn.TurnMetrics) { fin.complete() },
		Log:         log,
	})
	state.active = o
	state.finisher = fin
	log.Info("turn started", "turn_id", turnID, "chars", len([]rune(text)))
	o.Start()
}

// onInterrupt tears down the current turn and parks the session idle under a
// fresh turn id. audio_cancel goes out even when no turn is live, so a
// client can always flush its playback buffer.
func (h *Handler) onInterrupt(state *State, writer *FrameWriter, log *slog.Logger) {
	prevTurn := state.TurnID()
	h.strongCancel(state, writer, log)
	writer.SafeSendControl(protocol.NewAudioCancel(prevTurn))

	newTurn := state.AdvanceTurn()
	writer.SafeSendControl(protocol.NewStateUpdate(newTurn, protocol.StateIdle))
	log.Info("turn interrupted", "turn_id", prevTurn)
}

// strongCancel pre-empts the active turn: claim its finalization, set the
// cancellation signal, wait out the grace window, stamp the teardown and
// flush the metrics record. It reports whether a live turn was pre-empted.
func (h *Handler) strongCancel(state *State, writer *FrameWriter, log *slog.Logger) bool {
	o := state.active
	fin := state.finisher
	state.active = nil
	state.finisher = nil
	if o == nil {
		return false
	}
	select {
	case <-o.Done():
		return false
	default:
	}

	m := o.Metrics()
	m.StampInterruptRecv()
	if fin != nil {
		fin.claim()
	}

	o.Cancel()
	select {
	case <-o.Done():
	case <-time.After(cancelGrace):
		log.Warn("turn did not stop within grace window", "turn_id", o.TurnID())
	}

	m.StampInterruptDone()
	m.SetOutcome(turn.OutcomeCancelled)
	if fin != nil {
		fin.flush()
	}
	return true
}

func (h *Handler) countProtocolError(ctx context.Context, reason string) {
	if h.cfg.Obs != nil {
		h.cfg.Obs.RecordProtocolError(ctx, reason)
	}
}

// finisher flushes one turn's metrics record exactly once. Normally the
// pipeline flushes on completion; a strong cancel claims the flush first so
// the record includes the interrupt teardown stamp.
type finisher struct {
	handler *Handler
	state   *State
	turnID  int
	metrics *turn.TurnMetrics

	claimed atomic.Bool
	once    sync.Once
}

// complete is the pipeline-side flush; a claimed finisher defers to the
// handler.
func (f *finisher) complete() {
	if f.claimed.Load() {
		return
	}
	f.flush()
}

// claim reserves the flush for the handler. A pipeline that already flushed
// before the claim keeps its record; flush is once-guarded either way.
func (f *finisher) claim() {
	f.claimed.Store(true)
}

func (f *finisher) flush() {
	f.once.Do(func() {
		f.state.TakeMetrics(f.turnID)
		rec := f.metrics.Record(f.state.ID, f.turnID)
		f.handler.cfg.Recorder.Append(rec)
		f.handler.recordTurnObservations(rec)
	})
}

// recordTurnObservations mirrors the persisted record into the OTel
// instruments.
func (h *Handler) recordTurnObservations(rec metrics.Record) {
	obs := h.cfg.Obs
	if obs == nil {
		return
	}
	ctx := context.Background()
	obs.RecordTurnCompleted(ctx, rec.Outcome)
	recordLatency(ctx, obs.FirstDeltaLatency, rec.FirstDeltaMS)
	recordLatency(ctx, obs.FirstAudioLatency, rec.FirstAudioMS)
	recordLatency(ctx, obs.TurnDuration, rec.TotalMS)
	recordLatency(ctx, obs.InterruptLatency, rec.InterruptMS)
}

func recordLatency(ctx context.Context, h metric.Float64Histogram, ms *int64) {
	if ms == nil {
		return
	}
	h.Record(ctx, float64(*ms)/1000)
}
