// Package turn runs the per-turn reply pipeline: a streaming text generator
// fans out into assistant_delta control messages and a segmenter whose
// speakable chunks a synthesis worker turns into binary audio frames. The
// two workers share only the segment queue, the language latch and the
// turn's metrics; everything else is turn-local.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxline/voxline/internal/observe"
	"github.com/voxline/voxline/internal/protocol"
	"github.com/voxline/voxline/pkg/provider/generator"
	"github.com/voxline/voxline/pkg/provider/synth"
)

// segmentQueueDepth bounds the segment queue between the generator worker
// and the synthesis worker. Generation stalls when synthesis falls this far
// behind, which keeps memory bounded on very long replies.
const segmentQueueDepth = 16

// Sink is the write side of the client connection as the pipeline sees it.
// Implementations serialize concurrent senders so control and audio frames
// never interleave mid-frame.
type Sink interface {
	// SendControl JSON-encodes msg and sends it as a text frame.
	SendControl(msg any) error
	// SendBinary sends one binary frame.
	SendBinary(data []byte) error
	// SafeSendControl sends best-effort, swallowing transport errors.
	// Used on cleanup paths where the connection may already be gone.
	SafeSendControl(msg any)
}

// Config carries everything an Orchestrator needs for one turn.
type Config struct {
	TurnID   int
	UserText string

	Sink      Sink
	Generator generator.Provider
	// SynthZH is the default voice. SynthEN may be nil, in which case
	// English replies reuse SynthZH.
	SynthZH synth.Synthesizer
	SynthEN synth.Synthesizer

	Metrics *TurnMetrics
	// Obs, when set, counts provider calls and failures.
	Obs *observe.Metrics

	// LangAuto enables script-based voice selection; when false every turn
	// speaks with SynthZH.
	LangAuto    bool
	DecideRunes int

	// SessionTurn reads the session's current turn id. The turn is
	// superseded once it no longer matches TurnID.
	SessionTurn func() int

	// OnFinish runs exactly once after the pipeline has fully stopped,
	// with the turn's completed metrics.
	OnFinish func(*TurnMetrics)

	Log *slog.Logger
}

// Orchestrator drives one turn from user text to idle. Create with New,
// start with Start, pre-empt with Cancel.
type Orchestrator struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	ttsDone chan struct{}

	// audioStarted is written only by the synthesis worker and read after
	// ttsDone is closed.
	audioStarted bool
}

// New prepares an orchestrator for one turn. The parent context bounds the
// whole turn; Cancel and transport failures cancel the derived context.
func New(parent context.Context, cfg Config) *Orchestrator {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Orchestrator{
		cfg:     cfg,
		log:     log.With("turn_id", cfg.TurnID),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		ttsDone: make(chan struct{}),
	}
}

// Start runs the pipeline on its own goroutine.
func (o *Orchestrator) Start() {
	go o.run()
}

// Cancel sets the turn's cancellation signal. Workers notice at their next
// suspension point.
func (o *Orchestrator) Cancel() {
	o.cancel()
}

// Done is closed when the pipeline has fully stopped.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Metrics returns the turn's metrics collector.
func (o *Orchestrator) Metrics() *TurnMetrics {
	return o.cfg.Metrics
}

// TurnID returns the id this orchestrator is bound to.
func (o *Orchestrator) TurnID() int {
	return o.cfg.TurnID
}

// superseded reports whether the session has moved on to a later turn.
func (o *Orchestrator) superseded() bool {
	return o.cfg.SessionTurn() != o.cfg.TurnID
}

// stopped reports whether the turn may no longer emit frames.
func (o *Orchestrator) stopped() bool {
	return o.ctx.Err() != nil || o.superseded()
}

func (o *Orchestrator) run() {
	defer close(o.done)
	defer o.cancel()

	m := o.cfg.Metrics
	defer func() {
		m.StampDone()
		if m.Outcome() == "" {
			if o.ctx.Err() != nil || o.superseded() {
				m.SetOutcome(OutcomeCancelled)
			} else {
				m.SetOutcome(OutcomeOK)
			}
		}
		if o.cfg.OnFinish != nil {
			o.cfg.OnFinish(m)
		}
	}()

	if !o.sendControl(protocol.NewStateUpdate(o.cfg.TurnID, protocol.StateThinking)) {
		return
	}

	queue := make(chan string, segmentQueueDepth)
	router := newLanguageRouter(o.cfg.LangAuto, o.cfg.DecideRunes)
	go o.ttsWorker(queue, router)

	o.generate(queue, router)

	<-o.ttsDone

	// Cancelled turns go silent; the handler announces idle under the next
	// turn id. Errored turns still park the client at idle themselves.
	live := o.ctx.Err() == nil && !o.superseded() && m.Outcome() == ""
	if live && o.audioStarted {
		o.sendControl(protocol.NewAudioEnd(o.cfg.TurnID))
	}
	if live || (m.Outcome() == OutcomeError && !o.superseded()) {
		o.cfg.Sink.SafeSendControl(protocol.NewStateUpdate(o.cfg.TurnID, protocol.StateIdle))
	}
}

// ─── generator side ───────────────────────────────────────────────────────────

// generate consumes the generator stream, forwards deltas, feeds the
// segmenter and enqueues segments once the language is decided. It closes
// the segment queue on return.
func (o *Orchestrator) generate(queue chan<- string, router *languageRouter) {
	defer close(queue)

	m := o.cfg.Metrics
	seg := &Segmenter{}
	var full strings.Builder

	stream, err := o.cfg.Generator.Stream(o.ctx, o.cfg.UserText)
	o.countProviderRequest(ErrKindGenerator, err)
	if err != nil {
		o.failTurn(ErrKindGenerator, err)
		return
	}

	for chunk := range stream {
		if o.stopped() {
			return
		}
		if chunk.Err != nil {
			o.failTurn(ErrKindGenerator, chunk.Err)
			return
		}
		if chunk.Delta == "" {
			continue
		}

		m.StampFirstDelta()
		full.WriteString(chunk.Delta)
		if !o.sendControl(protocol.NewAssistantDelta(o.cfg.TurnID, chunk.Delta)) {
			return
		}

		router.Feed(chunk.Delta)
		seg.Push(chunk.Delta)

		// Segments are held back until the voice is decided so the first
		// one never plays with the wrong language.
		if isDecided(router) {
			if !o.drainSegments(queue, seg) {
				return
			}
		}
	}

	if o.stopped() {
		return
	}

	router.Force()
	if !o.drainSegments(queue, seg) {
		return
	}
	if tail := seg.Flush(); tail != "" {
		if !o.enqueue(queue, tail) {
			return
		}
	}
	o.sendControl(protocol.NewAssistantFinal(o.cfg.TurnID, full.String()))
}

func (o *Orchestrator) drainSegments(queue chan<- string, seg *Segmenter) bool {
	for {
		s, ok := seg.Pop()
		if !ok {
			return true
		}
		if !o.enqueue(queue, s) {
			return false
		}
	}
}

func (o *Orchestrator) enqueue(queue chan<- string, segment string) bool {
	select {
	case queue <- segment:
		return true
	case <-o.ctx.Done():
		return false
	}
}

func isDecided(router *languageRouter) bool {
	select {
	case <-router.Decided():
		return true
	default:
		return false
	}
}

// ─── synthesis side ───────────────────────────────────────────────────────────

// ttsWorker waits for the language decision, then speaks queued segments
// until the queue closes or the turn is cancelled.
func (o *Orchestrator) ttsWorker(queue <-chan string, router *languageRouter) {
	defer close(o.ttsDone)

	select {
	case <-router.Decided():
	case <-o.ctx.Done():
		return
	}

	syn := o.cfg.SynthZH
	if router.Choice() == LangEnglish && o.cfg.SynthEN != nil {
		syn = o.cfg.SynthEN
	}

	var seq uint32
	for {
		if o.stopped() {
			return
		}
		var segment string
		var ok bool
		select {
		case segment, ok = <-queue:
			if !ok {
				return
			}
		case <-o.ctx.Done():
			return
		}
		if strings.TrimSpace(segment) == "" {
			continue
		}
		if !o.speak(syn, segment, &seq) {
			return
		}
	}
}

// speak synthesizes one segment. The first chunk is probed before any
// announcement so a segment that produces no audio emits nothing at all.
func (o *Orchestrator) speak(syn synth.Synthesizer, segment string, seq *uint32) bool {
	chunks, err := syn.Synthesize(o.ctx, segment)
	o.countProviderRequest(ErrKindTTS, err)
	if err != nil {
		o.failTurn(ErrKindTTS, err)
		return false
	}

	for {
		var pcm []byte
		var ok bool
		select {
		case pcm, ok = <-chunks:
			if !ok {
				return true
			}
		case <-o.ctx.Done():
			return false
		}
		if len(pcm) == 0 {
			continue
		}
		if o.stopped() {
			return false
		}

		if !o.audioStarted {
			if !o.sendControl(protocol.NewStateUpdate(o.cfg.TurnID, protocol.StateSpeaking)) {
				return false
			}
			f := syn.Format()
			begin := protocol.AudioBegin{
				Type:       protocol.TypeAudioBegin,
				TurnID:     o.cfg.TurnID,
				MIME:       f.MIME,
				Format:     f.Encoding,
				SampleRate: f.SampleRate,
				Channels:   f.Channels,
			}
			if !o.sendControl(begin) {
				return false
			}
			o.audioStarted = true
		}

		o.cfg.Metrics.StampFirstAudio()
		frame := protocol.EncodeAudioFrame(uint32(o.cfg.TurnID), *seq, pcm)
		if !o.sendBinary(frame) {
			return false
		}
		*seq++
	}
}

// ─── shared plumbing ──────────────────────────────────────────────────────────

// sendControl sends a control message unless the turn is stopped. Transport
// failure counts as implicit cancellation.
func (o *Orchestrator) sendControl(msg any) bool {
	if o.stopped() {
		return false
	}
	if err := o.cfg.Sink.SendControl(msg); err != nil {
		o.log.Warn("control send failed", "err", err)
		o.cancel()
		return false
	}
	return true
}

func (o *Orchestrator) sendBinary(frame []byte) bool {
	if o.stopped() {
		return false
	}
	if err := o.cfg.Sink.SendBinary(frame); err != nil {
		o.log.Warn("audio send failed", "err", err)
		o.cancel()
		return false
	}
	return true
}

// countProviderRequest counts one provider call; a nil err is an "ok" call.
func (o *Orchestrator) countProviderRequest(kind string, err error) {
	if o.cfg.Obs == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.cfg.Obs.RecordProviderRequest(o.ctx, kind, status)
}

// failTurn reports an adapter failure to the client, records it and cancels
// the pipeline. Cancelled and superseded turns stay silent.
func (o *Orchestrator) failTurn(kind string, err error) {
	if o.cfg.Obs != nil {
		o.cfg.Obs.RecordProviderError(o.ctx, kind)
	}
	if o.ctx.Err() == nil && !o.superseded() {
		o.cfg.Metrics.SetError(kind, err.Error())
		o.cfg.Sink.SafeSendControl(protocol.NewError(o.cfg.TurnID, fmt.Sprintf("%s error: %v", kind, err)))
		o.log.Error("turn failed", "kind", kind, "err", err)
	}
	o.cancel()
}
