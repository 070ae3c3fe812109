// Package edge provides a synth.Synthesizer backed by the Microsoft Edge
// read-aloud WebSocket endpoint. The service is keyless and returns raw
// 24 kHz s16le mono PCM when asked for the raw-24khz-16bit-mono-pcm output
// format, so no transcoding step is needed.
//
// Each Synthesize call opens a fresh connection; the read-aloud endpoint is
// single-utterance per request anyway, and a fresh dial keeps cancellation
// simple.
package edge

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/voxline/voxline/pkg/provider/synth"
)

const (
	endpoint     = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

	outputFormat = "raw-24khz-16bit-mono-pcm"
	sampleRate   = 24000

	// DefaultVoiceZH is the default Chinese voice.
	DefaultVoiceZH = "zh-CN-XiaoxiaoNeural"

	// DefaultVoiceEN is the default English voice.
	DefaultVoiceEN = "en-US-AriaNeural"
)

// Synthesizer streams PCM from the Edge read-aloud endpoint.
type Synthesizer struct {
	voice   string
	baseURL string
}

var _ synth.Synthesizer = (*Synthesizer)(nil)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithBaseURL overrides the WebSocket endpoint. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(s *Synthesizer) { s.baseURL = url }
}

// New constructs an edge Synthesizer for the given voice name
// (e.g. "zh-CN-XiaoxiaoNeural"). An empty voice selects DefaultVoiceZH.
func New(voice string, opts ...Option) *Synthesizer {
	if voice == "" {
		voice = DefaultVoiceZH
	}
	s := &Synthesizer{voice: voice, baseURL: endpoint}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Format implements synth.Synthesizer.
func (s *Synthesizer) Format() synth.Format {
	return synth.Format{
		MIME:       "audio/L16",
		Encoding:   "pcm_s16le",
		SampleRate: sampleRate,
		Channels:   1,
	}
}

// Synthesize implements synth.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	url := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s",
		s.baseURL, trustedToken, strings.ReplaceAll(uuid.NewString(), "-", ""))

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("edge: dial: %w", err)
	}

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := conn.Write(ctx, websocket.MessageText, speechConfig()); err != nil {
		conn.Close(websocket.StatusInternalError, "speech.config failed")
		return nil, fmt.Errorf("edge: send speech.config: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, ssmlMessage(requestID, s.voice, text)); err != nil {
		conn.Close(websocket.StatusInternalError, "ssml failed")
		return nil, fmt.Errorf("edge: send ssml: %w", err)
	}

	ch := make(chan []byte, 8)
	go func() {
		defer close(ch)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			switch typ {
			case websocket.MessageText:
				if strings.Contains(string(data), "Path:turn.end") {
					return
				}
			case websocket.MessageBinary:
				pcm := audioPayload(data)
				if len(pcm) == 0 {
					continue
				}
				select {
				case ch <- pcm:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// speechConfig builds the speech.config message requesting raw PCM output.
func speechConfig() []byte {
	var b strings.Builder
	b.WriteString("X-Timestamp:" + timestamp() + "\r\n")
	b.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	b.WriteString("Path:speech.config\r\n\r\n")
	b.WriteString(`{"context":{"synthesis":{"audio":{"metadataoptions":` +
		`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
		`"outputFormat":"` + outputFormat + `"}}}}`)
	return []byte(b.String())
}

// ssmlMessage builds the SSML request message for one utterance.
func ssmlMessage(requestID, voice, text string) []byte {
	var b strings.Builder
	b.WriteString("X-RequestId:" + requestID + "\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:" + timestamp() + "\r\n")
	b.WriteString("Path:ssml\r\n\r\n")
	b.WriteString(`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>`)
	b.WriteString(`<voice name='` + voice + `'>`)
	b.WriteString(escapeSSML(text))
	b.WriteString(`</voice></speak>`)
	return []byte(b.String())
}

// audioPayload extracts the PCM payload from a binary read-aloud frame:
// a 2-byte big-endian header length, the ASCII header block, then audio.
// Frames whose header is not Path:audio yield nil.
func audioPayload(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	headerLen := int(binary.BigEndian.Uint16(frame[:2]))
	if len(frame) < 2+headerLen {
		return nil
	}
	header := frame[2 : 2+headerLen]
	if !bytes.Contains(header, []byte("Path:audio")) {
		return nil
	}
	return frame[2+headerLen:]
}

// escapeSSML escapes XML-significant characters in utterance text.
func escapeSSML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&apos;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}

// timestamp renders the X-Timestamp header value the endpoint expects.
func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 2 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}
