package edge

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestNewDefaultsVoice(t *testing.T) {
	if got := New("").voice; got != DefaultVoiceZH {
		t.Errorf("default voice = %q, want %q", got, DefaultVoiceZH)
	}
	if got := New(DefaultVoiceEN).voice; got != DefaultVoiceEN {
		t.Errorf("voice = %q, want %q", got, DefaultVoiceEN)
	}
}

func TestFormatIsRaw24kPCM(t *testing.T) {
	f := New("").Format()
	if f.SampleRate != 24000 || f.Channels != 1 || f.Encoding != "pcm_s16le" {
		t.Errorf("Format() = %+v, want 24kHz s16le mono", f)
	}
}

func TestSpeechConfigRequestsRawPCM(t *testing.T) {
	msg := string(speechConfig())
	if !strings.Contains(msg, "Path:speech.config") {
		t.Error("speech.config missing its Path header")
	}
	if !strings.Contains(msg, outputFormat) {
		t.Errorf("speech.config does not request %q", outputFormat)
	}
}

func TestSSMLMessage(t *testing.T) {
	msg := string(ssmlMessage("req-1", "zh-CN-XiaoxiaoNeural", "你好 <world> & \"friends\""))

	if !strings.Contains(msg, "X-RequestId:req-1\r\n") {
		t.Error("ssml message missing request id header")
	}
	if !strings.Contains(msg, "Path:ssml") {
		t.Error("ssml message missing Path header")
	}
	if !strings.Contains(msg, "<voice name='zh-CN-XiaoxiaoNeural'>") {
		t.Error("ssml message missing voice element")
	}
	if !strings.Contains(msg, "你好 &lt;world&gt; &amp; &quot;friends&quot;") {
		t.Errorf("utterance not escaped: %s", msg)
	}
	if strings.Contains(msg, "<world>") {
		t.Error("raw angle brackets leaked into ssml")
	}
}

func TestEscapeSSML(t *testing.T) {
	got := escapeSSML(`a & b < c > d ' e " f`)
	want := "a &amp; b &lt; c &gt; d &apos; e &quot; f"
	if got != want {
		t.Errorf("escapeSSML = %q, want %q", got, want)
	}
}

// buildFrame assembles a read-aloud binary frame with the given header block
// and payload.
func buildFrame(header string, payload []byte) []byte {
	frame := make([]byte, 2+len(header)+len(payload))
	binary.BigEndian.PutUint16(frame[:2], uint16(len(header)))
	copy(frame[2:], header)
	copy(frame[2+len(header):], payload)
	return frame
}

func TestAudioPayload(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	frame := buildFrame("X-RequestId:abc\r\nPath:audio\r\n", pcm)

	got := audioPayload(frame)
	if !bytes.Equal(got, pcm) {
		t.Errorf("audioPayload = %v, want %v", got, pcm)
	}
}

func TestAudioPayloadSkipsNonAudioFrames(t *testing.T) {
	frame := buildFrame("Path:turn.start\r\n", []byte{9, 9})
	if got := audioPayload(frame); got != nil {
		t.Errorf("non-audio frame yielded %v, want nil", got)
	}
}

func TestAudioPayloadRejectsTruncatedFrames(t *testing.T) {
	if got := audioPayload([]byte{0x00}); got != nil {
		t.Errorf("one-byte frame yielded %v, want nil", got)
	}
	// Header length pointing past the end of the frame.
	bad := []byte{0xff, 0xff, 'P'}
	if got := audioPayload(bad); got != nil {
		t.Errorf("truncated frame yielded %v, want nil", got)
	}
}

func TestAudioPayloadEmptyAudio(t *testing.T) {
	frame := buildFrame("Path:audio\r\n", nil)
	if got := audioPayload(frame); len(got) != 0 {
		t.Errorf("empty audio frame yielded %d bytes, want 0", len(got))
	}
}
