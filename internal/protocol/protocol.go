// Package protocol defines the wire messages exchanged on the conversation
// socket: JSON control messages in text frames and AUD0 audio frames in
// binary frames.
//
// Every outbound message embeds the turn id it belongs to; clients drop any
// frame whose turn id is below their current turn.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Control message type tags.
const (
	TypeHello          = "hello"
	TypeStateUpdate    = "state_update"
	TypeAssistantDelta = "assistant_delta"
	TypeAssistantFinal = "assistant_final"
	TypeAudioBegin     = "audio_begin"
	TypeAudioEnd       = "audio_end"
	TypeAudioCancel    = "audio_cancel"
	TypeError          = "error"

	TypeUserText  = "user_text"
	TypeInterrupt = "interrupt"
)

// Turn states announced via state_update.
const (
	StateThinking = "thinking"
	StateSpeaking = "speaking"
	StateIdle     = "idle"
)

// Inbound is the envelope for client → server control messages.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseInbound decodes a client text frame.
func ParseInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("protocol: parse inbound: %w", err)
	}
	return msg, nil
}

// Hello is the one-shot greeting sent on connection accept.
type Hello struct {
	Type             string `json:"type"`
	Msg              string `json:"msg"`
	SessionID        string `json:"session_id"`
	ServerInstanceID string `json:"server_instance_id"`
	TurnIDReset      int    `json:"turn_id_reset"`
}

// NewHello builds the greeting for a fresh session.
func NewHello(sessionID, instanceID string) Hello {
	return Hello{
		Type:             TypeHello,
		Msg:              "connected",
		SessionID:        sessionID,
		ServerInstanceID: instanceID,
		TurnIDReset:      0,
	}
}

// StateUpdate announces a turn state transition.
type StateUpdate struct {
	Type   string `json:"type"`
	TurnID int    `json:"turn_id"`
	State  string `json:"state"`
}

// NewStateUpdate builds a state_update message.
func NewStateUpdate(turnID int, state string) StateUpdate {
	return StateUpdate{Type: TypeStateUpdate, TurnID: turnID, State: state}
}

// AssistantDelta carries one incremental reply fragment.
type AssistantDelta struct {
	Type   string `json:"type"`
	TurnID int    `json:"turn_id"`
	Delta  string `json:"delta"`
}

// NewAssistantDelta builds an assistant_delta message.
func NewAssistantDelta(turnID int, delta string) AssistantDelta {
	return AssistantDelta{Type: TypeAssistantDelta, TurnID: turnID, Delta: delta}
}

// AssistantFinal carries the complete reply text.
type AssistantFinal struct {
	Type   string `json:"type"`
	TurnID int    `json:"turn_id"`
	Text   string `json:"text"`
}

// NewAssistantFinal builds an assistant_final message.
func NewAssistantFinal(turnID int, text string) AssistantFinal {
	return AssistantFinal{Type: TypeAssistantFinal, TurnID: turnID, Text: text}
}

// AudioBegin announces the start of audio for a turn with format metadata.
type AudioBegin struct {
	Type       string `json:"type"`
	TurnID     int    `json:"turn_id"`
	MIME       string `json:"mime"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// AudioEnd announces that all audio of a turn has been sent.
type AudioEnd struct {
	Type   string `json:"type"`
	TurnID int    `json:"turn_id"`
}

// NewAudioEnd builds an audio_end message.
func NewAudioEnd(turnID int) AudioEnd {
	return AudioEnd{Type: TypeAudioEnd, TurnID: turnID}
}

// AudioCancel tells the client to flush its playback buffer for a turn.
type AudioCancel struct {
	Type   string `json:"type"`
	TurnID int    `json:"turn_id"`
}

// NewAudioCancel builds an audio_cancel message.
func NewAudioCancel(turnID int) AudioCancel {
	return AudioCancel{Type: TypeAudioCancel, TurnID: turnID}
}

// Error reports a turn-local failure to the client.
type Error struct {
	Type   string `json:"type"`
	TurnID int    `json:"turn_id"`
	Msg    string `json:"msg"`
}

// NewError builds an error message.
func NewError(turnID int, msg string) Error {
	return Error{Type: TypeError, TurnID: turnID, Msg: msg}
}

// ─── Binary audio framing ─────────────────────────────────────────────────────

// FrameTag is the 4-byte ASCII tag opening every binary audio frame.
const FrameTag = "AUD0"

// frameHeaderLen is tag + turn id + sequence number.
const frameHeaderLen = 12

// EncodeAudioFrame builds one AUD0 frame:
// "AUD0" ‖ turn id (uint32 LE) ‖ seq (uint32 LE) ‖ PCM payload.
func EncodeAudioFrame(turnID, seq uint32, pcm []byte) []byte {
	frame := make([]byte, frameHeaderLen+len(pcm))
	copy(frame[0:4], FrameTag)
	binary.LittleEndian.PutUint32(frame[4:8], turnID)
	binary.LittleEndian.PutUint32(frame[8:12], seq)
	copy(frame[frameHeaderLen:], pcm)
	return frame
}

// DecodeAudioFrame parses an AUD0 frame. The returned payload aliases data.
func DecodeAudioFrame(data []byte) (turnID, seq uint32, pcm []byte, err error) {
	if len(data) < frameHeaderLen {
		return 0, 0, nil, fmt.Errorf("protocol: audio frame too short: %d bytes", len(data))
	}
	if string(data[0:4]) != FrameTag {
		return 0, 0, nil, fmt.Errorf("protocol: bad audio frame tag %q", data[0:4])
	}
	turnID = binary.LittleEndian.Uint32(data[4:8])
	seq = binary.LittleEndian.Uint32(data[8:12])
	return turnID, seq, data[frameHeaderLen:], nil
}
