// ABOUTME: VoiceBridge protocol message type definitions
// ABOUTME: Defines structs for client frames and relay events
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client-to-relay message types
const (
	TypeAudioChunk = "audio_chunk"
	TypeAudio      = "audio" // legacy alias for TypeAudioChunk
	TypeEndTurn    = "end-turn"
	TypeEndTurnAlt = "endTurn" // legacy alias for TypeEndTurn
)

// Relay-to-client event types
const (
	EventOpen            = "open"
	EventText            = "text"
	EventAudio           = "audio"
	EventFileRef         = "file"
	EventTurnComplete    = "turn-complete"
	EventError           = "error"
	EventPaymentRequired = "payment-required"
)

// ClientMessage is a message from the client to the relay
type ClientMessage struct {
	Type        string `json:"type"`
	Data        string `json:"data,omitempty"` // base64-encoded PCM frame
	MimeType    string `json:"mimeType,omitempty"`
	IsEndOfTurn bool   `json:"isEndOfTurn,omitempty"`
}

// IsAudioFrame reports whether the message carries an audio frame
func (m ClientMessage) IsAudioFrame() bool {
	return m.Type == TypeAudioChunk || m.Type == TypeAudio
}

// IsEndTurn reports whether the message is an explicit end-turn control
func (m ClientMessage) IsEndTurn() bool {
	return m.Type == TypeEndTurn || m.Type == TypeEndTurnAlt
}

// ServerEvent is an event from the relay to the client
type ServerEvent struct {
	Type     string `json:"type"`
	Data     string `json:"data,omitempty"` // text delta, base64 audio, or error detail
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"` // file reference
}

// ParseClientMessage decodes and validates one inbound client message
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("malformed client message: %w", err)
	}

	switch {
	case msg.IsAudioFrame(), msg.IsEndTurn():
		return msg, nil
	case msg.Type == "":
		return msg, fmt.Errorf("client message missing type")
	default:
		return msg, fmt.Errorf("unknown client message type: %s", msg.Type)
	}
}

// ParseServerEvent decodes one inbound relay event on the client side
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("malformed server event: %w", err)
	}
	if ev.Type == "" {
		return ev, fmt.Errorf("server event missing type")
	}
	return ev, nil
}
