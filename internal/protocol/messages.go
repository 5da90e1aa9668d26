package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants. Audio bytes travel as raw
// binary frames and carry no envelope.
type MessageType string

const (
	TypeConfigureSession MessageType = "configure-session"
	TypeSynthesizeText   MessageType = "synthesize-text"

	TypeSessionCreated MessageType = "session.created"
	TypeAudioReceived  MessageType = "audio.received"
	TypeAudioCompleted MessageType = "audio.completed"
	TypeError          MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// VoiceConfig selects the synthesis voice for a session.
type VoiceConfig struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// SessionConfig carries the client-supplied session settings. Everything
// besides the voice name is opaque pass-through for the relay.
type SessionConfig struct {
	Voice                   *VoiceConfig    `json:"voice,omitempty"`
	Modalities              []string        `json:"modalities,omitempty"`
	Instructions            string          `json:"instructions,omitempty"`
	InputAudioFormat        string          `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string          `json:"output_audio_format,omitempty"`
	Tools                   json.RawMessage `json:"tools,omitempty"`
	Temperature             *float64        `json:"temperature,omitempty"`
	MaxResponseOutputTokens *int            `json:"max_response_output_tokens,omitempty"`
}

// VoiceName returns the configured voice name, if any.
func (c SessionConfig) VoiceName() string {
	if c.Voice == nil {
		return ""
	}
	return strings.TrimSpace(c.Voice.Name)
}

type ConfigureSession struct {
	Type    MessageType   `json:"type"`
	Session SessionConfig `json:"session"`
}

type SynthesizeText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type SessionCreated struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

type AudioReceived struct {
	Type MessageType `json:"type"`
	Size int         `json:"size"`
}

type AudioCompleted struct {
	Type            MessageType `json:"type"`
	DurationSeconds float64     `json:"durationSeconds"`
}

type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewError builds an outbound error event.
func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// ParseConfigureSession decodes a configure-session frame.
func ParseConfigureSession(raw []byte) (ConfigureSession, error) {
	var msg ConfigureSession
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ConfigureSession{}, fmt.Errorf("invalid configure-session payload: %w", err)
	}
	if msg.Type != TypeConfigureSession {
		return ConfigureSession{}, fmt.Errorf("unexpected type %q for configure-session", msg.Type)
	}
	return msg, nil
}

// ParseSynthesizeText decodes a synthesize-text frame.
func ParseSynthesizeText(raw []byte) (SynthesizeText, error) {
	var msg SynthesizeText
	if err := json.Unmarshal(raw, &msg); err != nil {
		return SynthesizeText{}, fmt.Errorf("invalid synthesize-text payload: %w", err)
	}
	if msg.Type != TypeSynthesizeText {
		return SynthesizeText{}, fmt.Errorf("unexpected type %q for synthesize-text", msg.Type)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return SynthesizeText{}, errors.New("synthesize-text requires non-empty text")
	}
	return msg, nil
}

// ParseClientMessage decodes any inbound text frame into its typed form.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeConfigureSession:
		return ParseConfigureSession(raw)
	case TypeSynthesizeText:
		return ParseSynthesizeText(raw)
	default:
		return nil, ErrUnsupportedType
	}
}
