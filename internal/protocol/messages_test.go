package protocol

import (
	"errors"
	"testing"
)

func TestParseConfigureSessionVoiceName(t *testing.T) {
	raw := []byte(`{"type":"configure-session","session":{"voice":{"name":"test-voice"},"modalities":["text","audio"]}}`)
	msg, err := ParseConfigureSession(raw)
	if err != nil {
		t.Fatalf("ParseConfigureSession() error = %v", err)
	}
	if got := msg.Session.VoiceName(); got != "test-voice" {
		t.Fatalf("VoiceName() = %q, want %q", got, "test-voice")
	}
	if len(msg.Session.Modalities) != 2 {
		t.Fatalf("Modalities = %v, want 2 entries", msg.Session.Modalities)
	}
}

func TestParseConfigureSessionEmptyVoice(t *testing.T) {
	msg, err := ParseConfigureSession([]byte(`{"type":"configure-session","session":{}}`))
	if err != nil {
		t.Fatalf("ParseConfigureSession() error = %v", err)
	}
	if got := msg.Session.VoiceName(); got != "" {
		t.Fatalf("VoiceName() = %q, want empty", got)
	}
}

func TestParseConfigureSessionMalformed(t *testing.T) {
	if _, err := ParseConfigureSession([]byte(`{"type":"configure-session","session":`)); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestParseSynthesizeText(t *testing.T) {
	msg, err := ParseSynthesizeText([]byte(`{"type":"synthesize-text","text":"hello"}`))
	if err != nil {
		t.Fatalf("ParseSynthesizeText() error = %v", err)
	}
	if msg.Text != "hello" {
		t.Fatalf("Text = %q, want %q", msg.Text, "hello")
	}
}

func TestParseSynthesizeTextRejectsEmpty(t *testing.T) {
	if _, err := ParseSynthesizeText([]byte(`{"type":"synthesize-text","text":"  "}`)); err == nil {
		t.Fatalf("expected error for blank text")
	}
}

func TestParseClientMessageDispatch(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"synthesize-text","text":"hi"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(SynthesizeText); !ok {
		t.Fatalf("message type = %T, want SynthesizeText", msg)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}
