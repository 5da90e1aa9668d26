package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pitchlab/pitchcoach/internal/observability"
	"github.com/pitchlab/pitchcoach/internal/protocol"
	"github.com/pitchlab/pitchcoach/internal/speech"
)

type recordingSink struct {
	events []any
	audio  [][]byte
	order  []string
}

func (s *recordingSink) SendEvent(event any) error {
	s.events = append(s.events, event)
	s.order = append(s.order, "event")
	return nil
}

func (s *recordingSink) SendAudio(chunk []byte) error {
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.audio = append(s.audio, buf)
	s.order = append(s.order, "audio")
	return nil
}

func (s *recordingSink) errorEvents(t *testing.T) []protocol.ErrorEvent {
	t.Helper()
	var out []protocol.ErrorEvent
	for _, e := range s.events {
		if ev, ok := e.(protocol.ErrorEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

type stubBackend struct {
	openErr  error
	synthErr error
	audio    []byte
	duration time.Duration

	opened  []string
	handles []*stubHandle
}

func (b *stubBackend) OpenSession(_ context.Context, voice string) (speech.Handle, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened = append(b.opened, voice)
	h := &stubHandle{backend: b}
	b.handles = append(b.handles, h)
	return h, nil
}

type stubHandle struct {
	backend *stubBackend
	closes  int
}

func (h *stubHandle) Synthesize(context.Context, string) (speech.Result, error) {
	if h.backend.synthErr != nil {
		return speech.Result{}, h.backend.synthErr
	}
	return speech.Result{Audio: h.backend.audio, Duration: h.backend.duration}, nil
}

func (h *stubHandle) Close() error {
	h.closes++
	return nil
}

var hubTestCounter int

func newTestHub(backend speech.Backend) (*Hub, *Store) {
	hubTestCounter++
	metrics := observability.NewMetrics(fmt.Sprintf("test_relay_%d_%d", time.Now().UnixNano(), hubTestCounter))
	store := NewStore()
	return NewHub(store, backend, metrics, "default-voice"), store
}

func configureFrame(voice string) []byte {
	if voice == "" {
		return []byte(`{"type":"configure-session","session":{}}`)
	}
	return []byte(`{"type":"configure-session","session":{"voice":{"name":"` + voice + `"}}}`)
}

func TestConfigureSessionCreatesStoreEntry(t *testing.T) {
	backend := &stubBackend{}
	hub, store := newTestHub(backend)
	sink := &recordingSink{}

	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), sink)

	sess, ok := store.Get("conn-1")
	if !ok {
		t.Fatalf("store should hold a session after configure")
	}
	if sess.Handle == nil {
		t.Fatalf("session handle should be non-nil")
	}
	if sess.Voice != "test-voice" {
		t.Fatalf("session voice = %q, want %q", sess.Voice, "test-voice")
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	created, ok := sink.events[0].(protocol.SessionCreated)
	if !ok {
		t.Fatalf("event type = %T, want SessionCreated", sink.events[0])
	}
	if created.SessionID != "conn-1" {
		t.Fatalf("SessionID = %q, want %q", created.SessionID, "conn-1")
	}
}

func TestConfigureSessionUsesDefaultVoice(t *testing.T) {
	backend := &stubBackend{}
	hub, _ := newTestHub(backend)

	hub.ConfigureSession(context.Background(), "conn-1", configureFrame(""), &recordingSink{})

	if len(backend.opened) != 1 || backend.opened[0] != "default-voice" {
		t.Fatalf("opened voices = %v, want [default-voice]", backend.opened)
	}
}

func TestConfigureSessionMalformedPayload(t *testing.T) {
	backend := &stubBackend{}
	hub, store := newTestHub(backend)
	sink := &recordingSink{}

	hub.ConfigureSession(context.Background(), "conn-1", []byte(`{"type":"configure-session","session":{broken`), sink)

	if errs := sink.errorEvents(t); len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if store.Len() != 0 {
		t.Fatalf("store should stay empty on parse failure")
	}
	if len(backend.opened) != 0 {
		t.Fatalf("backend should not be touched on parse failure")
	}
}

func TestConfigureSessionBackendFailure(t *testing.T) {
	backend := &stubBackend{openErr: errors.New("401 unauthorized")}
	hub, store := newTestHub(backend)
	sink := &recordingSink{}

	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), sink)

	if errs := sink.errorEvents(t); len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if store.Len() != 0 {
		t.Fatalf("no session should be stored when the backend rejects")
	}
}

func TestReconfigureReleasesPreviousHandle(t *testing.T) {
	backend := &stubBackend{}
	hub, store := newTestHub(backend)

	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("voice-a"), &recordingSink{})
	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("voice-b"), &recordingSink{})

	if len(backend.handles) != 2 {
		t.Fatalf("handles opened = %d, want 2", len(backend.handles))
	}
	if backend.handles[0].closes != 1 {
		t.Fatalf("first handle closed %d times, want exactly 1", backend.handles[0].closes)
	}
	if backend.handles[1].closes != 0 {
		t.Fatalf("second handle closed %d times, want 0", backend.handles[1].closes)
	}
	if store.Len() != 1 {
		t.Fatalf("store Len() = %d, want 1", store.Len())
	}
}

func TestOperationsWithoutSessionEmitOneError(t *testing.T) {
	hub, store := newTestHub(&stubBackend{})

	audioSink := &recordingSink{}
	hub.SendAudioData("ghost", []byte{1, 2, 3}, audioSink)
	if len(audioSink.events) != 1 {
		t.Fatalf("events = %d, want exactly 1", len(audioSink.events))
	}
	if errs := audioSink.errorEvents(t); len(errs) != 1 || errs[0].Message != "no active session" {
		t.Fatalf("unexpected error events: %+v", audioSink.events)
	}

	synthSink := &recordingSink{}
	hub.SynthesizeText(context.Background(), "ghost", "hello", synthSink)
	if errs := synthSink.errorEvents(t); len(errs) != 1 || errs[0].Message != "no active session" {
		t.Fatalf("unexpected error events: %+v", synthSink.events)
	}
	if len(synthSink.audio) != 0 {
		t.Fatalf("no audio should be emitted without a session")
	}
	if store.Len() != 0 {
		t.Fatalf("store should be untouched")
	}
}

func TestSendAudioDataAcknowledgesSize(t *testing.T) {
	backend := &stubBackend{}
	hub, _ := newTestHub(backend)
	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), &recordingSink{})

	sink := &recordingSink{}
	hub.SendAudioData("conn-1", make([]byte, 640), sink)

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	ack, ok := sink.events[0].(protocol.AudioReceived)
	if !ok {
		t.Fatalf("event type = %T, want AudioReceived", sink.events[0])
	}
	if ack.Size != 640 {
		t.Fatalf("Size = %d, want 640", ack.Size)
	}
}

func TestSynthesizeTextChunksInOrder(t *testing.T) {
	audio := make([]byte, 10000)
	for i := range audio {
		audio[i] = byte(i % 251)
	}
	backend := &stubBackend{audio: audio, duration: 1200 * time.Millisecond}
	hub, _ := newTestHub(backend)
	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), &recordingSink{})

	sink := &recordingSink{}
	hub.SynthesizeText(context.Background(), "conn-1", "hello", sink)

	if len(sink.audio) != 2 {
		t.Fatalf("audio chunks = %d, want 2", len(sink.audio))
	}
	if len(sink.audio[0]) != 8192 || len(sink.audio[1]) != 1808 {
		t.Fatalf("chunk sizes = %d,%d, want 8192,1808", len(sink.audio[0]), len(sink.audio[1]))
	}
	reassembled := append(append([]byte{}, sink.audio[0]...), sink.audio[1]...)
	for i := range reassembled {
		if reassembled[i] != audio[i] {
			t.Fatalf("byte %d = %d, want %d (chunk order broken)", i, reassembled[i], audio[i])
		}
	}

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	done, ok := sink.events[0].(protocol.AudioCompleted)
	if !ok {
		t.Fatalf("event type = %T, want AudioCompleted", sink.events[0])
	}
	if done.DurationSeconds != 1.2 {
		t.Fatalf("DurationSeconds = %v, want 1.2", done.DurationSeconds)
	}
	if sink.order[len(sink.order)-1] != "event" {
		t.Fatalf("audio.completed must come after all chunks, got order %v", sink.order)
	}
}

func TestSynthesizeTextExactMultipleChunking(t *testing.T) {
	backend := &stubBackend{audio: make([]byte, 16384), duration: 512 * time.Millisecond}
	hub, _ := newTestHub(backend)
	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), &recordingSink{})

	sink := &recordingSink{}
	hub.SynthesizeText(context.Background(), "conn-1", "hello", sink)

	if len(sink.audio) != 2 {
		t.Fatalf("audio chunks = %d, want 2", len(sink.audio))
	}
	if len(sink.audio[0]) != 8192 || len(sink.audio[1]) != 8192 {
		t.Fatalf("chunk sizes = %d,%d, want 8192,8192", len(sink.audio[0]), len(sink.audio[1]))
	}
}

func TestSynthesizeTextBackendErrorKeepsSession(t *testing.T) {
	backend := &stubBackend{synthErr: errors.New("backend cancelled")}
	hub, store := newTestHub(backend)
	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), &recordingSink{})

	sink := &recordingSink{}
	hub.SynthesizeText(context.Background(), "conn-1", "hello", sink)

	if errs := sink.errorEvents(t); len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	if len(sink.audio) != 0 {
		t.Fatalf("no audio should be emitted on failure")
	}
	if _, ok := store.Get("conn-1"); !ok {
		t.Fatalf("session should survive a synthesis failure")
	}

	// And the session keeps working once the backend recovers.
	backend.synthErr = nil
	backend.audio = make([]byte, 100)
	backend.duration = 10 * time.Millisecond
	next := &recordingSink{}
	hub.SynthesizeText(context.Background(), "conn-1", "again", next)
	if len(next.audio) != 1 {
		t.Fatalf("audio chunks after recovery = %d, want 1", len(next.audio))
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	backend := &stubBackend{}
	hub, store := newTestHub(backend)
	hub.ConfigureSession(context.Background(), "conn-1", configureFrame("test-voice"), &recordingSink{})

	hub.Disconnect("conn-1")
	hub.Disconnect("conn-1")
	hub.Disconnect("never-configured")

	if store.Len() != 0 {
		t.Fatalf("store Len() = %d, want 0", store.Len())
	}
	if backend.handles[0].closes != 1 {
		t.Fatalf("handle closed %d times, want 1", backend.handles[0].closes)
	}
}
