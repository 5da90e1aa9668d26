package relay

import (
	"context"
	"log"
	"time"

	"github.com/pitchlab/pitchcoach/internal/observability"
	"github.com/pitchlab/pitchcoach/internal/protocol"
	"github.com/pitchlab/pitchcoach/internal/speech"
)

// AudioChunkSize bounds each outbound binary audio frame.
const AudioChunkSize = 8192

// EventSink delivers events back to one client connection. Implementations
// must be safe for use from the connection's dispatch goroutine only; the hub
// never writes to a sink from more than one goroutine at a time.
type EventSink interface {
	SendEvent(event any) error
	SendAudio(chunk []byte) error
}

// Hub services relay operations for all connections. Each connection's events
// are dispatched sequentially by its reader goroutine, so per-connection
// ordering holds without any hub-level locking; the store serializes the
// cross-connection state.
//
// Failures are never fatal: every backend error becomes exactly one error
// event on the connection that caused it, with no retries.
type Hub struct {
	store        *Store
	backend      speech.Backend
	metrics      *observability.Metrics
	defaultVoice string
}

func NewHub(store *Store, backend speech.Backend, metrics *observability.Metrics, defaultVoice string) *Hub {
	return &Hub{
		store:        store,
		backend:      backend,
		metrics:      metrics,
		defaultVoice: defaultVoice,
	}
}

// ConfigureSession parses the raw configure-session frame, opens a backend
// session and registers it under the connection id. A reconfigure replaces
// the previous session, releasing its handle first.
func (h *Hub) ConfigureSession(ctx context.Context, connID string, raw []byte, sink EventSink) {
	msg, err := protocol.ParseConfigureSession(raw)
	if err != nil {
		h.metrics.RelayEvents.WithLabelValues("configure_invalid").Inc()
		h.sendError(sink, "invalid session configuration: "+err.Error())
		return
	}

	voice := msg.Session.VoiceName()
	if voice == "" {
		voice = h.defaultVoice
	}

	handle, err := h.backend.OpenSession(ctx, voice)
	if err != nil {
		log.Printf("relay: open session failed for %s: %v", connID, err)
		h.metrics.BackendErrors.WithLabelValues("open_session").Inc()
		h.sendError(sink, "speech backend unavailable: "+err.Error())
		return
	}

	h.store.Put(connID, &Session{
		ID:        connID,
		Voice:     voice,
		Handle:    handle,
		CreatedAt: time.Now().UTC(),
	})
	h.metrics.ActiveSessions.Set(float64(h.store.Len()))
	h.metrics.RelayEvents.WithLabelValues("session_created").Inc()

	_ = sink.SendEvent(protocol.SessionCreated{Type: protocol.TypeSessionCreated, SessionID: connID})
}

// SendAudioData acknowledges inbound audio for a configured connection.
// Recognition forwarding is an acknowledgment-only placeholder: the bytes are
// counted, echoed back as audio.received and dropped.
func (h *Hub) SendAudioData(connID string, data []byte, sink EventSink) {
	if _, ok := h.store.Get(connID); !ok {
		h.sendError(sink, "no active session")
		return
	}
	_ = sink.SendEvent(protocol.AudioReceived{Type: protocol.TypeAudioReceived, Size: len(data)})
}

// SynthesizeText runs text-to-speech on the connection's session and streams
// the result back as ordered binary chunks followed by one audio.completed.
// A backend failure leaves the session registered and usable.
func (h *Hub) SynthesizeText(ctx context.Context, connID, text string, sink EventSink) {
	sess, ok := h.store.Get(connID)
	if !ok {
		h.sendError(sink, "no active session")
		return
	}

	start := time.Now()
	res, err := sess.Handle.Synthesize(ctx, text)
	if err != nil {
		log.Printf("relay: synthesis failed for %s: %v", connID, err)
		h.metrics.BackendErrors.WithLabelValues("synthesize").Inc()
		h.sendError(sink, "speech synthesis failed: "+err.Error())
		return
	}
	h.metrics.ObserveSynthesisLatency(time.Since(start))

	for off := 0; off < len(res.Audio); off += AudioChunkSize {
		end := off + AudioChunkSize
		if end > len(res.Audio) {
			end = len(res.Audio)
		}
		if err := sink.SendAudio(res.Audio[off:end]); err != nil {
			log.Printf("relay: audio delivery failed for %s: %v", connID, err)
			return
		}
	}
	_ = sink.SendEvent(protocol.AudioCompleted{Type: protocol.TypeAudioCompleted, DurationSeconds: res.Duration.Seconds()})
	h.metrics.RelayEvents.WithLabelValues("synthesis_completed").Inc()
}

// Disconnect releases the connection's backend resource. Safe to call for
// connections that never configured a session, and safe to call twice.
func (h *Hub) Disconnect(connID string) {
	h.store.Remove(connID)
	h.metrics.ActiveSessions.Set(float64(h.store.Len()))
	h.metrics.RelayEvents.WithLabelValues("disconnected").Inc()
}

func (h *Hub) sendError(sink EventSink, message string) {
	h.metrics.RelayEvents.WithLabelValues("error").Inc()
	_ = sink.SendEvent(protocol.NewError(message))
}
