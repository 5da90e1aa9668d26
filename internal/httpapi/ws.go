package httpapi

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pitchlab/pitchcoach/internal/protocol"
)

const (
	wsReadLimit     = 2 << 20
	wsReadDeadline  = 120 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// wsSink adapts a websocket connection to the relay's event sink. The mutex
// keeps writes single-threaded; gorilla connections do not allow concurrent
// writers.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) SendEvent(event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return s.conn.WriteJSON(event)
}

func (s *wsSink) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// handleVoiceWS owns one relay connection: a single read loop dispatches every
// frame in arrival order, so each client observes its events in the order its
// requests were processed. The connection id doubles as the session id.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	sink := &wsSink{conn: conn}
	defer s.hub.Disconnect(connID)

	log.Printf("httpapi: voice connection %s opened", connID)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		switch msgType {
		case websocket.BinaryMessage:
			s.metrics.WSMessages.WithLabelValues("inbound", "audio").Inc()
			s.hub.SendAudioData(connID, data, sink)

		case websocket.TextMessage:
			parsed, perr := protocol.ParseClientMessage(data)
			if perr != nil {
				s.metrics.WSMessages.WithLabelValues("inbound", "invalid").Inc()
				_ = sink.SendEvent(protocol.NewError("invalid message: " + perr.Error()))
				continue
			}
			switch msg := parsed.(type) {
			case protocol.ConfigureSession:
				s.metrics.WSMessages.WithLabelValues("inbound", string(msg.Type)).Inc()
				s.hub.ConfigureSession(r.Context(), connID, data, sink)
			case protocol.SynthesizeText:
				s.metrics.WSMessages.WithLabelValues("inbound", string(msg.Type)).Inc()
				s.hub.SynthesizeText(r.Context(), connID, msg.Text, sink)
			}

		default:
			// Ping/pong and close frames are handled by gorilla itself.
		}
	}

	log.Printf("httpapi: voice connection %s closed", connID)
}
