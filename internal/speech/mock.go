package speech

import (
	"context"
	"sync"
)

// MockBackend is a local fallback backend used when no speech key is
// configured. Synthesis output is deterministic silence-like PCM sized from
// the input text, so the relay's chunking and duration paths stay exercisable
// offline.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (b *MockBackend) OpenSession(_ context.Context, voice string) (Handle, error) {
	return &mockHandle{voice: voice}, nil
}

type mockHandle struct {
	voice string

	mu     sync.Mutex
	closed bool
}

func (h *mockHandle) Synthesize(_ context.Context, text string) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Result{}, errSessionClosed
	}
	// 320 bytes per rune is 10ms of 16kHz mono PCM per character.
	audio := make([]byte, len([]rune(text))*320)
	return Result{Audio: audio, Duration: pcmDuration(len(audio))}, nil
}

func (h *mockHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
