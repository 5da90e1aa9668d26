package speech

import (
	"context"
	"time"
)

// Result is one completed synthesis: raw audio plus its playback duration.
type Result struct {
	Audio    []byte
	Duration time.Duration
}

// Handle is one live speech-engine session. It owns an external resource and
// must be released with Close, which is idempotent.
type Handle interface {
	Synthesize(ctx context.Context, text string) (Result, error)
	Close() error
}

// Backend opens speech sessions against a synthesis engine. OpenSession fails
// when the engine rejects the configured credentials or region.
type Backend interface {
	OpenSession(ctx context.Context, voice string) (Handle, error)
}
