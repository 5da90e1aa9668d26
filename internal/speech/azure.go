package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// Synthesis output is raw PCM so duration falls out of the byte count.
	outputFormat   = "raw-16khz-16bit-mono-pcm"
	sampleRate     = 16000
	bytesPerSample = 2

	maxAudioResponseBytes = 32 << 20
)

var errSessionClosed = errors.New("speech session closed")

type AzureConfig struct {
	SubscriptionKey string
	Region          string

	// TokenBaseURL and TTSBaseURL override the regional endpoints, for tests.
	TokenBaseURL string
	TTSBaseURL   string

	HTTPClient *http.Client
}

// AzureBackend synthesizes speech through the Azure Cognitive Services REST
// API. OpenSession exchanges the subscription key for a bearer token up front,
// so bad credentials or a wrong region fail at configure time instead of on
// the first synthesis.
type AzureBackend struct {
	cfg    AzureConfig
	client *http.Client
}

func NewAzureBackend(cfg AzureConfig) *AzureBackend {
	if strings.TrimSpace(cfg.TokenBaseURL) == "" {
		cfg.TokenBaseURL = fmt.Sprintf("https://%s.api.cognitive.microsoft.com", cfg.Region)
	}
	if strings.TrimSpace(cfg.TTSBaseURL) == "" {
		cfg.TTSBaseURL = fmt.Sprintf("https://%s.tts.speech.microsoft.com", cfg.Region)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AzureBackend{cfg: cfg, client: client}
}

func (b *AzureBackend) OpenSession(ctx context.Context, voice string) (Handle, error) {
	if strings.TrimSpace(b.cfg.SubscriptionKey) == "" {
		return nil, errors.New("speech subscription key is not configured")
	}
	if strings.TrimSpace(voice) == "" {
		return nil, errors.New("voice name is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(b.cfg.TokenBaseURL, "/")+"/sts/v1.0/issueToken", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.cfg.SubscriptionKey)

	res, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request speech token: %w", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("speech credentials rejected: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return nil, errors.New("speech token endpoint returned an empty token")
	}

	return &azureHandle{backend: b, voice: voice, token: token}, nil
}

type azureHandle struct {
	backend *AzureBackend
	voice   string
	token   string

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// Synthesize runs to completion or hard backend error. No timeout is applied
// here beyond the HTTP client's own; the relay's lifecycle bound is the
// websocket disconnect.
func (h *azureHandle) Synthesize(ctx context.Context, text string) (Result, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return Result{}, errSessionClosed
	}

	ssml, err := buildSSML(h.voice, text)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.backend.cfg.TTSBaseURL, "/")+"/cognitiveservices/v1", bytes.NewReader(ssml))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)
	req.Header.Set("User-Agent", "pitchcoach")

	res, err := h.backend.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("speech synthesis request: %w", err)
	}
	defer res.Body.Close()
	audio, err := io.ReadAll(io.LimitReader(res.Body, maxAudioResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read synthesis response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Result{}, fmt.Errorf("speech synthesis failed: status %d: %s", res.StatusCode, strings.TrimSpace(string(audio)))
	}

	return Result{Audio: audio, Duration: pcmDuration(len(audio))}, nil
}

func (h *azureHandle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
	})
	return nil
}

func pcmDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / (sampleRate * bytesPerSample)
}

func buildSSML(voice, text string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, fmt.Errorf("escape synthesis text: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`<speak version='1.0' xml:lang='en-US'>`)
	buf.WriteString(`<voice name='`)
	if err := xml.EscapeText(&buf, []byte(voice)); err != nil {
		return nil, fmt.Errorf("escape voice name: %w", err)
	}
	buf.WriteString(`'>`)
	buf.Write(escaped.Bytes())
	buf.WriteString(`</voice></speak>`)
	return buf.Bytes(), nil
}
