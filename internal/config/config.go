package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the sales-training relay service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	SpeechProvider string
	SpeechKey      string
	SpeechRegion   string
	SpeechVoice    string

	OpenAIEndpoint   string
	OpenAIAPIKey     string
	OpenAIAPIVersion string
	ModelDeployment  string

	ScenarioDir string
	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "pitchcoach"),
		AllowAnyOrigin:   false,
		SpeechProvider:   envOrDefault("SPEECH_PROVIDER", "auto"),
		SpeechKey:        envTrimmed("AZURE_SPEECH_KEY"),
		SpeechRegion:     envOrDefault("AZURE_SPEECH_REGION", "swedencentral"),
		// Default to the voice the training personas ship with.
		SpeechVoice:      envOrDefault("AZURE_VOICE_NAME", "en-US-Ava:DragonHDLatestNeural"),
		OpenAIEndpoint:   envTrimmed("AZURE_OPENAI_ENDPOINT"),
		OpenAIAPIKey:     envTrimmed("AZURE_OPENAI_API_KEY"),
		OpenAIAPIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2024-12-01-preview"),
		ModelDeployment:  envOrDefault("MODEL_DEPLOYMENT_NAME", "gpt-4o"),
		ScenarioDir:      envOrDefault("APP_SCENARIO_DIR", "scenarios"),
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ShutdownTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be at least 1s")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SpeechProvider)) {
	case "auto", "azure", "mock":
	default:
		return Config{}, fmt.Errorf("invalid SPEECH_PROVIDER: %q (expected auto|azure|mock)", cfg.SpeechProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
