package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pitchlab/pitchcoach/internal/agent"
	"github.com/pitchlab/pitchcoach/internal/analysis"
	"github.com/pitchlab/pitchcoach/internal/config"
	"github.com/pitchlab/pitchcoach/internal/httpapi"
	"github.com/pitchlab/pitchcoach/internal/observability"
	"github.com/pitchlab/pitchcoach/internal/relay"
	"github.com/pitchlab/pitchcoach/internal/scenario"
	"github.com/pitchlab/pitchcoach/internal/speech"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Hub       *relay.Hub
	Scenarios *scenario.Provider
	Agents    *agent.Registry
	Reports   analysis.Store
	Metrics   *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires the whole service from configuration. It never dials external
// backends; a misconfigured speech or model endpoint surfaces on first use,
// scoped to the request that needed it.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	scenarios, err := scenario.Load(cfg.ScenarioDir)
	if err != nil {
		return nil, fmt.Errorf("scenario load failed: %w", err)
	}

	reports, err := analysis.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("report store init failed: %w", err)
	}

	backend, err := resolveSpeechBackend(cfg)
	if err != nil {
		_ = reports.Close()
		return nil, err
	}

	hub := relay.NewHub(relay.NewStore(), backend, metrics, cfg.SpeechVoice)
	agents := agent.NewRegistry(cfg.ModelDeployment)
	analyzer := analysis.NewConversationAnalyzer(analysis.AnalyzerConfig{
		Endpoint:   cfg.OpenAIEndpoint,
		APIKey:     cfg.OpenAIAPIKey,
		Deployment: cfg.ModelDeployment,
		APIVersion: cfg.OpenAIAPIVersion,
	}, scenarios)
	assessor := analysis.NewPronunciationAssessor()

	api := httpapi.New(cfg, hub, scenarios, agents, analyzer, assessor, reports, metrics)

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Hub:       hub,
		Scenarios: scenarios,
		Agents:    agents,
		Reports:   reports,
		Metrics:   metrics,
		Cleanup:   reports.Close,
	}, nil
}

func resolveSpeechBackend(cfg config.Config) (speech.Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.SpeechProvider))
	switch provider {
	case "azure":
		if strings.TrimSpace(cfg.SpeechKey) == "" {
			return nil, fmt.Errorf("SPEECH_PROVIDER=azure but AZURE_SPEECH_KEY is not set")
		}
		log.Printf("speech provider: azure (%s)", cfg.SpeechRegion)
		return speech.NewAzureBackend(speech.AzureConfig{
			SubscriptionKey: cfg.SpeechKey,
			Region:          cfg.SpeechRegion,
		}), nil
	case "mock":
		log.Printf("speech provider: mock")
		return speech.NewMockBackend(), nil
	case "auto", "":
		if strings.TrimSpace(cfg.SpeechKey) != "" {
			log.Printf("speech provider: azure (%s)", cfg.SpeechRegion)
			return speech.NewAzureBackend(speech.AzureConfig{
				SubscriptionKey: cfg.SpeechKey,
				Region:          cfg.SpeechRegion,
			}), nil
		}
		log.Printf("speech provider: mock (no speech key configured)")
		return speech.NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("invalid SPEECH_PROVIDER: %q (expected auto|azure|mock)", cfg.SpeechProvider)
	}
}
