package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pitchlab/pitchcoach/internal/agent"
	"github.com/pitchlab/pitchcoach/internal/analysis"
	"github.com/pitchlab/pitchcoach/internal/config"
	"github.com/pitchlab/pitchcoach/internal/observability"
	"github.com/pitchlab/pitchcoach/internal/relay"
	"github.com/pitchlab/pitchcoach/internal/scenario"
)

// Analyzer scores a conversation transcript against a scenario's rubric.
type Analyzer interface {
	Analyze(ctx context.Context, scenarioID, transcript string) (*analysis.Assessment, error)
}

// Assessor scores the user's captured audio.
type Assessor interface {
	Assess(chunks []analysis.AudioChunk, referenceText string) (*analysis.PronunciationResult, error)
}

type Server struct {
	cfg       config.Config
	hub       *relay.Hub
	scenarios *scenario.Provider
	agents    *agent.Registry
	analyzer  Analyzer
	assessor  Assessor
	reports   analysis.Store
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(
	cfg config.Config,
	hub *relay.Hub,
	scenarios *scenario.Provider,
	agents *agent.Registry,
	analyzer Analyzer,
	assessor Assessor,
	reports analysis.Store,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:       cfg,
		hub:       hub,
		scenarios: scenarios,
		agents:    agents,
		analyzer:  analyzer,
		assessor:  assessor,
		reports:   reports,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Other sites must not be
				// able to drive a training session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/api/config", s.handleConfig)
	r.Get("/api/scenarios", s.handleListScenarios)
	r.Get("/api/scenarios/{id}", s.handleGetScenario)
	r.Post("/api/agents/create", s.handleCreateAgent)
	r.Delete("/api/agents/{id}", s.handleDeleteAgent)
	r.Post("/api/analyze", s.handleAnalyze)
	r.Get("/api/reports", s.handleListReports)

	r.Get("/ws/voice", s.handleVoiceWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"proxy_enabled": s.speechEnabled(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"proxy_enabled": s.speechEnabled(),
		"ws_endpoint":   "/ws/voice",
		"default_voice": s.cfg.SpeechVoice,
	})
}

func (s *Server) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"scenarios": s.scenarios.List()})
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scn, ok := s.scenarios.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "scenario_not_found", "unknown scenario: "+id)
		return
	}
	respondJSON(w, http.StatusOK, scn)
}

type createAgentRequest struct {
	ScenarioID string `json:"scenario_id"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ScenarioID) == "" {
		respondError(w, http.StatusBadRequest, "missing_scenario_id", "scenario_id is required")
		return
	}

	scn, ok := s.scenarios.Get(req.ScenarioID)
	if !ok {
		respondError(w, http.StatusNotFound, "scenario_not_found", "unknown scenario: "+req.ScenarioID)
		return
	}

	a := s.agents.Create(scn)
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	s.agents.Delete(chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type analyzeRequest struct {
	ScenarioID    string                `json:"scenario_id"`
	Transcript    string                `json:"transcript"`
	AudioChunks   []analysis.AudioChunk `json:"audio_chunks"`
	ReferenceText string                `json:"reference_text"`
}

// handleAnalyze runs conversation scoring and pronunciation assessment in
// parallel. One side failing does not discard the other: the report carries
// whatever succeeded, and the request only fails when both do.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ScenarioID) == "" {
		respondError(w, http.StatusBadRequest, "missing_scenario_id", "scenario_id is required")
		return
	}
	if strings.TrimSpace(req.Transcript) == "" && len(req.AudioChunks) == 0 {
		respondError(w, http.StatusBadRequest, "empty_analysis", "transcript or audio_chunks required")
		return
	}

	var (
		wg            sync.WaitGroup
		assessment    *analysis.Assessment
		assessmentErr error
		pronunciation *analysis.PronunciationResult
		pronErr       error
	)

	if strings.TrimSpace(req.Transcript) != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assessment, assessmentErr = s.analyzer.Analyze(r.Context(), req.ScenarioID, req.Transcript)
		}()
	}
	if len(req.AudioChunks) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pronunciation, pronErr = s.assessor.Assess(req.AudioChunks, req.ReferenceText)
		}()
	}
	wg.Wait()

	if assessmentErr != nil {
		log.Printf("httpapi: conversation analysis failed: %v", assessmentErr)
	}
	if pronErr != nil {
		log.Printf("httpapi: pronunciation assessment failed: %v", pronErr)
	}

	if assessment == nil && pronunciation == nil {
		s.metrics.AnalysisRequests.WithLabelValues("failed").Inc()
		if errors.Is(assessmentErr, analysis.ErrEvaluationNotFound) {
			respondError(w, http.StatusNotFound, "evaluation_not_found", assessmentErr.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "analysis_failed", "no analysis result available")
		return
	}

	outcome := "ok"
	if assessmentErr != nil || pronErr != nil {
		outcome = "partial"
	}
	s.metrics.AnalysisRequests.WithLabelValues(outcome).Inc()

	report := analysis.Report{
		ScenarioID:    req.ScenarioID,
		Transcript:    req.Transcript,
		Assessment:    assessment,
		Pronunciation: pronunciation,
	}
	if err := s.reports.SaveReport(r.Context(), report); err != nil {
		// The caller still gets their result; persistence is best effort here.
		log.Printf("httpapi: save report failed: %v", err)
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	scenarioID := strings.TrimSpace(r.URL.Query().Get("scenario_id"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := s.reports.RecentReports(r.Context(), scenarioID, limit)
	if err != nil {
		log.Printf("httpapi: list reports failed: %v", err)
		respondError(w, http.StatusInternalServerError, "reports_unavailable", "could not load reports")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// speechEnabled mirrors the backend selection in app wiring: a mock provider
// always works, azure needs credentials.
func (s *Server) speechEnabled() bool {
	if strings.EqualFold(s.cfg.SpeechProvider, "mock") {
		return true
	}
	return s.cfg.SpeechKey != ""
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
