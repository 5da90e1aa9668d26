package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pitchlab/pitchcoach/internal/scenario"
)

var (
	ErrEvaluationNotFound = errors.New("evaluation scenario not found")
	ErrNotConfigured      = errors.New("conversation analyzer not configured")
)

const evaluatorSystemPrompt = "You are an expert sales conversation evaluator. " +
	"Analyze the provided conversation and return a structured evaluation."

type AnalyzerConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	HTTPClient *http.Client
}

// ConversationAnalyzer scores a transcript against a scenario's evaluation
// prompt using a chat-completions deployment with a strict JSON-schema
// response format.
type ConversationAnalyzer struct {
	cfg       AnalyzerConfig
	scenarios *scenario.Provider
	client    *http.Client
}

func NewConversationAnalyzer(cfg AnalyzerConfig, scenarios *scenario.Provider) *ConversationAnalyzer {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2024-12-01-preview"
	}
	return &ConversationAnalyzer{cfg: cfg, scenarios: scenarios, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat json.RawMessage `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze evaluates a transcript for a scenario. The returned assessment has
// its section totals recomputed from the component scores, so a model that
// mis-sums cannot skew the headline numbers.
func (a *ConversationAnalyzer) Analyze(ctx context.Context, scenarioID, transcript string) (*Assessment, error) {
	eval, ok := a.scenarios.GetEvaluation(scenarioID)
	if !ok {
		return nil, ErrEvaluationNotFound
	}
	if strings.TrimSpace(a.cfg.Endpoint) == "" || strings.TrimSpace(a.cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: evaluatorSystemPrompt},
			{Role: "user", Content: buildEvaluationPrompt(eval.SystemPrompt(), transcript)},
		},
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(a.cfg.Endpoint, "/") +
		"/openai/deployments/" + url.PathEscape(a.cfg.Deployment) +
		"/chat/completions?api-version=" + url.QueryEscape(a.cfg.APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.cfg.APIKey)

	res, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evaluation request: %w", err)
	}
	defer res.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("evaluation bad status %d: %s", res.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode evaluation response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, errors.New("evaluation returned no content")
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &assessment); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}

	assessment.SpeakingToneStyle.Total = assessment.SpeakingToneStyle.ProfessionalTone +
		assessment.SpeakingToneStyle.ActiveListening +
		assessment.SpeakingToneStyle.EngagementQuality
	assessment.ConversationContent.Total = assessment.ConversationContent.NeedsAssessment +
		assessment.ConversationContent.ValueProposition +
		assessment.ConversationContent.ObjectionHandling

	log.Printf("analysis: evaluation processed for %s with score %d", scenarioID, assessment.OverallScore)
	return &assessment, nil
}

func buildEvaluationPrompt(basePrompt, transcript string) string {
	return basePrompt + `

EVALUATION CRITERIA:

**SPEAKING TONE & STYLE (30 points total):**
- professional_tone: 0-10 points for confident, consultative, appropriate business language
- active_listening: 0-10 points for acknowledging concerns and asking clarifying questions
- engagement_quality: 0-10 points for encouraging dialogue and thoughtful responses

**CONVERSATION CONTENT QUALITY (70 points total):**
- needs_assessment: 0-25 points for understanding customer challenges and goals
- value_proposition: 0-25 points for clear benefits with data/examples/reasoning
- objection_handling: 0-20 points for addressing concerns with constructive solutions

Calculate overall_score as the sum of all individual scores (max 100).

You are evaluating the conversation from perspective of the user (starting the conversation).
DO NOT rate the conversation of the 'assistant'!

Provide maximum of 3 strengths and 3 areas of improvement.

CONVERSATION TO EVALUATE:
` + transcript
}

// responseFormat is the strict JSON schema the evaluation model must follow.
var responseFormat = json.RawMessage(`{
	"type": "json_schema",
	"json_schema": {
		"name": "sales_evaluation",
		"strict": true,
		"schema": {
			"type": "object",
			"properties": {
				"speaking_tone_style": {
					"type": "object",
					"properties": {
						"professional_tone": {"type": "integer"},
						"active_listening": {"type": "integer"},
						"engagement_quality": {"type": "integer"},
						"total": {"type": "integer"}
					},
					"required": ["professional_tone", "active_listening", "engagement_quality", "total"],
					"additionalProperties": false
				},
				"conversation_content": {
					"type": "object",
					"properties": {
						"needs_assessment": {"type": "integer"},
						"value_proposition": {"type": "integer"},
						"objection_handling": {"type": "integer"},
						"total": {"type": "integer"}
					},
					"required": ["needs_assessment", "value_proposition", "objection_handling", "total"],
					"additionalProperties": false
				},
				"overall_score": {"type": "integer"},
				"strengths": {"type": "array", "items": {"type": "string"}},
				"improvements": {"type": "array", "items": {"type": "string"}},
				"specific_feedback": {"type": "string"}
			},
			"required": ["speaking_tone_style", "conversation_content", "overall_score", "strengths", "improvements", "specific_feedback"],
			"additionalProperties": false
		}
	}
}`)
