package analysis

import (
	"context"
	"time"
)

// ToneScores covers the speaking style half of the rubric (30 points).
type ToneScores struct {
	ProfessionalTone  int `json:"professional_tone"`
	ActiveListening   int `json:"active_listening"`
	EngagementQuality int `json:"engagement_quality"`
	Total             int `json:"total"`
}

// ContentScores covers the conversation content half of the rubric (70 points).
type ContentScores struct {
	NeedsAssessment   int `json:"needs_assessment"`
	ValueProposition  int `json:"value_proposition"`
	ObjectionHandling int `json:"objection_handling"`
	Total             int `json:"total"`
}

// Assessment is the structured conversation evaluation returned by the model.
type Assessment struct {
	SpeakingToneStyle   ToneScores    `json:"speaking_tone_style"`
	ConversationContent ContentScores `json:"conversation_content"`
	OverallScore        int           `json:"overall_score"`
	Strengths           []string      `json:"strengths"`
	Improvements        []string      `json:"improvements"`
	SpecificFeedback    string        `json:"specific_feedback"`
}

// PronunciationResult carries the pronunciation scores. Stub is true while
// the assessor returns placeholder numbers instead of real backend output.
type PronunciationResult struct {
	PronunciationScore float64 `json:"pronunciation_score"`
	AccuracyScore      float64 `json:"accuracy_score"`
	FluencyScore       float64 `json:"fluency_score"`
	CompletenessScore  float64 `json:"completeness_score"`
	ProsodyScore       float64 `json:"prosody_score"`
	Stub               bool    `json:"stub"`
}

// Report is one persisted analysis run.
type Report struct {
	ID            string               `json:"id"`
	ScenarioID    string               `json:"scenario_id"`
	Transcript    string               `json:"transcript"`
	Assessment    *Assessment          `json:"assessment,omitempty"`
	Pronunciation *PronunciationResult `json:"pronunciation,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Store persists and retrieves analysis reports.
type Store interface {
	SaveReport(ctx context.Context, report Report) error
	RecentReports(ctx context.Context, scenarioID string, limit int) ([]Report, error)
	Close() error
}
