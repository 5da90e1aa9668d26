package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pitchlab/pitchcoach/internal/scenario"
)

// baseInstructions are appended to every persona prompt so the AI behaves like
// a person on a phone call rather than an assistant.
const baseInstructions = `

CRITICAL INTERACTION GUIDELINES:
- Keep responses SHORT and conversational (2-3 sentences max, as if speaking on phone)
- ALWAYS stay in character - never break role or acknowledge you're an AI
- Simulate natural human speech patterns with pauses, "um", "well", occasional hesitation
- Respond as a real person would in this business context
- Use natural phone conversation style - direct, clear, but personable
- Show genuine human emotions and reactions appropriate to the situation
- Ask follow-up questions to keep the conversation flowing naturally
- Avoid overly formal or robotic language - speak like a real business professional would
`

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// Agent is one training persona created for a scenario.
type Agent struct {
	ID           string    `json:"agent_id"`
	ScenarioID   string    `json:"scenario_id"`
	Instructions string    `json:"instructions"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

// Registry is the in-process agent store. Agents live only for the process
// lifetime, like the sessions they back.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]*Agent
	defaultModel string
}

func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		agents:       make(map[string]*Agent),
		defaultModel: defaultModel,
	}
}

// Create builds a persona from a scenario and registers it.
func (r *Registry) Create(scn scenario.Scenario) *Agent {
	model := strings.TrimSpace(scn.Model)
	if model == "" {
		model = r.defaultModel
	}
	temperature := scn.ModelParameters.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := scn.ModelParameters.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	a := &Agent{
		ID:           fmt.Sprintf("local-agent-%s-%s", scn.ID, shortID()),
		ScenarioID:   scn.ID,
		Instructions: scn.SystemPrompt() + baseInstructions,
		Model:        model,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
	return clone(a)
}

// Get returns the agent for an id.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return clone(a), true
}

// Delete removes an agent. Deleting an unknown id is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func clone(a *Agent) *Agent {
	c := *a
	return &c
}
