package scenario

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	rolePlaySuffix   = "-role-play.prompt.yml"
	evaluationSuffix = "-evaluation.prompt.yml"
)

// ModelParameters tunes the model a scenario's persona runs with.
type ModelParameters struct {
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

type Message struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// Scenario is one training scenario loaded from a prompt file. The same shape
// serves both role-play prompts and evaluation prompts.
type Scenario struct {
	ID              string          `yaml:"-" json:"id"`
	Name            string          `yaml:"name" json:"name"`
	Description     string          `yaml:"description" json:"description"`
	Model           string          `yaml:"model" json:"model,omitempty"`
	ModelParameters ModelParameters `yaml:"modelParameters" json:"model_parameters"`
	Messages        []Message       `yaml:"messages" json:"messages"`
}

// SystemPrompt returns the scenario's leading prompt text.
func (s Scenario) SystemPrompt() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].Content
}

type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Provider serves training scenarios loaded once at startup. Read-only after
// Load.
type Provider struct {
	scenarios   map[string]Scenario
	evaluations map[string]Scenario
}

// Load reads role-play and evaluation prompt files from dir. A missing
// directory yields an empty provider; individual unreadable files are logged
// and skipped, matching a demo deployment where a broken scenario should not
// take the service down.
func Load(dir string) (*Provider, error) {
	p := &Provider{
		scenarios:   make(map[string]Scenario),
		evaluations: make(map[string]Scenario),
	}

	if _, err := os.Stat(dir); err != nil {
		log.Printf("scenario: directory %q not found, no scenarios loaded", dir)
		return p, nil
	}

	if err := loadInto(dir, rolePlaySuffix, p.scenarios); err != nil {
		return nil, err
	}
	if err := loadInto(dir, evaluationSuffix, p.evaluations); err != nil {
		return nil, err
	}

	log.Printf("scenario: loaded %d scenarios, %d evaluation prompts from %s", len(p.scenarios), len(p.evaluations), dir)
	return p, nil
}

func loadInto(dir, suffix string, dst map[string]Scenario) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return fmt.Errorf("scan scenario dir: %w", err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("scenario: skipping %s: %v", path, err)
			continue
		}
		var s Scenario
		if err := yaml.Unmarshal(data, &s); err != nil {
			log.Printf("scenario: skipping %s: %v", path, err)
			continue
		}
		s.ID = strings.TrimSuffix(filepath.Base(path), suffix)
		dst[s.ID] = s
	}
	return nil
}

// Get returns the role-play scenario for an id.
func (p *Provider) Get(id string) (Scenario, bool) {
	s, ok := p.scenarios[id]
	return s, ok
}

// GetEvaluation returns the evaluation prompt for an id.
func (p *Provider) GetEvaluation(id string) (Scenario, bool) {
	s, ok := p.evaluations[id]
	return s, ok
}

// List returns summaries of all role-play scenarios, sorted by id.
func (p *Provider) List() []Summary {
	out := make([]Summary, 0, len(p.scenarios))
	for id, s := range p.scenarios {
		name := s.Name
		if name == "" {
			name = "Unknown"
		}
		out = append(out, Summary{ID: id, Name: name, Description: s.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
