package scenario

import (
	"os"
	"path/filepath"
	"testing"
)

const rolePlayYAML = `name: Cold Call
description: Practice a first outreach call.
model: gpt-4o
modelParameters:
  temperature: 0.8
  max_tokens: 1500
messages:
  - role: system
    content: You are a skeptical procurement manager.
`

const evaluationYAML = `name: Cold Call Evaluation
messages:
  - role: system
    content: Evaluate the seller's performance.
`

func writeScenarioFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"cold-call-role-play.prompt.yml":  rolePlayYAML,
		"cold-call-evaluation.prompt.yml": evaluationYAML,
		"renewal-role-play.prompt.yml":    "name: Renewal\ndescription: Contract renewal talk.\nmessages:\n  - role: system\n    content: You are a cost-cutting CFO.\n",
		"broken-role-play.prompt.yml":     "name: [unterminated",
		"unrelated.txt":                   "ignore me",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadAndGet(t *testing.T) {
	p, err := Load(writeScenarioFiles(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s, ok := p.Get("cold-call")
	if !ok {
		t.Fatalf("Get(cold-call) should find scenario")
	}
	if s.Name != "Cold Call" {
		t.Fatalf("Name = %q, want %q", s.Name, "Cold Call")
	}
	if s.ModelParameters.Temperature != 0.8 || s.ModelParameters.MaxTokens != 1500 {
		t.Fatalf("ModelParameters = %+v", s.ModelParameters)
	}
	if got := s.SystemPrompt(); got != "You are a skeptical procurement manager." {
		t.Fatalf("SystemPrompt() = %q", got)
	}

	if _, ok := p.Get("broken"); ok {
		t.Fatalf("broken scenario should be skipped")
	}
	if _, ok := p.Get("missing"); ok {
		t.Fatalf("Get(missing) should miss")
	}
}

func TestLoadEvaluations(t *testing.T) {
	p, err := Load(writeScenarioFiles(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ev, ok := p.GetEvaluation("cold-call")
	if !ok {
		t.Fatalf("GetEvaluation(cold-call) should find prompt")
	}
	if ev.SystemPrompt() != "Evaluate the seller's performance." {
		t.Fatalf("evaluation prompt = %q", ev.SystemPrompt())
	}
	if _, ok := p.GetEvaluation("renewal"); ok {
		t.Fatalf("renewal has no evaluation prompt")
	}
}

func TestListSortedSummaries(t *testing.T) {
	p, err := Load(writeScenarioFiles(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	list := p.List()
	// broken file is skipped, so two scenarios remain.
	if len(list) != 2 {
		t.Fatalf("List() length = %d, want 2", len(list))
	}
	if list[0].ID != "cold-call" || list[1].ID != "renewal" {
		t.Fatalf("List() order = %q,%q", list[0].ID, list[1].ID)
	}
}

func TestLoadMissingDirIsEmpty(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(p.List()) != 0 {
		t.Fatalf("missing dir should yield no scenarios")
	}
}
