package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process report store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports []Report
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveReport(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.reports = append(s.reports, report)
	return nil
}

// RecentReports returns the most recent reports in chronological order. An
// empty scenarioID matches every scenario.
func (s *InMemoryStore) RecentReports(_ context.Context, scenarioID string, limit int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Report
	for _, r := range s.reports {
		if scenarioID != "" && r.ScenarioID != scenarioID {
			continue
		}
		matched = append(matched, r)
	}
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}
	return matched[len(matched)-limit:], nil
}

func (s *InMemoryStore) Close() error { return nil }
