package store

import (
	"fmt"
	"sync"

	"github.com/mwillard/beacon/internal/models"
)

// MemoryStore is an in-memory AlertStore for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.Mutex
	alerts []models.Alert
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("store: alert is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *MemoryStore) History(limit int) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		out = append(out, s.alerts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(id string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			clone := s.alerts[i]
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("store: alert %q not found", id)
}

func (s *MemoryStore) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.alerts)), nil
}
