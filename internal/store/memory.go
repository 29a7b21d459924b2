package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flipdeck/flip-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	txns   []model.Transaction
	flips  []model.Flip
	rules  map[string]*model.AlertRule
	alerts []model.Alert // oldest first
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]*model.AlertRule),
	}
}

func (s *MemoryStore) InsertTransaction(_ context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.txns {
		if existing.ID == txn.ID {
			return fmt.Errorf("transaction %s: %w", txn.ID, ErrDuplicate)
		}
	}
	s.txns = append(s.txns, *txn)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Transaction, len(s.txns))
	copy(out, s.txns)
	return out, nil
}

func (s *MemoryStore) ReplaceFlips(_ context.Context, flips []model.Flip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flips = make([]model.Flip, len(flips))
	copy(s.flips, flips)
	return nil
}

func (s *MemoryStore) ListFlips(_ context.Context) ([]model.Flip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Flip, len(s.flips))
	copy(out, s.flips)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SellTimestamp.Before(out[j].SellTimestamp)
	})
	return out, nil
}

func (s *MemoryStore) CreateRule(_ context.Context, rule *model.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; ok {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrDuplicate)
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRule(_ context.Context, id string) (*model.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpdateRule(_ context.Context, rule *model.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; !ok {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) ListRules(_ context.Context) ([]model.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]model.AlertRule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, *r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *MemoryStore) ListAlerts(_ context.Context) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

func (s *MemoryStore) MarkAlertRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) MarkAllAlertsRead(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		s.alerts[i].Read = true
	}
	return nil
}

func (s *MemoryStore) DismissAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) TrimAlerts(_ context.Context, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max > 0 && len(s.alerts) > max {
		s.alerts = append([]model.Alert(nil), s.alerts[len(s.alerts)-max:]...)
	}
	return nil
}
