package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flipdeck/flip-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: the derived flip set and the alert rule
// list, both read on every snapshot tick. Writes go to the primary store
// and invalidate the cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

const (
	flipsKey = "flips"
	rulesKey = "alert_rules"
)

// --- Write paths (write to primary, invalidate cache) ---

func (s *CachedStore) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, txn)
}

func (s *CachedStore) ReplaceFlips(ctx context.Context, flips []model.Flip) error {
	if err := s.primary.ReplaceFlips(ctx, flips); err != nil {
		return err
	}
	s.rdb.Del(ctx, flipsKey)
	return nil
}

func (s *CachedStore) CreateRule(ctx context.Context, rule *model.AlertRule) error {
	if err := s.primary.CreateRule(ctx, rule); err != nil {
		return err
	}
	s.rdb.Del(ctx, rulesKey)
	return nil
}

func (s *CachedStore) UpdateRule(ctx context.Context, rule *model.AlertRule) error {
	if err := s.primary.UpdateRule(ctx, rule); err != nil {
		return err
	}
	s.rdb.Del(ctx, rulesKey)
	return nil
}

func (s *CachedStore) DeleteRule(ctx context.Context, id string) error {
	if err := s.primary.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, rulesKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListFlips(ctx context.Context) ([]model.Flip, error) {
	data, err := s.rdb.Get(ctx, flipsKey).Bytes()
	if err == nil {
		var flips []model.Flip
		if json.Unmarshal(data, &flips) == nil {
			return flips, nil
		}
	}

	flips, err := s.primary.ListFlips(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(flips); err == nil {
		s.rdb.Set(ctx, flipsKey, data, s.ttl)
	}
	return flips, nil
}

func (s *CachedStore) ListRules(ctx context.Context) ([]model.AlertRule, error) {
	data, err := s.rdb.Get(ctx, rulesKey).Bytes()
	if err == nil {
		var rules []model.AlertRule
		if json.Unmarshal(data, &rules) == nil {
			return rules, nil
		}
	}

	rules, err := s.primary.ListRules(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rules); err == nil {
		s.rdb.Set(ctx, rulesKey, data, s.ttl)
	}
	return rules, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx)
}

func (s *CachedStore) GetRule(ctx context.Context, id string) (*model.AlertRule, error) {
	return s.primary.GetRule(ctx, id)
}

func (s *CachedStore) InsertAlert(ctx context.Context, alert *model.Alert) error {
	return s.primary.InsertAlert(ctx, alert)
}

func (s *CachedStore) ListAlerts(ctx context.Context) ([]model.Alert, error) {
	return s.primary.ListAlerts(ctx)
}

func (s *CachedStore) MarkAlertRead(ctx context.Context, id string) error {
	return s.primary.MarkAlertRead(ctx, id)
}

func (s *CachedStore) MarkAllAlertsRead(ctx context.Context) error {
	return s.primary.MarkAllAlertsRead(ctx)
}

func (s *CachedStore) DismissAlert(ctx context.Context, id string) error {
	return s.primary.DismissAlert(ctx, id)
}

func (s *CachedStore) TrimAlerts(ctx context.Context, max int) error {
	return s.primary.TrimAlerts(ctx, max)
}
