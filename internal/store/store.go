// Package store defines the persistence interface for the flip engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/flipdeck/flip-engine/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with an existing ID.
var ErrDuplicate = errors.New("duplicate id")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Transaction journal ---

	// InsertTransaction appends a recorded buy or sell.
	InsertTransaction(ctx context.Context, txn *model.Transaction) error

	// ListTransactions returns all recorded transactions in insertion order.
	ListTransactions(ctx context.Context) ([]model.Transaction, error)

	// --- Matched flips ---

	// ReplaceFlips swaps the full derived flip set. Flips are recomputed
	// from the journal after every new transaction, so they are replaced
	// wholesale rather than appended.
	ReplaceFlips(ctx context.Context, flips []model.Flip) error

	// ListFlips returns all matched flips ordered by sell timestamp.
	ListFlips(ctx context.Context) ([]model.Flip, error)

	// --- Alert rules ---

	// CreateRule persists a new alert rule.
	CreateRule(ctx context.Context, rule *model.AlertRule) error

	// GetRule retrieves a rule by its ID.
	GetRule(ctx context.Context, id string) (*model.AlertRule, error)

	// UpdateRule overwrites an existing rule.
	UpdateRule(ctx context.Context, rule *model.AlertRule) error

	// DeleteRule removes a rule.
	DeleteRule(ctx context.Context, id string) error

	// ListRules returns all rules ordered by creation time.
	ListRules(ctx context.Context) ([]model.AlertRule, error)

	// --- Alert feed ---

	// InsertAlert appends a triggered alert.
	InsertAlert(ctx context.Context, alert *model.Alert) error

	// ListAlerts returns retained alerts, newest first.
	ListAlerts(ctx context.Context) ([]model.Alert, error)

	// MarkAlertRead flags a single alert as read.
	MarkAlertRead(ctx context.Context, id string) error

	// MarkAllAlertsRead flags every retained alert as read.
	MarkAllAlertsRead(ctx context.Context) error

	// DismissAlert removes an alert from the feed.
	DismissAlert(ctx context.Context, id string) error

	// TrimAlerts drops the oldest alerts beyond the retention limit.
	TrimAlerts(ctx context.Context, max int) error
}
