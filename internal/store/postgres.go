package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flipdeck/flip-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are whole coins, stored as BIGINT.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, instrument_id, side, quantity, unit_price, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.InstrumentID, string(t.Side), t.Quantity, t.UnitPrice, t.Timestamp,
	)
	return mapInsertErr(err)
}

func (s *PostgresStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, side, quantity, unit_price, timestamp
		 FROM transactions ORDER BY timestamp, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var side string
		if err := rows.Scan(&t.ID, &t.InstrumentID, &side, &t.Quantity, &t.UnitPrice, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Side = model.Side(side)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ReplaceFlips rewrites the derived flip table in one transaction so readers
// never observe a partially recomputed set.
func (s *PostgresStore) ReplaceFlips(ctx context.Context, flips []model.Flip) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM flips`); err != nil {
		return err
	}
	for _, f := range flips {
		_, err := tx.Exec(ctx,
			`INSERT INTO flips (id, instrument_id, quantity, buy_unit_price, sell_unit_price,
			                    buy_transaction_id, sell_transaction_id, buy_timestamp, sell_timestamp,
			                    tax_paid, profit, roi_percent, holding_ns)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			f.ID, f.InstrumentID, f.Quantity, f.BuyUnitPrice, f.SellUnitPrice,
			f.BuyTransactionID, f.SellTransactionID, f.BuyTimestamp, f.SellTimestamp,
			f.TaxPaid, f.Profit, f.ROIPercent, int64(f.HoldingDuration),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListFlips(ctx context.Context) ([]model.Flip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, quantity, buy_unit_price, sell_unit_price,
		        buy_transaction_id, sell_transaction_id, buy_timestamp, sell_timestamp,
		        tax_paid, profit, roi_percent, holding_ns
		 FROM flips ORDER BY sell_timestamp, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flips []model.Flip
	for rows.Next() {
		var f model.Flip
		var holdingNS int64
		if err := rows.Scan(&f.ID, &f.InstrumentID, &f.Quantity, &f.BuyUnitPrice, &f.SellUnitPrice,
			&f.BuyTransactionID, &f.SellTransactionID, &f.BuyTimestamp, &f.SellTimestamp,
			&f.TaxPaid, &f.Profit, &f.ROIPercent, &holdingNS); err != nil {
			return nil, err
		}
		f.HoldingDuration = time.Duration(holdingNS)
		flips = append(flips, f)
	}
	return flips, rows.Err()
}

func (s *PostgresStore) CreateRule(ctx context.Context, r *model.AlertRule) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_rules (id, instrument_id, price_change_pct, volume_spike_mult,
		                          margin_increase_pct, new_score_min, enabled, created_at,
		                          last_triggered_at, trigger_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.InstrumentID,
		r.Thresholds.PriceChangePercent, r.Thresholds.VolumeSpikeMultiplier,
		r.Thresholds.MarginIncreasePercent, r.Thresholds.NewScoreMin,
		r.Enabled, r.CreatedAt, nullableTime(r.LastTriggeredAt), r.TriggerCount,
	)
	return mapInsertErr(err)
}

func (s *PostgresStore) GetRule(ctx context.Context, id string) (*model.AlertRule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx,
		`SELECT id, instrument_id, price_change_pct, volume_spike_mult,
		        margin_increase_pct, new_score_min, enabled, created_at,
		        last_triggered_at, trigger_count
		 FROM alert_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, r *model.AlertRule) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules
		 SET price_change_pct = $2, volume_spike_mult = $3,
		     margin_increase_pct = $4, new_score_min = $5,
		     enabled = $6, last_triggered_at = $7, trigger_count = $8
		 WHERE id = $1`,
		r.ID,
		r.Thresholds.PriceChangePercent, r.Thresholds.VolumeSpikeMultiplier,
		r.Thresholds.MarginIncreasePercent, r.Thresholds.NewScoreMin,
		r.Enabled, nullableTime(r.LastTriggeredAt), r.TriggerCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, price_change_pct, volume_spike_mult,
		        margin_increase_pct, new_score_min, enabled, created_at,
		        last_triggered_at, trigger_count
		 FROM alert_rules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AlertRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) InsertAlert(ctx context.Context, a *model.Alert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, rule_id, instrument_id, type, severity, title, message,
		                     current_value, previous_value, threshold, change_pct,
		                     timestamp, read, dismissed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.RuleID, a.InstrumentID, string(a.Type), string(a.Severity), a.Title, a.Message,
		a.Payload.CurrentValue, a.Payload.PreviousValue, a.Payload.Threshold, a.Payload.ChangePercent,
		a.Timestamp, a.Read, a.Dismissed,
	)
	return err
}

func (s *PostgresStore) ListAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, rule_id, instrument_id, type, severity, title, message,
		        current_value, previous_value, threshold, change_pct,
		        timestamp, read, dismissed
		 FROM alerts WHERE NOT dismissed ORDER BY timestamp DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var typ, sev string
		if err := rows.Scan(&a.ID, &a.RuleID, &a.InstrumentID, &typ, &sev, &a.Title, &a.Message,
			&a.Payload.CurrentValue, &a.Payload.PreviousValue, &a.Payload.Threshold, &a.Payload.ChangePercent,
			&a.Timestamp, &a.Read, &a.Dismissed); err != nil {
			return nil, err
		}
		a.Type = model.AlertType(typ)
		a.Severity = model.Severity(sev)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) MarkAlertRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) MarkAllAlertsRead(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `UPDATE alerts SET read = TRUE WHERE NOT dismissed`)
	return err
}

func (s *PostgresStore) DismissAlert(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET dismissed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) TrimAlerts(ctx context.Context, max int) error {
	if max <= 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE id NOT IN (
		   SELECT id FROM alerts WHERE NOT dismissed ORDER BY timestamp DESC, id LIMIT $1
		 )`, max)
	return err
}

type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanRule(row pgxRow) (*model.AlertRule, error) {
	var r model.AlertRule
	var last *time.Time
	if err := row.Scan(&r.ID, &r.InstrumentID,
		&r.Thresholds.PriceChangePercent, &r.Thresholds.VolumeSpikeMultiplier,
		&r.Thresholds.MarginIncreasePercent, &r.Thresholds.NewScoreMin,
		&r.Enabled, &r.CreatedAt, &last, &r.TriggerCount); err != nil {
		return nil, err
	}
	if last != nil {
		r.LastTriggeredAt = *last
	}
	return &r, nil
}

// mapInsertErr turns a unique-constraint violation into ErrDuplicate so
// handlers can distinguish conflicts from infrastructure failures.
func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	}
	return err
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
