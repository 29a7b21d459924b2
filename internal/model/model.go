// Package model defines the core domain types shared across the flip engine.
// Prices and profits are integer coins (gp); the exchange has no fractional
// unit, so int64 keeps all arithmetic exact.
package model

import (
	"time"
)

// Side is the direction of a recorded transaction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Transaction is one recorded buy or sell. Immutable once recorded.
type Transaction struct {
	ID           string    `json:"id" db:"id"`
	InstrumentID int64     `json:"instrument_id" db:"instrument_id"`
	Side         Side      `json:"side" db:"side"`
	Quantity     int64     `json:"quantity" db:"quantity"`
	UnitPrice    int64     `json:"unit_price" db:"unit_price"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// PositionLot is an unconsumed (or partially consumed) quantity from a single
// buy. Owned exclusively by one ledger queue; remaining quantity only shrinks.
type PositionLot struct {
	Quantity            int64     `json:"quantity"`
	UnitCost            int64     `json:"unit_cost"`
	OriginTransactionID string    `json:"origin_transaction_id"`
	OpenedAt            time.Time `json:"opened_at"`
}

// Flip is one realized buy→sell match. Derived, immutable, created only by
// the FIFO matcher. A sell spanning N lots yields N flips.
type Flip struct {
	ID                string        `json:"id" db:"id"`
	InstrumentID      int64         `json:"instrument_id" db:"instrument_id"`
	Quantity          int64         `json:"quantity" db:"quantity"`
	BuyUnitPrice      int64         `json:"buy_unit_price" db:"buy_unit_price"`
	SellUnitPrice     int64         `json:"sell_unit_price" db:"sell_unit_price"`
	BuyTransactionID  string        `json:"buy_transaction_id" db:"buy_transaction_id"`
	SellTransactionID string        `json:"sell_transaction_id" db:"sell_transaction_id"`
	BuyTimestamp      time.Time     `json:"buy_timestamp" db:"buy_timestamp"`
	SellTimestamp     time.Time     `json:"sell_timestamp" db:"sell_timestamp"`
	TaxPaid           int64         `json:"tax_paid" db:"tax_paid"`
	Profit            int64         `json:"profit" db:"profit"`
	ROIPercent        float64       `json:"roi_percent" db:"roi_percent"`
	HoldingDuration   time.Duration `json:"holding_duration" db:"holding_duration"`
}

// OpenPosition is remaining unmatched inventory for one instrument,
// aggregated across its surviving lots.
type OpenPosition struct {
	InstrumentID int64     `json:"instrument_id"`
	Quantity     int64     `json:"quantity"`
	AvgCost      float64   `json:"avg_cost"`
	CostBasis    int64     `json:"cost_basis"`
	OldestLotAt  time.Time `json:"oldest_lot_at"`
}

// MatchStats describes how much sell flow had a known cost basis, plus rows
// skipped for data-quality reasons. Oversold quantity produced no flips.
type MatchStats struct {
	TotalSellQty     int64   `json:"total_sell_qty"`
	MatchedSellQty   int64   `json:"matched_sell_qty"`
	UnmatchedSellQty int64   `json:"unmatched_sell_qty"`
	MatchRatePercent float64 `json:"match_rate_percent"`
	SkippedRows      int     `json:"skipped_rows"`
}

// WindowStats is the flip count and profit inside one sliding window.
type WindowStats struct {
	Flips  int   `json:"flips"`
	Profit int64 `json:"profit"`
}

// PerformanceSummary aggregates a flip collection. Recomputed in full on each
// call, never mutated incrementally.
type PerformanceSummary struct {
	TotalFlips     int           `json:"total_flips"`
	TotalProfit    int64         `json:"total_profit"`
	TotalROI       float64       `json:"total_roi"` // running sum; average = total / count
	AverageProfit  float64       `json:"average_profit"`
	AverageROI     float64       `json:"average_roi"`
	AverageHolding time.Duration `json:"average_holding"`
	WinRate        float64       `json:"win_rate"` // 0-100%
	BestFlip       *Flip         `json:"best_flip"`
	WorstFlip      *Flip         `json:"worst_flip"`
	Daily          WindowStats   `json:"daily"`   // now - sellTs < 24h
	Weekly         WindowStats   `json:"weekly"`  // now - sellTs < 7d
	Monthly        WindowStats   `json:"monthly"` // now - sellTs < 30d
}

// TrendPoint is one calendar bucket of the charting series.
type TrendPoint struct {
	Period string `json:"period"` // ISO date, week-start date, or YYYY-MM
	Profit int64  `json:"profit"`
	Flips  int    `json:"flips"`
}

// InstrumentQuote is one row of a market snapshot as supplied by the price
// feed collaborator. Name and BuyLimit ride along so the engine needs no
// separate item catalog.
type InstrumentQuote struct {
	InstrumentID int64  `json:"instrument_id"`
	Name         string `json:"name"`
	BuyPrice     int64  `json:"buy_price"`
	SellPrice    int64  `json:"sell_price"`
	Volume       int64  `json:"volume"` // daily traded volume
	Volume5m     int64  `json:"volume_5m"`
	Volume1h     int64  `json:"volume_1h"`
	BuyLimit     int64  `json:"buy_limit"`
}

// MarketSnapshot is a fully-materialized view of the market at one instant.
// The engine is only ever invoked against such a snapshot, never a feed that
// mutates mid-pass.
type MarketSnapshot struct {
	TakenAt time.Time                 `json:"taken_at"`
	Quotes  map[int64]InstrumentQuote `json:"quotes"`
}

// MarketItem is a derived screener row. Score is the one field mutated in
// place, by the opportunity ranker.
type MarketItem struct {
	InstrumentID    int64     `json:"instrument_id"`
	Name            string    `json:"name"`
	BuyPrice        int64     `json:"buy_price"`
	SellPrice       int64     `json:"sell_price"`
	Margin          int64     `json:"margin"` // net of tax
	ROI             float64   `json:"roi"`
	Volume          int64     `json:"volume"`
	PotentialProfit int64     `json:"potential_profit"` // margin * buy limit
	Pump            bool      `json:"pump"`
	Score           float64   `json:"score"` // [0,100], percentile-weighted
	Timestamp       time.Time `json:"timestamp"`
}

// AlertThresholds are the per-rule trigger levels.
type AlertThresholds struct {
	PriceChangePercent    float64 `json:"price_change_percent"`
	VolumeSpikeMultiplier float64 `json:"volume_spike_multiplier"`
	MarginIncreasePercent float64 `json:"margin_increase_percent"`
	NewScoreMin           float64 `json:"new_score_min"`
}

// AlertRule watches one instrument. Trigger bookkeeping (LastTriggeredAt,
// TriggerCount) is mutated by the evaluator.
type AlertRule struct {
	ID              string          `json:"id" db:"id"`
	InstrumentID    int64           `json:"instrument_id" db:"instrument_id"`
	Thresholds      AlertThresholds `json:"thresholds"`
	Enabled         bool            `json:"enabled" db:"enabled"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	LastTriggeredAt time.Time       `json:"last_triggered_at" db:"last_triggered_at"`
	TriggerCount    int64           `json:"trigger_count" db:"trigger_count"`
}

// AlertType identifies which condition fired.
type AlertType string

const (
	AlertPriceSpike        AlertType = "price_spike"
	AlertVolumeSpike       AlertType = "volume_spike"
	AlertMarginImprovement AlertType = "margin_improvement"
	AlertHighScore         AlertType = "high_score"
	AlertPumpDetected      AlertType = "pump_detected"
)

// Severity of an alert, assigned purely from trigger magnitude.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertPayload carries the numbers behind a trigger.
type AlertPayload struct {
	CurrentValue  float64 `json:"current_value"`
	PreviousValue float64 `json:"previous_value"`
	Threshold     float64 `json:"threshold"`
	ChangePercent float64 `json:"change_percent"`
}

// Alert is created only by the evaluator. Read/Dismissed are UI bookkeeping
// toggled through the store.
type Alert struct {
	ID           string       `json:"id" db:"id"`
	RuleID       string       `json:"rule_id" db:"rule_id"`
	InstrumentID int64        `json:"instrument_id" db:"instrument_id"`
	Type         AlertType    `json:"type" db:"type"`
	Severity     Severity     `json:"severity" db:"severity"`
	Title        string       `json:"title" db:"title"`
	Message      string       `json:"message" db:"message"`
	Payload      AlertPayload `json:"payload"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	Read         bool         `json:"read" db:"read"`
	Dismissed    bool         `json:"dismissed" db:"dismissed"`
}

// AlertSettings configure the evaluator globally.
type AlertSettings struct {
	Enabled           bool          `json:"enabled"`
	Cooldown          time.Duration `json:"cooldown"`
	MaxAlertsRetained int           `json:"max_alerts_retained"`
}

// AlertStats is a roll-up over retained alerts.
type AlertStats struct {
	Total          int               `json:"total"`
	Unread         int               `json:"unread"`
	Today          int               `json:"today"`
	ByType         map[AlertType]int `json:"by_type"`
	TopInstruments []InstrumentCount `json:"top_instruments"`
}

// InstrumentCount pairs an instrument with its alert count.
type InstrumentCount struct {
	InstrumentID int64 `json:"instrument_id"`
	Count        int   `json:"count"`
}
