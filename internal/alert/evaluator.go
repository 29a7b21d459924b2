// Package alert evaluates user-defined alert rules against successive market
// snapshots.
//
// Each rule cycles idle → cooldown → idle: a trigger starts the cooldown and
// the rule cannot fire again until it elapses. Conditions are checked in a
// fixed order and only the LAST matching condition emits an alert for that
// tick; earlier matches in the same tick are discarded, not queued. Consumers
// rely on at most one alert per rule per tick.
package alert

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flipdeck/flip-engine/internal/model"
)

// DefaultThresholds are applied when a rule is created without its own.
var DefaultThresholds = model.AlertThresholds{
	PriceChangePercent:    5,
	VolumeSpikeMultiplier: 3,
	MarginIncreasePercent: 10,
	NewScoreMin:           80,
}

// DefaultSettings mirror the dashboard defaults.
var DefaultSettings = model.AlertSettings{
	Enabled:           true,
	Cooldown:          15 * time.Minute,
	MaxAlertsRetained: 100,
}

// NormalizeSettings fills unusable values with defaults.
func NormalizeSettings(s model.AlertSettings) model.AlertSettings {
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultSettings.Cooldown
	}
	if s.MaxAlertsRetained <= 0 {
		s.MaxAlertsRetained = DefaultSettings.MaxAlertsRetained
	}
	return s
}

// SnapshotCache holds the previous tick's screener rows for change
// detection.
type SnapshotCache struct {
	prev map[int64]model.MarketItem
}

// NewSnapshotCache returns an empty cache; the first tick against it can
// only fire conditions that need no previous data (score, pump).
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{prev: make(map[int64]model.MarketItem)}
}

// Update replaces the cached snapshot with the current one.
func (c *SnapshotCache) Update(items map[int64]model.MarketItem) {
	next := make(map[int64]model.MarketItem, len(items))
	for id, it := range items {
		next[id] = it
	}
	c.prev = next
}

// Previous returns the cached row for an instrument, if any.
func (c *SnapshotCache) Previous(instrumentID int64) (model.MarketItem, bool) {
	it, ok := c.prev[instrumentID]
	return it, ok
}

// Evaluator runs rule evaluation ticks. Settings may be read and replaced
// from other goroutines (the settings handlers), so they are guarded by
// their own lock; the snapshot cache is only touched by Evaluate, whose
// callers already serialize ticks.
type Evaluator struct {
	mu       sync.RWMutex
	settings model.AlertSettings

	cache *SnapshotCache
}

// New creates an evaluator with normalized settings and an empty snapshot
// cache.
func New(settings model.AlertSettings) *Evaluator {
	return &Evaluator{
		settings: NormalizeSettings(settings),
		cache:    NewSnapshotCache(),
	}
}

// Settings returns the normalized settings in effect.
func (e *Evaluator) Settings() model.AlertSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// SetEnabled toggles evaluation globally.
func (e *Evaluator) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings.Enabled = enabled
}

// UpdateSettings replaces the settings, normalizing unusable values.
func (e *Evaluator) UpdateSettings(s model.AlertSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = NormalizeSettings(s)
}

// Evaluate runs one tick over every rule against the current screener rows
// (keyed by instrument). Triggered rules get their bookkeeping mutated in
// place; the returned alerts are the only alerts created anywhere in the
// engine. The previous-snapshot cache is advanced after all rules have been
// evaluated, so every rule in one tick compares against the same previous
// data.
func (e *Evaluator) Evaluate(rules []*model.AlertRule, items map[int64]model.MarketItem, now time.Time) []model.Alert {
	// One consistent settings view per tick, even if a settings update
	// lands mid-evaluation.
	settings := e.Settings()
	if !settings.Enabled {
		return nil
	}

	var alerts []model.Alert
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !rule.LastTriggeredAt.IsZero() && now.Sub(rule.LastTriggeredAt) < settings.Cooldown {
			continue // still cooling down
		}

		item, ok := items[rule.InstrumentID]
		if !ok {
			continue
		}
		prev, hasPrev := e.cache.Previous(rule.InstrumentID)

		if a := evaluateRule(rule, item, prev, hasPrev); a != nil {
			a.ID = uuid.New().String()
			a.Timestamp = now
			alerts = append(alerts, *a)

			rule.TriggerCount++
			rule.LastTriggeredAt = now
		}
	}

	e.cache.Update(items)
	return alerts
}

// evaluateRule checks the conditions in their fixed order. Each later match
// overwrites the earlier candidate (last-match-wins). A zero threshold
// disables its condition.
func evaluateRule(rule *model.AlertRule, item, prev model.MarketItem, hasPrev bool) *model.Alert {
	th := rule.Thresholds
	var triggered *model.Alert

	label := item.Name
	if label == "" {
		label = fmt.Sprintf("instrument %d", item.InstrumentID)
	}

	if hasPrev {
		// 1. Price change.
		if th.PriceChangePercent > 0 && prev.BuyPrice > 0 {
			change := float64(abs64(item.BuyPrice-prev.BuyPrice)) / float64(prev.BuyPrice) * 100
			if change >= th.PriceChangePercent {
				triggered = &model.Alert{
					RuleID:       rule.ID,
					InstrumentID: rule.InstrumentID,
					Type:         model.AlertPriceSpike,
					Severity:     priceSeverity(change),
					Title:        label + " price alert",
					Message:      fmt.Sprintf("price changed %.1f%% (%d → %d)", change, prev.BuyPrice, item.BuyPrice),
					Payload: model.AlertPayload{
						CurrentValue:  float64(item.BuyPrice),
						PreviousValue: float64(prev.BuyPrice),
						Threshold:     th.PriceChangePercent,
						ChangePercent: change,
					},
				}
			}
		}

		// 2. Volume spike.
		if th.VolumeSpikeMultiplier > 0 {
			ratio := float64(item.Volume) / float64(max64(prev.Volume, 1))
			if ratio >= th.VolumeSpikeMultiplier {
				triggered = &model.Alert{
					RuleID:       rule.ID,
					InstrumentID: rule.InstrumentID,
					Type:         model.AlertVolumeSpike,
					Severity:     volumeSeverity(ratio),
					Title:        label + " volume alert",
					Message:      fmt.Sprintf("volume spike %.1fx (%d → %d)", ratio, prev.Volume, item.Volume),
					Payload: model.AlertPayload{
						CurrentValue:  float64(item.Volume),
						PreviousValue: float64(prev.Volume),
						Threshold:     th.VolumeSpikeMultiplier,
						ChangePercent: (ratio - 1) * 100,
					},
				}
			}
		}

		// 3. Margin improvement.
		if th.MarginIncreasePercent > 0 {
			change := float64(item.Margin-prev.Margin) / float64(max64(prev.Margin, 1)) * 100
			if change >= th.MarginIncreasePercent {
				triggered = &model.Alert{
					RuleID:       rule.ID,
					InstrumentID: rule.InstrumentID,
					Type:         model.AlertMarginImprovement,
					Severity:     model.SeverityInfo,
					Title:        label + " margin improvement",
					Message:      fmt.Sprintf("margin improved %.1f%% (%d → %d)", change, prev.Margin, item.Margin),
					Payload: model.AlertPayload{
						CurrentValue:  float64(item.Margin),
						PreviousValue: float64(prev.Margin),
						Threshold:     th.MarginIncreasePercent,
						ChangePercent: change,
					},
				}
			}
		}
	}

	// 4. High opportunity score. Needs no previous data.
	if th.NewScoreMin > 0 && item.Score >= th.NewScoreMin {
		prevScore := 0.0
		if hasPrev {
			prevScore = prev.Score
		}
		triggered = &model.Alert{
			RuleID:       rule.ID,
			InstrumentID: rule.InstrumentID,
			Type:         model.AlertHighScore,
			Severity:     scoreSeverity(item.Score),
			Title:        label + " high score",
			Message:      fmt.Sprintf("opportunity score reached %.1f", item.Score),
			Payload: model.AlertPayload{
				CurrentValue:  item.Score,
				PreviousValue: prevScore,
				Threshold:     th.NewScoreMin,
				ChangePercent: item.Score - prevScore,
			},
		}
	}

	// 5. Pump flag.
	if item.Pump {
		prevPrice := float64(item.BuyPrice)
		if hasPrev {
			prevPrice = float64(prev.BuyPrice)
		}
		triggered = &model.Alert{
			RuleID:       rule.ID,
			InstrumentID: rule.InstrumentID,
			Type:         model.AlertPumpDetected,
			Severity:     model.SeverityWarning,
			Title:        label + " pump detected",
			Message:      "unusual buying activity, possible price manipulation",
			Payload: model.AlertPayload{
				CurrentValue:  float64(item.BuyPrice),
				PreviousValue: prevPrice,
			},
		}
	}

	return triggered
}

// Severity is a pure function of trigger magnitude.

func priceSeverity(changePercent float64) model.Severity {
	if changePercent >= 15 {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}

func volumeSeverity(ratio float64) model.Severity {
	if ratio >= 5 {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}

func scoreSeverity(score float64) model.Severity {
	if score >= 95 {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}

// Stats rolls retained alerts up for the dashboard badge: totals, unread,
// alerts since midnight UTC, per-type counts, and the five noisiest
// instruments.
func Stats(alerts []model.Alert, now time.Time) model.AlertStats {
	s := model.AlertStats{ByType: make(map[model.AlertType]int)}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	perInstrument := make(map[int64]int)
	for _, a := range alerts {
		s.Total++
		if !a.Read {
			s.Unread++
		}
		if !a.Timestamp.Before(midnight) {
			s.Today++
		}
		s.ByType[a.Type]++
		perInstrument[a.InstrumentID]++
	}

	for id, count := range perInstrument {
		s.TopInstruments = append(s.TopInstruments, model.InstrumentCount{InstrumentID: id, Count: count})
	}
	sort.Slice(s.TopInstruments, func(i, j int) bool {
		if s.TopInstruments[i].Count != s.TopInstruments[j].Count {
			return s.TopInstruments[i].Count > s.TopInstruments[j].Count
		}
		return s.TopInstruments[i].InstrumentID < s.TopInstruments[j].InstrumentID
	})
	if len(s.TopInstruments) > 5 {
		s.TopInstruments = s.TopInstruments[:5]
	}
	return s
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
