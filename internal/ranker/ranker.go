// Package ranker derives screener rows from a market snapshot and assigns
// each one a composite opportunity score in [0,100].
//
// The score is a percentile-weighted blend: an item is attractive relative
// to the rest of the current snapshot, not on any absolute scale. Percentile
// rank here is the fraction of the population strictly below a value, so
// ties share the same rank.
package ranker

import (
	"sort"

	"github.com/flipdeck/flip-engine/internal/model"
	"github.com/flipdeck/flip-engine/internal/tax"
)

// Blend weights. Margin dominates: a flipper's first question is coins per
// flip, then whether the item actually trades, then capital efficiency.
const (
	WeightMargin = 0.5
	WeightVolume = 0.3
	WeightROI    = 0.2
)

// BuildItems converts a snapshot into screener rows: net-of-tax margin, ROI,
// potential profit at the buy limit, and pump flag. Quotes without both
// prices are skipped. Rows come back sorted by instrument ID and already
// scored.
func BuildItems(snap model.MarketSnapshot) []model.MarketItem {
	items := make([]model.MarketItem, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		if q.BuyPrice <= 0 || q.SellPrice <= 0 {
			continue
		}
		margin := tax.NetProfit(q.BuyPrice, q.SellPrice)
		items = append(items, model.MarketItem{
			InstrumentID:    q.InstrumentID,
			Name:            q.Name,
			BuyPrice:        q.BuyPrice,
			SellPrice:       q.SellPrice,
			Margin:          margin,
			ROI:             tax.ROIPercent(margin, q.BuyPrice),
			Volume:          q.Volume,
			PotentialProfit: margin * q.BuyLimit,
			Pump:            Pump(q.Volume5m, q.Volume1h),
			Timestamp:       snap.TakenAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].InstrumentID < items[j].InstrumentID
	})
	Score(items)
	return items
}

// Score recomputes the opportunity score for every item in place.
// Empty input is a no-op. O(n log n): three sorts plus binary-search lookups.
func Score(items []model.MarketItem) {
	if len(items) == 0 {
		return
	}

	margins := make([]float64, len(items))
	volumes := make([]float64, len(items))
	rois := make([]float64, len(items))
	for i := range items {
		margins[i] = float64(items[i].Margin)
		volumes[i] = float64(items[i].Volume)
		rois[i] = items[i].ROI
	}
	sort.Float64s(margins)
	sort.Float64s(volumes)
	sort.Float64s(rois)

	for i := range items {
		pMargin := PercentileRank(margins, float64(items[i].Margin))
		pVolume := PercentileRank(volumes, float64(items[i].Volume))
		pROI := PercentileRank(rois, items[i].ROI)
		items[i].Score = pMargin*WeightMargin + pVolume*WeightVolume + pROI*WeightROI
	}
}

// PercentileRank returns the percentage of sorted (ascending) entries
// strictly below value. Returns 0 for an empty population.
func PercentileRank(sorted []float64, value float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	// Left insertion point: count of elements < value.
	below := sort.Search(len(sorted), func(i int) bool {
		return sorted[i] >= value
	})
	return float64(below) / float64(len(sorted)) * 100
}

// Pump reports whether the 5-minute volume is running hot against the
// trailing hour: more than 3x the hourly average per 5-minute slice.
// Thin markets (hourly volume under 100) never flag.
func Pump(vol5m, vol1h int64) bool {
	if vol1h < 100 {
		return false
	}
	avg5m := float64(vol1h) / 12
	return float64(vol5m) > avg5m*3
}
