// Package perf rolls a flip collection up into summary statistics.
//
// Everything here is a full recompute over the input: no incremental state.
// Sliding windows (daily/weekly/monthly) are measured relative to a
// caller-supplied "now", so a flip can sit in several windows at once;
// calendar buckets are a separate grouping used for trend charts.
package perf

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/flipdeck/flip-engine/internal/model"
)

// Sliding window widths.
const (
	WindowDaily   = 24 * time.Hour
	WindowWeekly  = 7 * 24 * time.Hour
	WindowMonthly = 30 * 24 * time.Hour
)

// Period selects the calendar bucketing for Trend.
type Period string

const (
	PeriodDaily   Period = "daily"   // ISO date
	PeriodWeekly  Period = "weekly"  // week-start (Sunday) ISO date
	PeriodMonthly Period = "monthly" // YYYY-MM
)

// Summarize computes the full performance summary for a flip collection.
// now anchors the sliding windows; passing the same now and flips twice
// yields identical summaries.
func Summarize(flips []model.Flip, now time.Time) model.PerformanceSummary {
	s := model.PerformanceSummary{TotalFlips: len(flips)}
	if len(flips) == 0 {
		return s
	}

	var holdingSum time.Duration
	wins := 0

	for i := range flips {
		f := &flips[i]
		s.TotalProfit += f.Profit
		s.TotalROI += f.ROIPercent
		holdingSum += f.HoldingDuration
		if f.Profit > 0 {
			wins++
		}

		// Strict comparisons keep the first-seen flip on ties.
		if s.BestFlip == nil || f.Profit > s.BestFlip.Profit {
			s.BestFlip = f
		}
		if s.WorstFlip == nil || f.Profit < s.WorstFlip.Profit {
			s.WorstFlip = f
		}

		age := now.Sub(f.SellTimestamp)
		if age < WindowDaily {
			s.Daily.Flips++
			s.Daily.Profit += f.Profit
		}
		if age < WindowWeekly {
			s.Weekly.Flips++
			s.Weekly.Profit += f.Profit
		}
		if age < WindowMonthly {
			s.Monthly.Flips++
			s.Monthly.Profit += f.Profit
		}
	}

	n := float64(len(flips))
	s.AverageProfit = float64(s.TotalProfit) / n
	s.AverageROI = s.TotalROI / n
	s.AverageHolding = time.Duration(float64(holdingSum) / n)
	s.WinRate = float64(wins) / n * 100
	return s
}

// Trend buckets flips by calendar key for chart display, sorted by key.
func Trend(flips []model.Flip, period Period) []model.TrendPoint {
	grouped := make(map[string]*model.TrendPoint)
	for i := range flips {
		key := bucketKey(flips[i].SellTimestamp, period)
		pt, ok := grouped[key]
		if !ok {
			pt = &model.TrendPoint{Period: key}
			grouped[key] = pt
		}
		pt.Profit += flips[i].Profit
		pt.Flips++
	}

	out := make([]model.TrendPoint, 0, len(grouped))
	for _, pt := range grouped {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Period < out[j].Period
	})
	return out
}

// bucketKey formats a sell timestamp into its calendar bucket. All keys sort
// lexicographically in chronological order.
func bucketKey(ts time.Time, period Period) string {
	ts = ts.UTC()
	switch period {
	case PeriodWeekly:
		weekStart := ts.AddDate(0, 0, -int(ts.Weekday()))
		return weekStart.Format("2006-01-02")
	case PeriodMonthly:
		return ts.Format("2006-01")
	default:
		return ts.Format("2006-01-02")
	}
}

// Analytics are risk/quality figures derived from the daily profit series.
type Analytics struct {
	TotalDays          int     `json:"total_days"`
	ProfitableDays     int     `json:"profitable_days"`
	LosingDays         int     `json:"losing_days"`
	MeanDailyProfit    float64 `json:"mean_daily_profit"`
	StdDevDailyProfit  float64 `json:"stddev_daily_profit"`
	SharpeRatio        float64 `json:"sharpe_ratio"` // annualized: mean/std * sqrt(365)
	MaxDrawdown        int64   `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	ProfitFactor       float64 `json:"profit_factor"` // gross profit / gross loss
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"`
	Expectancy         float64 `json:"expectancy"`
}

// Analyze computes Analytics over the flips' daily calendar series.
// Degenerate inputs (no flips, a single day) produce zeroed ratios rather
// than errors.
func Analyze(flips []model.Flip) Analytics {
	days := Trend(flips, PeriodDaily)
	a := Analytics{TotalDays: len(days)}
	if len(days) == 0 {
		return a
	}

	daily := make([]float64, len(days))
	var grossProfit, grossLoss float64
	var cumulative, peak, maxDrawdown, peakAtMaxDD int64

	for i, d := range days {
		daily[i] = float64(d.Profit)
		switch {
		case d.Profit > 0:
			a.ProfitableDays++
			grossProfit += float64(d.Profit)
		case d.Profit < 0:
			a.LosingDays++
			grossLoss += float64(-d.Profit)
		}

		cumulative += d.Profit
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
			peakAtMaxDD = peak
		}
	}

	a.MaxDrawdown = maxDrawdown
	if peakAtMaxDD > 0 {
		a.MaxDrawdownPercent = float64(maxDrawdown) / float64(peakAtMaxDD) * 100
	}

	a.MeanDailyProfit, _ = stats.Mean(daily)
	if len(daily) >= 2 {
		sd, err := stats.StandardDeviationSample(daily)
		if err == nil {
			a.StdDevDailyProfit = sd
			if sd > 0 {
				a.SharpeRatio = a.MeanDailyProfit / sd * math.Sqrt(365)
			}
		}
	}

	if grossLoss > 0 {
		a.ProfitFactor = grossProfit / grossLoss
	}
	if a.ProfitableDays > 0 {
		a.AvgWin = grossProfit / float64(a.ProfitableDays)
	}
	if a.LosingDays > 0 {
		a.AvgLoss = grossLoss / float64(a.LosingDays)
	}
	winRate := float64(a.ProfitableDays) / float64(len(days))
	lossRate := float64(a.LosingDays) / float64(len(days))
	a.Expectancy = winRate*a.AvgWin - lossRate*a.AvgLoss

	return a
}
