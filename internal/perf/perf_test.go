package perf

import (
	"reflect"
	"testing"
	"time"

	"github.com/flipdeck/flip-engine/internal/model"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// flip is a test helper; age is how long before "now" the sell happened.
func flip(id string, profit int64, roi float64, age time.Duration) model.Flip {
	return model.Flip{
		ID:            id,
		InstrumentID:  1,
		Quantity:      1,
		Profit:        profit,
		ROIPercent:    roi,
		SellTimestamp: now.Add(-age),
		BuyTimestamp:  now.Add(-age - time.Hour),
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, now)
	if s.TotalFlips != 0 || s.BestFlip != nil || s.WorstFlip != nil {
		t.Errorf("empty input should yield zero summary, got %+v", s)
	}
}

func TestSummarize_Totals(t *testing.T) {
	flips := []model.Flip{
		flip("a", 100, 10, time.Hour),
		flip("b", -50, -5, 2*time.Hour),
		flip("c", 200, 20, 3*time.Hour),
	}
	s := Summarize(flips, now)

	if s.TotalProfit != 250 {
		t.Errorf("total profit = %d, want 250", s.TotalProfit)
	}
	if s.TotalROI != 25 {
		t.Errorf("total ROI = %v, want 25 (sum, not average)", s.TotalROI)
	}
	if s.AverageROI != 25.0/3 {
		t.Errorf("average ROI = %v, want %v", s.AverageROI, 25.0/3)
	}
	// 2 of 3 profitable.
	if want := 2.0 / 3 * 100; s.WinRate != want {
		t.Errorf("win rate = %v, want %v", s.WinRate, want)
	}
	if s.BestFlip.ID != "c" || s.WorstFlip.ID != "b" {
		t.Errorf("best/worst = %s/%s, want c/b", s.BestFlip.ID, s.WorstFlip.ID)
	}
}

func TestSummarize_TiesKeepFirstSeen(t *testing.T) {
	flips := []model.Flip{
		flip("first", 100, 0, time.Hour),
		flip("second", 100, 0, 2*time.Hour),
	}
	s := Summarize(flips, now)
	if s.BestFlip.ID != "first" {
		t.Errorf("best flip tie should keep first-seen, got %s", s.BestFlip.ID)
	}
	if s.WorstFlip.ID != "first" {
		t.Errorf("worst flip tie should keep first-seen, got %s", s.WorstFlip.ID)
	}
}

func TestSummarize_SlidingWindowsOverlap(t *testing.T) {
	flips := []model.Flip{
		flip("recent", 100, 0, time.Hour),       // in all three windows
		flip("thisweek", 50, 0, 3*24*time.Hour), // weekly + monthly
		flip("old", 25, 0, 20*24*time.Hour),     // monthly only
		flip("ancient", 10, 0, 40*24*time.Hour), // none
	}
	s := Summarize(flips, now)

	if s.Daily.Flips != 1 || s.Daily.Profit != 100 {
		t.Errorf("daily = %+v, want 1 flip / 100", s.Daily)
	}
	if s.Weekly.Flips != 2 || s.Weekly.Profit != 150 {
		t.Errorf("weekly = %+v, want 2 flips / 150", s.Weekly)
	}
	if s.Monthly.Flips != 3 || s.Monthly.Profit != 175 {
		t.Errorf("monthly = %+v, want 3 flips / 175", s.Monthly)
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	flips := []model.Flip{
		flip("a", 100, 10, time.Hour),
		flip("b", -50, -5, 48*time.Hour),
	}
	a := Summarize(flips, now)
	b := Summarize(flips, now)
	if !reflect.DeepEqual(a, b) {
		t.Error("summaries over the same flips and now must be identical")
	}
}

func TestTrend_DailyBuckets(t *testing.T) {
	flips := []model.Flip{
		{Profit: 10, SellTimestamp: time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)},
		{Profit: 20, SellTimestamp: time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)},
		{Profit: 5, SellTimestamp: time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)},
	}
	pts := Trend(flips, PeriodDaily)
	want := []model.TrendPoint{
		{Period: "2025-06-01", Profit: 30, Flips: 2},
		{Period: "2025-06-02", Profit: 5, Flips: 1},
	}
	if !reflect.DeepEqual(pts, want) {
		t.Errorf("daily trend = %v, want %v", pts, want)
	}
}

func TestTrend_WeeklyBucketsStartSunday(t *testing.T) {
	// 2025-06-04 is a Wednesday; its week starts Sunday 2025-06-01.
	flips := []model.Flip{
		{Profit: 10, SellTimestamp: time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)},
		{Profit: 20, SellTimestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Profit: 5, SellTimestamp: time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)}, // next week
	}
	pts := Trend(flips, PeriodWeekly)
	if len(pts) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %v", pts)
	}
	if pts[0].Period != "2025-06-01" || pts[0].Profit != 30 {
		t.Errorf("first week = %+v, want 2025-06-01 / 30", pts[0])
	}
	if pts[1].Period != "2025-06-08" || pts[1].Profit != 5 {
		t.Errorf("second week = %+v, want 2025-06-08 / 5", pts[1])
	}
}

func TestTrend_MonthlyBuckets(t *testing.T) {
	flips := []model.Flip{
		{Profit: 10, SellTimestamp: time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)},
		{Profit: 20, SellTimestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	pts := Trend(flips, PeriodMonthly)
	if len(pts) != 2 || pts[0].Period != "2025-05" || pts[1].Period != "2025-06" {
		t.Errorf("monthly trend = %v", pts)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	a := Analyze(nil)
	if a.TotalDays != 0 || a.SharpeRatio != 0 || a.ProfitFactor != 0 {
		t.Errorf("empty analytics should be zeroed, got %+v", a)
	}
}

func TestAnalyze_DrawdownAndFactor(t *testing.T) {
	// Daily series: +100, -60, -20, +50. Peak 100, trough 20 → drawdown 80.
	flips := []model.Flip{
		{Profit: 100, SellTimestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Profit: -60, SellTimestamp: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		{Profit: -20, SellTimestamp: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)},
		{Profit: 50, SellTimestamp: time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)},
	}
	a := Analyze(flips)

	if a.TotalDays != 4 {
		t.Errorf("total days = %d, want 4", a.TotalDays)
	}
	if a.MaxDrawdown != 80 {
		t.Errorf("max drawdown = %d, want 80", a.MaxDrawdown)
	}
	if a.MaxDrawdownPercent != 80 {
		t.Errorf("max drawdown %% = %v, want 80", a.MaxDrawdownPercent)
	}
	if want := 150.0 / 80.0; a.ProfitFactor != want {
		t.Errorf("profit factor = %v, want %v", a.ProfitFactor, want)
	}
	if a.AvgWin != 75 {
		t.Errorf("avg win = %v, want 75", a.AvgWin)
	}
	if a.AvgLoss != 40 {
		t.Errorf("avg loss = %v, want 40", a.AvgLoss)
	}
	// Expectancy: 0.5*75 - 0.5*40 = 17.5
	if a.Expectancy != 17.5 {
		t.Errorf("expectancy = %v, want 17.5", a.Expectancy)
	}
	if a.StdDevDailyProfit <= 0 {
		t.Errorf("stddev should be positive, got %v", a.StdDevDailyProfit)
	}
}

func TestAnalyze_SingleDayNoRatios(t *testing.T) {
	flips := []model.Flip{
		{Profit: 100, SellTimestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	a := Analyze(flips)
	if a.SharpeRatio != 0 || a.StdDevDailyProfit != 0 {
		t.Errorf("single-day series must not produce ratios, got %+v", a)
	}
	if a.MeanDailyProfit != 100 {
		t.Errorf("mean = %v, want 100", a.MeanDailyProfit)
	}
}
