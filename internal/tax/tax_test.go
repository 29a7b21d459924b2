package tax

import (
	"testing"
)

func TestTax_BelowThreshold(t *testing.T) {
	if got := Tax(49); got != 0 {
		t.Errorf("tax(49) = %d, want 0", got)
	}
	if got := Tax(0); got != 0 {
		t.Errorf("tax(0) = %d, want 0", got)
	}
	if got := Tax(-100); got != 0 {
		t.Errorf("tax(-100) = %d, want 0", got)
	}
}

func TestTax_AtThreshold(t *testing.T) {
	if got := Tax(50); got != 1 {
		t.Errorf("tax(50) = %d, want 1", got)
	}
}

func TestTax_Flooring(t *testing.T) {
	tests := []struct {
		price int64
		want  int64
	}{
		{50, 1},
		{99, 1},   // 1.98 floors to 1
		{100, 2},
		{149, 2},  // 2.98 floors to 2
		{151, 3},  // 3.02 floors to 3
		{1_000, 20},
	}
	for _, tt := range tests {
		if got := Tax(tt.price); got != tt.want {
			t.Errorf("tax(%d) = %d, want %d", tt.price, got, tt.want)
		}
	}
}

func TestTax_NotYetCapped(t *testing.T) {
	if got := Tax(10_000_000); got != 200_000 {
		t.Errorf("tax(10M) = %d, want 200000", got)
	}
}

func TestTax_Capped(t *testing.T) {
	// Raw 2% of 300M is 6M, above the 5M cap.
	if got := Tax(300_000_000); got != 5_000_000 {
		t.Errorf("tax(300M) = %d, want 5000000", got)
	}
	// Exactly at the cap boundary: 2% of 250M = 5M.
	if got := Tax(250_000_000); got != 5_000_000 {
		t.Errorf("tax(250M) = %d, want 5000000", got)
	}
}

func TestNetProfit(t *testing.T) {
	// Buy 900, sell 1000: tax 20, profit 80.
	if got := NetProfit(900, 1000); got != 80 {
		t.Errorf("NetProfit(900, 1000) = %d, want 80", got)
	}
	// Immediate round trip below threshold is free.
	if got := NetProfit(40, 40); got != 0 {
		t.Errorf("NetProfit(40, 40) = %d, want 0", got)
	}
	// Round trip above threshold loses exactly the tax.
	if got := NetProfit(100, 100); got != -2 {
		t.Errorf("NetProfit(100, 100) = %d, want -2", got)
	}
}

func TestROIPercent(t *testing.T) {
	if got := ROIPercent(50, 100); got != 50 {
		t.Errorf("ROIPercent(50, 100) = %v, want 50", got)
	}
	if got := ROIPercent(100, 0); got != 0 {
		t.Errorf("ROIPercent with zero buy price = %v, want 0", got)
	}
	if got := ROIPercent(-20, 100); got != -20 {
		t.Errorf("ROIPercent(-20, 100) = %v, want -20", got)
	}
}
