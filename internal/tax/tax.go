// Package tax implements the exchange transaction tax applied to every sale.
//
// The tax is a flat percentage of the sell price, floored per unit, with two
// carve-outs:
//   - Sales below a free threshold are untaxed entirely.
//   - The per-unit tax is capped, so very expensive items pay a fixed amount.
//
// The 2% multiplication is done in shopspring/decimal rather than float64:
// floor(price * 0.02) computed in binary floating point can land one coin off
// near representation boundaries, and a tax table that disagrees with the
// exchange by one coin is worse than useless.
package tax

import (
	"github.com/shopspring/decimal"
)

const (
	// FreeThreshold is the sell price below which no tax is charged.
	FreeThreshold int64 = 50

	// Cap is the maximum tax per unit sold.
	Cap int64 = 5_000_000
)

// Rate is the flat tax rate applied to the sell price.
var Rate = decimal.NewFromFloat(0.02)

// Tax returns the tax charged per unit for a sale at sellPrice.
// Pure and total: negative or sub-threshold prices yield 0.
func Tax(sellPrice int64) int64 {
	if sellPrice < FreeThreshold {
		return 0
	}
	raw := decimal.NewFromInt(sellPrice).Mul(Rate).Floor().IntPart()
	if raw > Cap {
		return Cap
	}
	return raw
}

// NetProfit is the per-unit profit of buying at buyPrice and selling at
// sellPrice, after tax.
func NetProfit(buyPrice, sellPrice int64) int64 {
	return sellPrice - buyPrice - Tax(sellPrice)
}

// ROIPercent expresses profit as a percentage of the buy price.
// Returns 0 for a zero buy price rather than dividing by it.
func ROIPercent(profit, buyPrice int64) float64 {
	if buyPrice == 0 {
		return 0
	}
	return float64(profit) / float64(buyPrice) * 100
}
