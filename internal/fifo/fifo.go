// Package fifo converts a chronological transaction log into realized flips
// using strict first-in-first-out lot matching.
//
// Each instrument has its own queue of open buy lots. A sell consumes lots
// from the front of the queue; every full or partial consumption yields one
// flip, so a single sell spanning N lots yields N flips. Matching is
// deterministic: the same log always produces byte-identical output, which
// lets callers recompute from scratch on every invocation instead of
// maintaining incremental state.
package fifo

import (
	"fmt"
	"sort"

	"github.com/flipdeck/flip-engine/internal/model"
	"github.com/flipdeck/flip-engine/internal/tax"
)

// Ledger holds the open buy lots for every instrument. Lots are owned
// exclusively by their queue: created on a buy, shrunk or removed on sells,
// never shared.
type Ledger struct {
	queues map[int64][]model.PositionLot
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{queues: make(map[int64][]model.PositionLot)}
}

// Push appends a new lot to the back of the instrument's queue.
func (l *Ledger) Push(instrumentID int64, lot model.PositionLot) {
	l.queues[instrumentID] = append(l.queues[instrumentID], lot)
}

// Consumption is one slice taken off a lot by a sell.
type Consumption struct {
	Lot      model.PositionLot // snapshot before shrinking
	Quantity int64
}

// Consume takes up to quantity units off the front of the instrument's
// queue and reports each lot slice consumed. The returned total may be less
// than requested when the queue runs dry (oversell).
func (l *Ledger) Consume(instrumentID, quantity int64) []Consumption {
	queue := l.queues[instrumentID]
	var out []Consumption

	remaining := quantity
	for remaining > 0 && len(queue) > 0 {
		lot := &queue[0]
		matched := lot.Quantity
		if matched > remaining {
			matched = remaining
		}

		out = append(out, Consumption{Lot: *lot, Quantity: matched})

		lot.Quantity -= matched
		remaining -= matched
		if lot.Quantity <= 0 {
			queue = queue[1:]
		}
	}

	l.queues[instrumentID] = queue
	return out
}

// Open aggregates the surviving lots into per-instrument positions,
// sorted by instrument ID.
func (l *Ledger) Open() []model.OpenPosition {
	var out []model.OpenPosition
	for id, queue := range l.queues {
		if len(queue) == 0 {
			continue
		}
		pos := model.OpenPosition{
			InstrumentID: id,
			OldestLotAt:  queue[0].OpenedAt,
		}
		for _, lot := range queue {
			pos.Quantity += lot.Quantity
			pos.CostBasis += lot.UnitCost * lot.Quantity
			if lot.OpenedAt.Before(pos.OldestLotAt) {
				pos.OldestLotAt = lot.OpenedAt
			}
		}
		if pos.Quantity > 0 {
			pos.AvgCost = float64(pos.CostBasis) / float64(pos.Quantity)
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InstrumentID < out[j].InstrumentID
	})
	return out
}

// Result is the full output of one matching pass.
type Result struct {
	Flips         []model.Flip         `json:"flips"`
	OpenPositions []model.OpenPosition `json:"open_positions"`
	Stats         model.MatchStats     `json:"stats"`
}

// Match replays the transaction log and returns every realized flip, the
// remaining open inventory, and coverage statistics.
//
// Transactions are processed in non-decreasing timestamp order with input
// order as the tie-break, so a sell can only ever match lots opened at or
// before its own timestamp. Rows with non-positive quantity or price are
// skipped, and sells exceeding available lot quantity have the excess
// dropped without producing flips; both show up in Stats.
func Match(txns []model.Transaction) *Result {
	ordered := make([]model.Transaction, 0, len(txns))
	skipped := 0
	for _, tx := range txns {
		if tx.Quantity <= 0 || tx.UnitPrice <= 0 {
			skipped++
			continue
		}
		if tx.Side != model.SideBuy && tx.Side != model.SideSell {
			skipped++
			continue
		}
		ordered = append(ordered, tx)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	ledger := NewLedger()
	result := &Result{Stats: model.MatchStats{SkippedRows: skipped}}

	for _, tx := range ordered {
		if tx.Side == model.SideBuy {
			ledger.Push(tx.InstrumentID, model.PositionLot{
				Quantity:            tx.Quantity,
				UnitCost:            tx.UnitPrice,
				OriginTransactionID: tx.ID,
				OpenedAt:            tx.Timestamp,
			})
			continue
		}

		result.Stats.TotalSellQty += tx.Quantity

		matched := int64(0)
		for _, c := range ledger.Consume(tx.InstrumentID, tx.Quantity) {
			matched += c.Quantity
			result.Flips = append(result.Flips, makeFlip(tx, c))
		}

		result.Stats.MatchedSellQty += matched
		result.Stats.UnmatchedSellQty += tx.Quantity - matched
	}

	if result.Stats.TotalSellQty > 0 {
		result.Stats.MatchRatePercent = float64(result.Stats.MatchedSellQty) /
			float64(result.Stats.TotalSellQty) * 100
	}

	result.OpenPositions = ledger.Open()
	return result
}

// makeFlip realizes one lot consumption against the matching sell.
// Tax is charged on the sell's unit price times the matched quantity;
// the lot's original quantity plays no part.
func makeFlip(sell model.Transaction, c Consumption) model.Flip {
	taxPaid := tax.Tax(sell.UnitPrice) * c.Quantity
	profit := (sell.UnitPrice-c.Lot.UnitCost)*c.Quantity - taxPaid

	holding := sell.Timestamp.Sub(c.Lot.OpenedAt)
	if holding < 0 {
		holding = 0
	}

	return model.Flip{
		ID:                flipID(c.Lot.OriginTransactionID, sell.ID),
		InstrumentID:      sell.InstrumentID,
		Quantity:          c.Quantity,
		BuyUnitPrice:      c.Lot.UnitCost,
		SellUnitPrice:     sell.UnitPrice,
		BuyTransactionID:  c.Lot.OriginTransactionID,
		SellTransactionID: sell.ID,
		BuyTimestamp:      c.Lot.OpenedAt,
		SellTimestamp:     sell.Timestamp,
		TaxPaid:           taxPaid,
		Profit:            profit,
		ROIPercent:        tax.ROIPercent((sell.UnitPrice-c.Lot.UnitCost)*c.Quantity, c.Lot.UnitCost*c.Quantity),
		HoldingDuration:   holding,
	}
}

// flipID derives a stable identifier from the matched transaction pair.
// A lot is consumed by a given sell at most once, so the pair is unique.
func flipID(buyTxID, sellTxID string) string {
	return fmt.Sprintf("flip:%s:%s", buyTxID, sellTxID)
}
