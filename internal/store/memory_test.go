package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flipdeck/flip-engine/internal/model"
)

func TestMemoryStoreTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	txn := &model.Transaction{ID: "t1", InstrumentID: 4151, Side: model.SideBuy, Quantity: 10, UnitPrice: 100, Timestamp: time.Now()}
	if err := s.InsertTransaction(ctx, txn); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertTransaction(ctx, txn); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate insert = %v, want ErrDuplicate", err)
	}

	txns, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 1 || txns[0].ID != "t1" {
		t.Fatalf("txns = %+v", txns)
	}
}

func TestMemoryStoreFlipsReplaceAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := s.ReplaceFlips(ctx, []model.Flip{
		{ID: "f2", SellTimestamp: base.Add(2 * time.Hour)},
		{ID: "f1", SellTimestamp: base.Add(time.Hour)},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	flips, err := s.ListFlips(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flips) != 2 || flips[0].ID != "f1" {
		t.Fatalf("flips = %+v, want f1 first (sell-time order)", flips)
	}

	// Replace is wholesale, not append.
	if err := s.ReplaceFlips(ctx, []model.Flip{{ID: "f3", SellTimestamp: base}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	flips, _ = s.ListFlips(ctx)
	if len(flips) != 1 || flips[0].ID != "f3" {
		t.Fatalf("flips after replace = %+v", flips)
	}
}

func TestMemoryStoreRules(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	r := &model.AlertRule{ID: "r1", InstrumentID: 4151, Enabled: true, CreatedAt: base}
	if err := s.CreateRule(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	// The stored copy is isolated from later mutation of the argument.
	r.Enabled = false
	got, err := s.GetRule(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Enabled {
		t.Fatal("stored rule mutated through caller pointer")
	}

	got.TriggerCount = 3
	if err := s.UpdateRule(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.GetRule(ctx, "r1")
	if again.TriggerCount != 3 {
		t.Fatalf("trigger count = %d, want 3", again.TriggerCount)
	}

	if err := s.DeleteRule(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetRule(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreAlerts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3"} {
		if err := s.InsertAlert(ctx, &model.Alert{ID: id, Timestamp: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	alerts, err := s.ListAlerts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alerts) != 3 || alerts[0].ID != "a3" {
		t.Fatalf("alerts = %+v, want newest first", alerts)
	}

	if err := s.MarkAlertRead(ctx, "a2"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	alerts, _ = s.ListAlerts(ctx)
	for _, a := range alerts {
		if a.ID == "a2" && !a.Read {
			t.Fatal("a2 not marked read")
		}
	}

	if err := s.DismissAlert(ctx, "a1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := s.DismissAlert(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second dismiss: %v, want ErrNotFound", err)
	}

	if err := s.TrimAlerts(ctx, 1); err != nil {
		t.Fatalf("trim: %v", err)
	}
	alerts, _ = s.ListAlerts(ctx)
	if len(alerts) != 1 || alerts[0].ID != "a3" {
		t.Fatalf("alerts after trim = %+v, want only the newest", alerts)
	}
}
