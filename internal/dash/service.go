// Package dash provides the HTTP handlers and business logic for the flip
// dashboard: recording transactions, reconciling them into flips, serving
// performance roll-ups, ranking market snapshots, and managing alerts.
//
// All prices and profits are whole coins (int64) — never float64 for money.
package dash

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flipdeck/flip-engine/internal/alert"
	"github.com/flipdeck/flip-engine/internal/fifo"
	"github.com/flipdeck/flip-engine/internal/metrics"
	"github.com/flipdeck/flip-engine/internal/model"
	"github.com/flipdeck/flip-engine/internal/perf"
	"github.com/flipdeck/flip-engine/internal/ranker"
	"github.com/flipdeck/flip-engine/internal/store"
)

// Service handles dashboard operations. A mutex serializes the two write
// paths that recompute derived state (transaction recording and snapshot
// ingestion); reads go straight to the store.
type Service struct {
	store     store.Store
	evaluator *alert.Evaluator
	wsHub     *WSHub // optional WebSocket hub for real-time broadcasts

	mu    sync.Mutex
	items []model.MarketItem // latest ranked screener rows, score desc
}

// NewService creates a new dashboard service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, ev *alert.Evaluator, hub *WSHub) *Service {
	return &Service{
		store:     st,
		evaluator: ev,
		wsHub:     hub,
	}
}

// --- Request/Response types ---

// RecordTransactionRequest is the JSON body for POST /transactions.
type RecordTransactionRequest struct {
	InstrumentID int64     `json:"instrument_id"`
	Side         string    `json:"side"` // "buy" or "sell"
	Quantity     int64     `json:"quantity"`
	UnitPrice    int64     `json:"unit_price"`
	Timestamp    time.Time `json:"timestamp"` // zero → server time
}

// RecordTransactionResponse returns the stored transaction plus the match
// statistics of the reconciliation it triggered.
type RecordTransactionResponse struct {
	Transaction model.Transaction `json:"transaction"`
	Flips       int               `json:"flips"`
	Stats       model.MatchStats  `json:"stats"`
}

// SnapshotRequest is the JSON body for POST /snapshot, pushed by the price
// feed collaborator.
type SnapshotRequest struct {
	TakenAt time.Time               `json:"taken_at"` // zero → server time
	Quotes  []model.InstrumentQuote `json:"quotes"`
}

// SnapshotResponse summarizes one ingested snapshot.
type SnapshotResponse struct {
	Items  int `json:"items"`
	Alerts int `json:"alerts"`
}

// PerformanceResponse bundles the roll-up, day-level analytics, and the
// requested trend series.
type PerformanceResponse struct {
	Summary   model.PerformanceSummary `json:"summary"`
	Analytics perf.Analytics           `json:"analytics"`
	Trend     []model.TrendPoint       `json:"trend"`
	Period    string                   `json:"period"`
}

// PositionsResponse is the open inventory view.
type PositionsResponse struct {
	Positions []model.OpenPosition `json:"positions"`
	Stats     model.MatchStats     `json:"stats"`
}

// RuleRequest is the JSON body for creating or updating an alert rule.
type RuleRequest struct {
	InstrumentID int64                  `json:"instrument_id"`
	Thresholds   *model.AlertThresholds `json:"thresholds"` // nil → defaults
	Enabled      *bool                  `json:"enabled"`    // nil → true
}

// --- Transaction journal ---

// RecordTransaction handles POST /api/v1/transactions.
// Stores the transaction and re-runs lot matching over the full journal.
func (s *Service) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	side := model.Side(req.Side)
	if side != model.SideBuy && side != model.SideSell {
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		writeError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}
	if req.UnitPrice <= 0 {
		writeError(w, "unit_price must be positive", http.StatusBadRequest)
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	txn := &model.Transaction{
		ID:           uuid.New().String(),
		InstrumentID: req.InstrumentID,
		Side:         side,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		Timestamp:    ts,
	}

	ctx := r.Context()

	// Serialize against other recomputes.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to store transaction", http.StatusInternalServerError)
		return
	}

	txns, err := s.store.ListTransactions(ctx)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	result := fifo.Match(txns)
	if err := s.store.ReplaceFlips(ctx, result.Flips); err != nil {
		writeError(w, "failed to store flips", http.StatusInternalServerError)
		return
	}
	metrics.TransactionsTotal.WithLabelValues(string(side)).Inc()
	metrics.FlipsMatched.Set(float64(len(result.Flips)))
	metrics.MatchRate.Set(result.Stats.MatchRatePercent)

	slog.Info("transaction recorded",
		"id", txn.ID,
		"instrument", txn.InstrumentID,
		"side", side,
		"qty", req.Quantity,
		"price", req.UnitPrice,
		"flips", len(result.Flips),
		"match_rate", result.Stats.MatchRatePercent,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RecordTransactionResponse{
		Transaction: *txn,
		Flips:       len(result.Flips),
		Stats:       result.Stats,
	})
}

// ListTransactions handles GET /api/v1/transactions.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.store.ListTransactions(r.Context())
	if err != nil {
		writeError(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

// --- Flips and positions ---

// ListFlips handles GET /api/v1/flips.
// Optionally filtered by ?instrument_id=<id>.
func (s *Service) ListFlips(w http.ResponseWriter, r *http.Request) {
	flips, err := s.store.ListFlips(r.Context())
	if err != nil {
		writeError(w, "failed to list flips", http.StatusInternalServerError)
		return
	}
	if flips == nil {
		flips = []model.Flip{}
	}

	if q := r.URL.Query().Get("instrument_id"); q != "" {
		id, err := parseInt64(q)
		if err != nil {
			writeError(w, "invalid instrument_id", http.StatusBadRequest)
			return
		}
		filtered := []model.Flip{}
		for _, f := range flips {
			if f.InstrumentID == id {
				filtered = append(filtered, f)
			}
		}
		flips = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(flips)
}

// GetPositions handles GET /api/v1/positions.
// Open inventory is derived, so it is recomputed from the journal on read.
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.store.ListTransactions(r.Context())
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	result := fifo.Match(txns)
	positions := result.OpenPositions
	if positions == nil {
		positions = []model.OpenPosition{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PositionsResponse{
		Positions: positions,
		Stats:     result.Stats,
	})
}

// GetPerformance handles GET /api/v1/performance.
// The trend series defaults to daily; override with ?period=weekly|monthly.
func (s *Service) GetPerformance(w http.ResponseWriter, r *http.Request) {
	flips, err := s.store.ListFlips(r.Context())
	if err != nil {
		writeError(w, "failed to list flips", http.StatusInternalServerError)
		return
	}

	period := perf.Period(r.URL.Query().Get("period"))
	switch period {
	case perf.PeriodDaily, perf.PeriodWeekly, perf.PeriodMonthly:
	case "":
		period = perf.PeriodDaily
	default:
		writeError(w, "period must be daily, weekly, or monthly", http.StatusBadRequest)
		return
	}

	trend := perf.Trend(flips, period)
	if trend == nil {
		trend = []model.TrendPoint{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PerformanceResponse{
		Summary:   perf.Summarize(flips, time.Now().UTC()),
		Analytics: perf.Analyze(flips),
		Trend:     trend,
		Period:    string(period),
	})
}

// --- Market snapshots and screener ---

// IngestSnapshot handles POST /api/v1/snapshot.
// Ranks the snapshot into screener rows, runs alert evaluation against the
// active rules, and broadcasts the results.
func (s *Service) IngestSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Quotes) == 0 {
		writeError(w, "snapshot has no quotes", http.StatusBadRequest)
		return
	}

	takenAt := req.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now().UTC()
	}

	snap := model.MarketSnapshot{
		TakenAt: takenAt,
		Quotes:  make(map[int64]model.InstrumentQuote, len(req.Quotes)),
	}
	for _, q := range req.Quotes {
		snap.Quotes[q.InstrumentID] = q
	}

	ctx := r.Context()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	items := ranker.BuildItems(snap)
	byInstrument := make(map[int64]model.MarketItem, len(items))
	for _, it := range items {
		byInstrument[it.InstrumentID] = it
	}

	stored, err := s.store.ListRules(ctx)
	if err != nil {
		writeError(w, "failed to load alert rules", http.StatusInternalServerError)
		return
	}
	rules := make([]*model.AlertRule, len(stored))
	for i := range stored {
		rules[i] = &stored[i]
	}

	alerts := s.evaluator.Evaluate(rules, byInstrument, takenAt)

	for i := range alerts {
		a := &alerts[i]
		if err := s.store.InsertAlert(ctx, a); err != nil {
			slog.Error("failed to persist alert", "alert", a.ID, "err", err)
			continue
		}
		metrics.AlertsEmitted.WithLabelValues(string(a.Type)).Inc()
		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{
				Type:         "alert",
				InstrumentID: a.InstrumentID,
				Severity:     string(a.Severity),
				Title:        a.Title,
				Message:      a.Message,
				Alert:        a,
			})
		}
	}
	if err := s.store.TrimAlerts(ctx, s.evaluator.Settings().MaxAlertsRetained); err != nil {
		slog.Error("failed to trim alerts", "err", err)
	}

	// Persist trigger bookkeeping for rules that fired.
	triggered := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		triggered[a.RuleID] = true
	}
	for _, rule := range rules {
		if !triggered[rule.ID] {
			continue
		}
		if err := s.store.UpdateRule(ctx, rule); err != nil {
			slog.Error("failed to update rule", "rule", rule.ID, "err", err)
		}
	}

	// Screener rows are served score-descending.
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	s.items = items

	metrics.SnapshotsIngested.Inc()
	metrics.SnapshotLatency.Observe(time.Since(start).Seconds())

	slog.Info("snapshot ingested",
		"taken_at", takenAt,
		"quotes", len(req.Quotes),
		"items", len(items),
		"alerts", len(alerts),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    "screener_update",
			Items:   len(items),
			TakenAt: takenAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SnapshotResponse{
		Items:  len(items),
		Alerts: len(alerts),
	})
}

// GetScreener handles GET /api/v1/screener.
// Returns the latest ranked rows, best score first. ?limit=N truncates.
func (s *Service) GetScreener(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]model.MarketItem, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	if q := r.URL.Query().Get("limit"); q != "" {
		limit, err := parseInt64(q)
		if err != nil || limit < 0 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if int64(len(items)) > limit {
			items = items[:limit]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// --- Alert rules ---

// CreateRule handles POST /api/v1/alerts/rules.
func (s *Service) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.InstrumentID <= 0 {
		writeError(w, "instrument_id is required", http.StatusBadRequest)
		return
	}

	th := alert.DefaultThresholds
	if req.Thresholds != nil {
		th = *req.Thresholds
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &model.AlertRule{
		ID:           uuid.New().String(),
		InstrumentID: req.InstrumentID,
		Thresholds:   th,
		Enabled:      enabled,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateRule(r.Context(), rule); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to store rule", http.StatusInternalServerError)
		return
	}

	slog.Info("alert rule created", "id", rule.ID, "instrument", rule.InstrumentID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rule)
}

// ListRules handles GET /api/v1/alerts/rules.
func (s *Service) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		writeError(w, "failed to list rules", http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []model.AlertRule{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

// UpdateRule handles PUT /api/v1/alerts/rules/{ruleID}.
// Thresholds and enabled are replaced; trigger bookkeeping is kept.
func (s *Service) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := s.store.GetRule(r.Context(), ruleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "rule not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load rule", http.StatusInternalServerError)
		return
	}

	if req.Thresholds != nil {
		rule.Thresholds = *req.Thresholds
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := s.store.UpdateRule(r.Context(), rule); err != nil {
		writeError(w, "failed to update rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

// DeleteRule handles DELETE /api/v1/alerts/rules/{ruleID}.
func (s *Service) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")

	if err := s.store.DeleteRule(r.Context(), ruleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "rule not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to delete rule", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Alert feed ---

// ListAlerts handles GET /api/v1/alerts.
func (s *Service) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts(r.Context())
	if err != nil {
		writeError(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// MarkAlertRead handles POST /api/v1/alerts/{alertID}/read.
func (s *Service) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")

	if err := s.store.MarkAlertRead(r.Context(), alertID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "alert not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to mark alert read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllAlertsRead handles POST /api/v1/alerts/read-all.
func (s *Service) MarkAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MarkAllAlertsRead(r.Context()); err != nil {
		writeError(w, "failed to mark alerts read", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DismissAlert handles DELETE /api/v1/alerts/{alertID}.
func (s *Service) DismissAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")

	if err := s.store.DismissAlert(r.Context(), alertID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "alert not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to dismiss alert", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAlertStats handles GET /api/v1/alerts/stats.
func (s *Service) GetAlertStats(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts(r.Context())
	if err != nil {
		writeError(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alert.Stats(alerts, time.Now().UTC()))
}

// --- Alert settings ---

// GetAlertSettings handles GET /api/v1/alerts/settings.
func (s *Service) GetAlertSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.evaluator.Settings())
}

// UpdateAlertSettings handles PUT /api/v1/alerts/settings.
func (s *Service) UpdateAlertSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.AlertSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.evaluator.UpdateSettings(settings)
	slog.Info("alert settings updated",
		"enabled", settings.Enabled,
		"cooldown", s.evaluator.Settings().Cooldown,
		"max_retained", s.evaluator.Settings().MaxAlertsRetained,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.evaluator.Settings())
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
