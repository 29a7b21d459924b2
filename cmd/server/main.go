package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/flipdeck/flip-engine/internal/alert"
	"github.com/flipdeck/flip-engine/internal/dash"
	"github.com/flipdeck/flip-engine/internal/metrics"
	"github.com/flipdeck/flip-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Alert evaluator ---
	settings := alert.DefaultSettings
	if v := os.Getenv("ALERT_COOLDOWN_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			settings.Cooldown = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("ALERT_MAX_RETAINED"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.MaxAlertsRetained = n
		}
	}
	evaluator := alert.New(settings)

	// --- WebSocket hub ---
	wsHub := dash.NewWSHub()
	go wsHub.Run()

	// --- Dashboard service ---
	svc := dash.NewService(st, evaluator, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"flip-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time alerts and screener updates.
		r.Get("/ws", wsHub.HandleWS)

		// Transaction journal and derived views.
		r.Post("/transactions", svc.RecordTransaction)
		r.Get("/transactions", svc.ListTransactions)
		r.Get("/flips", svc.ListFlips)
		r.Get("/positions", svc.GetPositions)
		r.Get("/performance", svc.GetPerformance)

		// Market snapshots pushed by the price feed.
		r.Post("/snapshot", svc.IngestSnapshot)
		r.Get("/screener", svc.GetScreener)

		// Alerting.
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", svc.ListAlerts)
			r.Get("/stats", svc.GetAlertStats)
			r.Get("/settings", svc.GetAlertSettings)
			r.Put("/settings", svc.UpdateAlertSettings)
			r.Post("/read-all", svc.MarkAllAlertsRead)
			r.Post("/{alertID}/read", svc.MarkAlertRead)
			r.Delete("/{alertID}", svc.DismissAlert)

			r.Post("/rules", svc.CreateRule)
			r.Get("/rules", svc.ListRules)
			r.Put("/rules/{ruleID}", svc.UpdateRule)
			r.Delete("/rules/{ruleID}", svc.DeleteRule)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("flip-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down flip-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("flip-engine stopped")
}
