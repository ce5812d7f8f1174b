package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	rthttp "github.com/roundtable-rtc/engine/internal/adapter/http"
	"github.com/roundtable-rtc/engine/internal/adapter/memory"
	"github.com/roundtable-rtc/engine/internal/adapter/nats"
	rtcotel "github.com/roundtable-rtc/engine/internal/adapter/otel"
	"github.com/roundtable-rtc/engine/internal/adapter/postgres"
	"github.com/roundtable-rtc/engine/internal/adapter/ristretto"
	"github.com/roundtable-rtc/engine/internal/adapter/ws"
	"github.com/roundtable-rtc/engine/internal/config"
	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/service"
)

// scoreCacheBytes bounds the ristretto score cache; standings are a
// handful of floats per active proposal line, not a bulk data cache.
const scoreCacheBytes = 1 << 20

// runServe starts the HTTP action API and a background tick scheduler for
// a single issue, serving agents that drive the run over the network
// instead of in a single process's call stack.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigFile, "path to YAML configuration")
	rosterPath := fs.String("roster", "", "path to a JSON agent roster file (required)")
	issuePath := fs.String("issue", "", "path to a JSON issue document (required)")
	usePostgres := fs.Bool("postgres", false, "persist the ledger to PostgreSQL instead of holding it only in memory")
	tickInterval := fs.Duration("tick-interval", time.Second, "interval between scheduler-driven AdvanceTick calls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rosterPath == "" || *issuePath == "" {
		return fmt.Errorf("serve requires -roster and -issue")
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roster, err := loadRoster(*rosterPath)
	if err != nil {
		return err
	}
	iss, err := loadIssue(*issuePath, roster, cfg.Mechanism)
	if err != nil {
		return err
	}

	shutdownTracer := rtcotel.InitTracer(cfg.Logging.Service)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	metrics, err := rtcotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	var sink ledger.Sink
	if *usePostgres {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		sink = postgres.NewEventStore(pool)
	} else {
		sink = memory.New()
	}

	hub := ws.NewHub()

	broadcaster := service.MultiBroadcaster{hub}
	if cfg.NATS.Enabled {
		queue, err := nats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		broadcaster = append(broadcaster, queue)
	}

	orch, err := service.New(ctx, cfg.Mechanism, roster, iss, ledger.New(sink), broadcaster)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	scoreCache, err := ristretto.New(scoreCacheBytes)
	if err != nil {
		return fmt.Errorf("score cache: %w", err)
	}
	orch.SetScoreCache(scoreCache)
	orch.SetMetrics(metrics)

	handlers := rthttp.NewHandlers(orch)

	r := chi.NewRouter()
	r.Use(rthttp.SecurityHeaders)
	r.Use(rthttp.CORS(cfg.Server.CORSOrigin))
	r.Use(rthttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(rtcotel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", hub.HandleWS)
	rthttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tickerDone := make(chan struct{})
	go runTickScheduler(ctx, orch, *tickInterval, tickerDone)

	go func() {
		slog.Info("starting server", "addr", addr, "issue", iss.ID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	<-tickerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runTickScheduler calls AdvanceTick on a fixed interval until the issue
// reaches a terminal phase or ctx is canceled, closing done on exit.
func runTickScheduler(ctx context.Context, orch *service.Orchestrator, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if orch.Phase().IsTerminal() {
				return
			}
			if err := orch.AdvanceTick(ctx); err != nil {
				slog.Error("advance tick", "error", err)
				return
			}
			if orch.Phase().IsTerminal() {
				slog.Info("issue finalized", "ticks", humanize.Comma(int64(orch.Tick())))
				return
			}
		}
	}
}
