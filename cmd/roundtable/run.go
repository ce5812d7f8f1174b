package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roundtable-rtc/engine/internal/adapter/memory"
	"github.com/roundtable-rtc/engine/internal/adapter/postgres"
	"github.com/roundtable-rtc/engine/internal/config"
	"github.com/roundtable-rtc/engine/internal/domain/ledger"
	"github.com/roundtable-rtc/engine/internal/service"
)

// maxSimulateTicks bounds the tick loop. The kick-out rule guarantees
// every phase resolves within MaxThinkTicks ticks, so a run that still
// hasn't reached FINALIZE after this many ticks indicates a configuration
// or engine bug, not a slow but healthy run.
const maxSimulateTicks = 1_000_000

// runSimulate loads a roster and issue, runs the Orchestrator to
// FINALIZE purely by ticking (no external actions are submitted — every
// agent is kicked out into NoAction once its think-tick budget expires,
// per the phase engine's kick-out rule), and prints the resulting ledger.
func runSimulate(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigFile, "path to YAML configuration")
	rosterPath := fs.String("roster", "", "path to a JSON agent roster file (required)")
	issuePath := fs.String("issue", "", "path to a JSON issue document (required)")
	usePostgres := fs.Bool("postgres", false, "persist the ledger to PostgreSQL instead of holding it only in memory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rosterPath == "" || *issuePath == "" {
		return fmt.Errorf("run requires -roster and -issue")
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	roster, err := loadRoster(*rosterPath)
	if err != nil {
		return err
	}
	iss, err := loadIssue(*issuePath, roster, cfg.Mechanism)
	if err != nil {
		return err
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

	orch, err := service.New(ctx, cfg.Mechanism, roster, iss, ledger.New(sink), nil)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	start := time.Now()
	for i := 0; i < maxSimulateTicks; i++ {
		if orch.Phase().IsTerminal() {
			break
		}
		if err := orch.AdvanceTick(ctx); err != nil {
			return fmt.Errorf("advance tick: %w", err)
		}
	}
	if !orch.Phase().IsTerminal() {
		return fmt.Errorf("issue %s did not reach FINALIZE within %d ticks", iss.ID, maxSimulateTicks)
	}

	slog.Info("issue finalized",
		"issue", iss.ID,
		"ticks", humanize.Comma(int64(orch.Tick())),
		"events", humanize.Comma(int64(orch.Ledger.Len())),
		"elapsed", humanize.RelTime(start, time.Now(), "", ""),
	)
	return writeLedgerJSON(orch.Ledger.All())
}
