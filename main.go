// Package main is the entry point for the competition engine.
//
//	app                                        serve the HTTP API (default)
//	app serve
//	app reconcile -op=fix -competition=42      run one repair job and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"postcontest/src/app/server"
	"postcontest/src/app/worker"
	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
	"postcontest/src/infra/config"
	"postcontest/src/infra/db"
	"postcontest/src/infra/logger"
	"postcontest/src/infra/repo"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize logger
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := cfg.Entry.EntryPolicy()
	if err != nil {
		return err
	}
	clock := ports.SystemClock{}
	svc := usecase.NewServices(store, clock, policy, cfg.Admin.Token, log)

	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		return serve(ctx, cfg, log, svc, clock)
	case "reconcile":
		return reconcile(ctx, log, svc, args)
	default:
		return fmt.Errorf("unknown command %q (want serve or reconcile)", cmd)
	}
}

// openStore builds the configured repository and returns its cleanup.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (ports.ContestRepository, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return repo.NewMemoryRepository(), func() {}, nil
	}

	// Initialize database connection
	pg, err := db.New(ctx, cfg.Database, logger.WithComponent(log, "db"))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.MigrateOnStart {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	return repo.NewPostgresRepository(pg, logger.WithComponent(log, "repo")), pg.Close, nil
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, svc *usecase.Services, clock ports.Clock) error {
	log.Info("starting application",
		"port", cfg.Server.Port,
		"log_level", cfg.Log.Level,
		"storage", cfg.Storage.Driver,
		"resubmit_policy", svc.Entries.Policy().Resubmit,
		"scheduler", cfg.Scheduler.Enabled,
	)

	srv := server.New(cfg, logger.WithComponent(log, "http"), svc, clock)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if cfg.Scheduler.Enabled {
		evaluator := worker.NewRoundEvaluator(svc.Qualification, clock,
			cfg.Scheduler.Interval, cfg.Scheduler.Lookback, logger.WithComponent(log, "worker"))
		g.Go(func() error { return evaluator.Run(gctx) })
	}

	// Wait blocks until a shutdown signal or a component failure
	return g.Wait()
}

func reconcile(ctx context.Context, log *slog.Logger, svc *usecase.Services, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	op := fs.String("op", usecase.OpFixAll, "operation: rebuild, sync or fix")
	competitionID := fs.Int64("competition", 0, "competition id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *competitionID <= 0 {
		return errors.New("reconcile: -competition is required")
	}

	var (
		report any
		err    error
	)
	switch *op {
	case usecase.OpRebuild:
		report, err = svc.Reconcile.RebuildEntries(ctx, *competitionID)
	case usecase.OpSync:
		report, err = svc.Reconcile.SyncRoundEntries(ctx, *competitionID)
	case usecase.OpFixAll:
		report, err = svc.Reconcile.FixAllEntries(ctx, *competitionID)
	default:
		return fmt.Errorf("reconcile: unknown -op %q", *op)
	}

	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		logger.PartialFailures(logger.WithCompetition(log, *competitionID), err)
		return fmt.Errorf("reconcile %s: %w", *op, err)
	}
	return nil
}
