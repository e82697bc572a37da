// Package worker runs background jobs next to the HTTP server.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"postcontest/src/core/ports"
	"postcontest/src/core/usecase"
)

// RoundEvaluator periodically evaluates rounds that ended within the lookback
// window. Evaluation is idempotent, so overlapping windows are harmless.
type RoundEvaluator struct {
	qualification *usecase.QualificationService
	clock         ports.Clock
	interval      time.Duration
	lookback      time.Duration
	log           *slog.Logger
}

func NewRoundEvaluator(qualification *usecase.QualificationService, clock ports.Clock, interval, lookback time.Duration, log *slog.Logger) *RoundEvaluator {
	return &RoundEvaluator{
		qualification: qualification,
		clock:         clock,
		interval:      interval,
		lookback:      lookback,
		log:           log,
	}
}

// Sweep runs one evaluation pass and returns the number of rounds evaluated.
func (w *RoundEvaluator) Sweep(ctx context.Context) (int, error) {
	now := w.clock.Now()
	evals, err := w.qualification.EvaluateEndedBetween(ctx, now.Add(-w.lookback), now)
	updated := 0
	for _, ev := range evals {
		updated += ev.Updated
	}
	if len(evals) > 0 || err != nil {
		w.log.Info("evaluation sweep finished",
			"rounds", len(evals),
			"updated", updated,
			"error", err,
		)
	}
	return len(evals), err
}

// Run schedules Sweep every interval and blocks until ctx is done.
func (w *RoundEvaluator) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error("evaluation sweep failed", "error", err)
			}
		}),
		gocron.WithName("round-evaluator"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule round evaluator: %w", err)
	}

	w.log.Info("round evaluator started", "interval", w.interval, "lookback", w.lookback)
	sched.Start()

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	w.log.Info("round evaluator stopped")
	return nil
}
