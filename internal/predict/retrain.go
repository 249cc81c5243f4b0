package predict

import (
	"context"
	"log/slog"
	"time"

	"github.com/stockgateway/stockgateway/internal/config"
	"github.com/stockgateway/stockgateway/internal/cron"
)

// RetrainScheduler drives Engine.RetrainAll on the cron schedule it is
// given, reusing the same cron.Schedule type (and the robfig/cron/v3
// expression parser it wraps) the rest of the cron package already uses
// for its own job scheduling, rather than a second parsing path.
type RetrainScheduler struct {
	engine   *Engine
	schedule cron.Schedule
	logger   *slog.Logger
}

// NewRetrainScheduler builds a scheduler from a cron schedule config
// (the same {cron|every|at} shape every other scheduled job in this
// codebase is configured with).
func NewRetrainScheduler(engine *Engine, cfg config.CronScheduleConfig, logger *slog.Logger) (*RetrainScheduler, error) {
	sched, err := cron.NewSchedule(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrainScheduler{engine: engine, schedule: sched, logger: logger}, nil
}

// Run blocks, retraining every model on schedule until ctx is canceled.
func (r *RetrainScheduler) Run(ctx context.Context) {
	for {
		next, ok, err := r.schedule.Next(time.Now())
		if err != nil || !ok {
			r.logger.Error("predict: no further retrain runs scheduled", "error", err)
			return
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		symbols := r.engine.TrainedSymbols()
		if len(symbols) == 0 {
			continue
		}
		if err := r.engine.RetrainAll(ctx); err != nil {
			r.logger.Warn("predict: scheduled retrain completed with errors", "symbols", len(symbols), "error", err)
			continue
		}
		r.logger.Info("predict: scheduled retrain complete", "symbols", len(symbols))
	}
}
