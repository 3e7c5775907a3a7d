package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/storypress/storypress/internal/config"
)

// integritySchedule runs the duplicate-title and zero-slide sweeps hourly.
const integritySchedule = "15 * * * *"

// StartScheduler creates and starts an Asynq Scheduler for the periodic
// sweeps. Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	// Stall recovery: this sweep is the system's sole crash-recovery
	// mechanism, so it must keep firing even if a run overlaps; Unique
	// prevents pile-up when the scheduler itself is restarted.
	reclaimTask := asynq.NewTask(
		TaskReclaimStalled,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Minute),
		asynq.Unique(2*time.Minute),
	)
	if _, err := scheduler.Register(cfg.SweepSchedule, reclaimTask); err != nil {
		return nil, fmt.Errorf("failed to register reclaim schedule: %w", err)
	}

	integrityTask := asynq.NewTask(
		TaskIntegritySweep,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(30*time.Minute),
	)
	if _, err := scheduler.Register(integritySchedule, integrityTask); err != nil {
		return nil, fmt.Errorf("failed to register integrity schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info(
		"Scheduler started",
		"reclaim_schedule", cfg.SweepSchedule,
		"integrity_schedule", integritySchedule,
	)

	return func() { scheduler.Shutdown() }, nil
}
