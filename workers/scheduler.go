package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job is a periodic task run by the scheduler.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// StartScheduler registers jobs on a gocron scheduler and starts it. Runs of the
// same job never overlap. Call Shutdown on the result at exit.
func StartScheduler(ctx context.Context, logger *zap.Logger, jobs ...Job) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, job := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(func() {
				if err := job.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Error("[Scheduler] job failed", zap.String("job", job.Name), zap.Error(err))
				}
			}),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		logger.Info("[Scheduler] job scheduled", zap.String("job", job.Name), zap.Duration("every", job.Interval))
	}

	sched.Start()
	return sched, nil
}
