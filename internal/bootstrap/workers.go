package bootstrap

import (
	"costguardian/internal/workers"
)

// provideScheduler registers the background workers
func provideScheduler(c *Container) *workers.Scheduler {
	scheduler := workers.NewScheduler()

	scheduler.RegisterWorker(workers.NewAccuracyAuditWorker(
		c.Repos.Predictions,
		c.Services.Predictor,
		c.Config.Workers.AccuracyAuditInterval,
		c.Config.Workers.AccuracyAuditMaxSubjects,
		c.Config.Workers.AccuracyAuditInterval > 0,
	))

	return scheduler
}
