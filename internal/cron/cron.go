// Package cron runs periodic maintenance for drivers and extensions, such
// as evicting idle identity sessions or expiring stale moderation queues.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "*/5 * * * *").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// ServiceName is the AppContext service holding the shared *Scheduler.
const ServiceName = "scheduler"
