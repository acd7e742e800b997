package cron

import (
	"context"
	"log/slog"
	"time"
)

// SessionCache is the subset of an identity session driver needed by
// IdentityCacheJob.
type SessionCache interface {
	Prune(maxIdle time.Duration) int
}

// IdentityCacheJob evicts cached identity sessions idle longer than MaxIdle.
type IdentityCacheJob struct {
	Cache        SessionCache
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*IdentityCacheJob)(nil)

// Name implements Job.
func (j *IdentityCacheJob) Name() string { return "identity_cache_prune" }

// Schedule implements Job.
func (j *IdentityCacheJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes idle cache entries.
func (j *IdentityCacheJob) Run(_ context.Context) error {
	if pruned := j.Cache.Prune(j.MaxIdle); pruned > 0 {
		j.Logger.Info("cron: pruned idle identity sessions", "count", pruned)
	}
	return nil
}

// IdentityPruner is implemented by identity drivers that create rows for
// anonymous callers.
type IdentityPruner interface {
	PruneIdentities(ctx context.Context, olderThan time.Duration) (int, error)
}

// IdentityPruneJob deletes identity rows older than MaxAge that no comment
// or identity_comment row references.
type IdentityPruneJob struct {
	Pruner       IdentityPruner
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "30 * * * *"
}

// Compile-time interface check.
var _ Job = (*IdentityPruneJob)(nil)

// Name implements Job.
func (j *IdentityPruneJob) Name() string { return "identity_prune_orphans" }

// Schedule implements Job.
func (j *IdentityPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "30 * * * *"
}

// Run deletes orphaned identities.
func (j *IdentityPruneJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := j.Pruner.PruneIdentities(ctx, j.MaxAge)
	if err != nil {
		return err
	}
	if n > 0 {
		j.Logger.Info("cron: deleted orphaned identities", "count", n)
	}
	return nil
}

// PendingExpirer is implemented by the moderation extension.
type PendingExpirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// PendingExpiryJob rejects comments left in the moderation queue longer
// than MaxAge.
type PendingExpiryJob struct {
	Expirer      PendingExpirer
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*PendingExpiryJob)(nil)

// Name implements Job.
func (j *PendingExpiryJob) Name() string { return "moderation_expire_pending" }

// Schedule implements Job.
func (j *PendingExpiryJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run expires stale pending comments.
func (j *PendingExpiryJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := j.Expirer.ExpirePending(ctx, j.MaxAge)
	if err != nil {
		return err
	}
	if n > 0 {
		j.Logger.Info("cron: expired pending comments", "count", n)
	}
	return nil
}
