// Package dispatch selects which pending job runs next.
//
// There is no in-memory queue: selection happens in the job store, where an
// atomic claim orders pending jobs by priority (descending) then age
// (oldest first). Run-now jobs carry the reserved maximum priority and
// therefore preempt every other pending job without a separate path.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
)

// Dispatcher is the selection policy facade over the job store.
type Dispatcher struct {
	jobs   core.JobStore
	clock  core.Clock
	logger *zap.Logger
}

// New constructs a Dispatcher.
func New(jobs core.JobStore, clock core.Clock, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{jobs: jobs, clock: clock, logger: logger}
}

// NextJob claims the next eligible pending job, or returns nil when none is
// due. Concurrent workers calling NextJob never receive the same job.
func (d *Dispatcher) NextJob(ctx context.Context) (*core.CrawlJob, error) {
	job, err := d.jobs.ClaimNextJob(ctx, d.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	if job != nil {
		d.logger.Debug("job claimed",
			zap.String("job_id", job.ID),
			zap.String("category_id", job.CategoryID),
			zap.Int("priority", job.Priority))
	}
	return job, nil
}

// SetPriority changes a pending job's priority. Only pending jobs are
// mutable; the store rejects everything else.
func (d *Dispatcher) SetPriority(ctx context.Context, id string, priority int) (core.CrawlJob, error) {
	if priority < core.PriorityDefault || priority > core.PriorityRunNow {
		return core.CrawlJob{}, core.ErrInvalidPriority
	}
	job, err := d.jobs.SetJobPriority(ctx, id, priority)
	if err != nil {
		return core.CrawlJob{}, err
	}
	d.logger.Info("job priority updated",
		zap.String("job_id", id),
		zap.Int("priority", priority))
	return job, nil
}

// RunNow promotes a pending job to the reserved run-now priority.
func (d *Dispatcher) RunNow(ctx context.Context, id string) (core.CrawlJob, error) {
	return d.SetPriority(ctx, id, core.PriorityRunNow)
}

// UpdateConfig applies a partial configuration update to a pending job.
func (d *Dispatcher) UpdateConfig(ctx context.Context, id string, patch core.JobConfigPatch) (core.CrawlJob, error) {
	if patch.Priority != nil &&
		(*patch.Priority < core.PriorityDefault || *patch.Priority > core.PriorityRunNow) {
		return core.CrawlJob{}, core.ErrInvalidPriority
	}
	if patch.MaxRetries != nil && *patch.MaxRetries < 0 {
		return core.CrawlJob{}, fmt.Errorf("max_retries must be non-negative")
	}
	job, err := d.jobs.UpdateJobConfig(ctx, id, patch)
	if err != nil {
		return core.CrawlJob{}, err
	}
	d.logger.Info("job config updated", zap.String("job_id", id))
	return job, nil
}
