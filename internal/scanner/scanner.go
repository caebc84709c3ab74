// Package scanner turns due category schedules into pending crawl jobs.
package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/telemetry"
)

// CapacityEstimator reports aggregate scheduled load. The scanner logs the
// report; it never blocks job creation on it.
type CapacityEstimator interface {
	Estimate(ctx context.Context) (core.CapacityReport, error)
}

// Scanner claims due categories and appends one scheduled job per claim.
//
// Claiming and advancing next_scheduled_at happen in a single store operation,
// so a scan pass that overlaps a slow predecessor creates no duplicate jobs.
type Scanner struct {
	categories core.CategoryStore
	jobs       core.JobStore
	capacity   CapacityEstimator
	ids        core.IDGenerator
	logger     *zap.Logger
	maxRetries int
}

// New constructs a Scanner. maxRetries seeds every scheduled job's retry
// budget.
func New(categories core.CategoryStore, jobs core.JobStore, capacity CapacityEstimator,
	ids core.IDGenerator, logger *zap.Logger, maxRetries int) *Scanner {
	return &Scanner{
		categories: categories,
		jobs:       jobs,
		capacity:   capacity,
		ids:        ids,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Scan runs one scheduler pass at the given instant. A failure to create one
// category's job is counted and logged but does not abort the rest of the
// pass.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (core.ScanResult, error) {
	started := time.Now()

	due, err := s.categories.ClaimDueCategories(ctx, now)
	if err != nil {
		telemetry.ObserveScan(time.Since(started), 0, 1)
		return core.ScanResult{}, fmt.Errorf("claim due categories: %w", err)
	}

	result := core.ScanResult{Due: len(due)}
	for _, cat := range due {
		if err := s.createScheduledJob(ctx, cat, now); err != nil {
			result.Errors++
			s.logger.Error("scheduled job creation failed",
				zap.String("category_id", cat.ID),
				zap.Error(err))
			continue
		}
		result.Created++
	}

	if report, err := s.capacity.Estimate(ctx); err != nil {
		s.logger.Warn("capacity estimate failed", zap.Error(err))
	} else {
		result.CapacityLevel = report.Level
		if report.Level != core.CapacityNormal {
			s.logger.Warn("scheduled load above normal",
				zap.Float64("jobs_per_hour", report.JobsPerHour),
				zap.String("level", string(report.Level)),
				zap.Strings("warnings", report.Warnings))
		}
	}

	result.Duration = time.Since(started)
	telemetry.ObserveScan(result.Duration, result.Created, result.Errors)

	s.logger.Info("scan pass complete",
		zap.Int("due", result.Due),
		zap.Int("created", result.Created),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (s *Scanner) createScheduledJob(ctx context.Context, cat core.Category, now time.Time) error {
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate job id: %w", err)
	}
	correlationID, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate correlation id: %w", err)
	}

	job := core.CrawlJob{
		ID:            id,
		CategoryID:    cat.ID,
		Status:        core.JobStatusPending,
		Type:          core.JobTypeScheduled,
		Priority:      core.PriorityDefault,
		MaxRetries:    s.maxRetries,
		CreatedAt:     now,
		CorrelationID: correlationID,
		DateRange:     cat.CrawlPeriod,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}
