package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/store/memory"
)

type seqIDs struct{ n int }

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

type fixedCapacity struct{ report core.CapacityReport }

func (c fixedCapacity) Estimate(context.Context) (core.CapacityReport, error) {
	return c.report, nil
}

func dueCategory(id string, interval int, next time.Time) core.Category {
	return core.Category{
		ID:              id,
		Name:            id,
		IncludeKeywords: []string{"news"},
		Active:          true,
		ScheduleEnabled: true,
		IntervalMinutes: interval,
		CrawlPeriod:     "1d",
		NextScheduledAt: &next,
	}
}

func newTestScanner(categories *memory.CategoryStore, jobs core.JobStore) *Scanner {
	capacity := fixedCapacity{report: core.CapacityReport{Level: core.CapacityNormal}}
	return New(categories, jobs, capacity, &seqIDs{}, zap.NewNop(), 3)
}

func TestScanCreatesJobsForDueCategories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	categories := memory.NewCategoryStore()
	categories.PutCategory(dueCategory("cat-due", 30, now.Add(-time.Minute)))
	categories.PutCategory(dueCategory("cat-later", 30, now.Add(time.Hour)))

	jobs := memory.NewJobStore()
	s := newTestScanner(categories, jobs)

	result, err := s.Scan(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, result.Due)
	require.Equal(t, 1, result.Created)
	require.Zero(t, result.Errors)
	require.Equal(t, core.CapacityNormal, result.CapacityLevel)

	created, err := jobs.ListJobs(ctx, core.JobFilter{CategoryID: "cat-due"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	job := created[0]
	require.Equal(t, core.JobStatusPending, job.Status)
	require.Equal(t, core.JobTypeScheduled, job.Type)
	require.Equal(t, core.PriorityDefault, job.Priority)
	require.Equal(t, 3, job.MaxRetries)
	require.Equal(t, "1d", job.DateRange)
	require.NotEmpty(t, job.CorrelationID)
}

func TestScanOverlapCreatesNoDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	categories := memory.NewCategoryStore()
	categories.PutCategory(dueCategory("cat-1", 30, now.Add(-time.Minute)))

	jobs := memory.NewJobStore()
	s := newTestScanner(categories, jobs)

	first, err := s.Scan(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	// A second pass inside the same due window finds nothing: the first claim
	// already advanced next_scheduled_at.
	second, err := s.Scan(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.Zero(t, second.Due)
	require.Zero(t, second.Created)

	all, err := jobs.ListJobs(ctx, core.JobFilter{CategoryID: "cat-1"})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

type failingJobStore struct {
	core.JobStore
	failCategory string
}

func (s failingJobStore) CreateJob(ctx context.Context, job core.CrawlJob) error {
	if job.CategoryID == s.failCategory {
		return errors.New("insert failed")
	}
	return s.JobStore.CreateJob(ctx, job)
}

func TestScanIsolatesPerCategoryFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	categories := memory.NewCategoryStore()
	categories.PutCategory(dueCategory("cat-bad", 30, now.Add(-time.Minute)))
	categories.PutCategory(dueCategory("cat-good", 30, now.Add(-time.Minute)))

	jobs := memory.NewJobStore()
	s := newTestScanner(categories, failingJobStore{JobStore: jobs, failCategory: "cat-bad"})

	result, err := s.Scan(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 2, result.Due)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Errors)

	good, err := jobs.ListJobs(ctx, core.JobFilter{CategoryID: "cat-good"})
	require.NoError(t, err)
	require.Len(t, good, 1)
}
