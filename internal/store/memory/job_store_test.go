package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newswatch/newswatch/internal/core"
)

func pendingJob(id string, priority int, createdAt time.Time) core.CrawlJob {
	return core.CrawlJob{
		ID:         id,
		CategoryID: "cat-1",
		Status:     core.JobStatusPending,
		Type:       core.JobTypeScheduled,
		Priority:   priority,
		MaxRetries: 3,
		CreatedAt:  createdAt,
	}
}

func TestClaimNextJobPriorityOrdering(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	// Older low-priority job, newer run-now job, mid-priority in between.
	require.NoError(t, store.CreateJob(ctx, pendingJob("job-low", 1, base)))
	require.NoError(t, store.CreateJob(ctx, pendingJob("job-runnow", core.PriorityRunNow, base.Add(5*time.Second))))
	require.NoError(t, store.CreateJob(ctx, pendingJob("job-mid", 5, base.Add(time.Second))))

	now := base.Add(time.Minute)
	first, err := store.ClaimNextJob(ctx, now)
	require.NoError(t, err)
	require.Equal(t, "job-runnow", first.ID)
	require.Equal(t, core.JobStatusRunning, first.Status)
	require.NotNil(t, first.StartedAt)

	second, err := store.ClaimNextJob(ctx, now)
	require.NoError(t, err)
	require.Equal(t, "job-mid", second.ID)

	third, err := store.ClaimNextJob(ctx, now)
	require.NoError(t, err)
	require.Equal(t, "job-low", third.ID)

	none, err := store.ClaimNextJob(ctx, now)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestClaimNextJobFIFOWithinPriorityBand(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.CreateJob(ctx, pendingJob("job-b", 0, base.Add(time.Second))))
	require.NoError(t, store.CreateJob(ctx, pendingJob("job-a", 0, base)))

	first, err := store.ClaimNextJob(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "job-a", first.ID)
}

func TestClaimNextJobExclusiveUnderConcurrency(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	const jobCount = 20
	for i := 0; i < jobCount; i++ {
		require.NoError(t, store.CreateJob(ctx, pendingJob(
			string(rune('a'+i))+"-job", i%3, base.Add(time.Duration(i)*time.Millisecond))))
	}

	var (
		mu       sync.Mutex
		claimed  = make(map[string]int)
		claimErr error
		wg       sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := store.ClaimNextJob(ctx, base.Add(time.Minute))
				if err != nil {
					mu.Lock()
					claimErr = err
					mu.Unlock()
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, claimErr)

	require.Len(t, claimed, jobCount)
	for id, n := range claimed {
		require.Equal(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestClaimNextJobHonorsNotBefore(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	job := pendingJob("job-delayed", 0, base)
	gate := base.Add(10 * time.Minute)
	job.NotBefore = &gate
	require.NoError(t, store.CreateJob(ctx, job))

	early, err := store.ClaimNextJob(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Nil(t, early)

	late, err := store.ClaimNextJob(ctx, gate.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, late)
	require.Equal(t, "job-delayed", late.ID)
}

func TestSetJobPriorityOnlyWhilePending(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.CreateJob(ctx, pendingJob("job-1", 0, base)))

	updated, err := store.SetJobPriority(ctx, "job-1", core.PriorityRunNow)
	require.NoError(t, err)
	require.Equal(t, core.PriorityRunNow, updated.Priority)

	claimed, err := store.ClaimNextJob(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "job-1", claimed.ID)

	_, err = store.SetJobPriority(ctx, "job-1", 1)
	require.ErrorIs(t, err, core.ErrJobNotPending)

	// No side effect on the running job.
	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, core.PriorityRunNow, job.Priority)

	_, err = store.SetJobPriority(ctx, "missing", 1)
	require.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestUpdateJobConfigForbiddenWhileRunning(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.CreateJob(ctx, pendingJob("job-1", 0, base)))

	retries := 5
	updated, err := store.UpdateJobConfig(ctx, "job-1", core.JobConfigPatch{
		MaxRetries: &retries,
		Metadata:   map[string]string{"requested_by": "ops"},
	})
	require.NoError(t, err)
	require.Equal(t, 5, updated.MaxRetries)
	require.Equal(t, "ops", updated.Metadata["requested_by"])

	_, err = store.ClaimNextJob(ctx, base.Add(time.Minute))
	require.NoError(t, err)

	_, err = store.UpdateJobConfig(ctx, "job-1", core.JobConfigPatch{MaxRetries: &retries})
	require.ErrorIs(t, err, core.ErrJobRunning)
}

func TestTerminalTransitionsSetCompletedAt(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.CreateJob(ctx, pendingJob("job-ok", 0, base)))
	require.NoError(t, store.CreateJob(ctx, pendingJob("job-bad", 0, base.Add(time.Second))))

	now := base.Add(time.Minute)
	for range []int{0, 1} {
		_, err := store.ClaimNextJob(ctx, now)
		require.NoError(t, err)
	}

	done := now.Add(time.Minute)
	require.NoError(t, store.CompleteJob(ctx, "job-ok", core.JobCounters{ArticlesFound: 4, ArticlesSaved: 2}, done))
	require.NoError(t, store.FailJob(ctx, "job-bad", "search provider unreachable", done))

	ok, err := store.GetJob(ctx, "job-ok")
	require.NoError(t, err)
	require.Equal(t, core.JobStatusCompleted, ok.Status)
	require.NotNil(t, ok.CompletedAt)
	require.Equal(t, 4, ok.ArticlesFound)
	require.Equal(t, 2, ok.ArticlesSaved)

	bad, err := store.GetJob(ctx, "job-bad")
	require.NoError(t, err)
	require.Equal(t, core.JobStatusFailed, bad.Status)
	require.Equal(t, "search provider unreachable", bad.ErrorText)
}

func TestCompleteJobToleratesDeletedRow(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.CreateJob(ctx, pendingJob("job-1", 0, base)))
	_, err := store.ClaimNextJob(ctx, base.Add(time.Minute))
	require.NoError(t, err)

	store.DeleteJob("job-1")

	err = store.CompleteJob(ctx, "job-1", core.JobCounters{}, base.Add(2*time.Minute))
	require.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestRequeueForRetryAppendsFreshJob(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0).UTC()

	require.NoError(t, store.CreateJob(ctx, pendingJob("job-1", 0, base)))
	_, err := store.ClaimNextJob(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.FailJob(ctx, "job-1", "boom", base.Add(2*time.Minute)))

	failed, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)

	now := base.Add(2 * time.Minute)
	retry, err := store.RequeueForRetry(ctx, failed, "job-2", now, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "job-2", retry.ID)
	require.Equal(t, core.JobStatusPending, retry.Status)
	require.Equal(t, 1, retry.RetryCount)
	require.Empty(t, retry.ErrorText)

	// The failed row is untouched (append-only history).
	failed, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, core.JobStatusFailed, failed.Status)
	require.Equal(t, "boom", failed.ErrorText)
}
