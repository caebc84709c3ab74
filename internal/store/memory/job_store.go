// Package memory provides in-memory store implementations for development
// and testing. Semantics mirror the postgres package, including atomic
// claims.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/newswatch/newswatch/internal/core"
)

// JobStore is an in-memory core.JobStore.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]core.CrawlJob
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]core.CrawlJob)}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job core.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, id string) (core.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return core.CrawlJob{}, core.ErrJobNotFound
	}
	return job, nil
}

// ClaimNextJob selects and claims the next eligible pending job under a
// single lock, so no two callers ever receive the same job.
func (s *JobStore) ClaimNextJob(_ context.Context, now time.Time) (*core.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []core.CrawlJob
	for _, job := range s.jobs {
		if job.Status != core.JobStatusPending {
			continue
		}
		if job.NotBefore != nil && job.NotBefore.After(now) {
			continue
		}
		eligible = append(eligible, job)
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	claimed := eligible[0]
	claimed.Status = core.JobStatusRunning
	started := now
	claimed.StartedAt = &started
	s.jobs[claimed.ID] = claimed
	return &claimed, nil
}

// CompleteJob records a terminal completed state.
func (s *JobStore) CompleteJob(_ context.Context, id string, counters core.JobCounters, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != core.JobStatusRunning {
		return core.ErrJobNotFound
	}
	job.Status = core.JobStatusCompleted
	completed := now
	job.CompletedAt = &completed
	job.ArticlesFound = counters.ArticlesFound
	job.ArticlesSaved = counters.ArticlesSaved
	s.jobs[id] = job
	return nil
}

// FailJob records a terminal failed state.
func (s *JobStore) FailJob(_ context.Context, id string, errText string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != core.JobStatusRunning {
		return core.ErrJobNotFound
	}
	job.Status = core.JobStatusFailed
	completed := now
	job.CompletedAt = &completed
	job.ErrorText = errText
	s.jobs[id] = job
	return nil
}

// RequeueForRetry appends a fresh pending job derived from a failed one.
func (s *JobStore) RequeueForRetry(
	ctx context.Context,
	failed core.CrawlJob,
	newID string,
	now, notBefore time.Time,
) (core.CrawlJob, error) {
	retry := core.RetryJob(failed, newID, now, notBefore)
	if err := s.CreateJob(ctx, retry); err != nil {
		return core.CrawlJob{}, err
	}
	return retry, nil
}

// SetJobPriority changes the priority of a pending job.
func (s *JobStore) SetJobPriority(_ context.Context, id string, priority int) (core.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return core.CrawlJob{}, core.ErrJobNotFound
	}
	if job.Status != core.JobStatusPending {
		return core.CrawlJob{}, core.ErrJobNotPending
	}
	job.Priority = priority
	s.jobs[id] = job
	return job, nil
}

// UpdateJobConfig applies a partial config patch to a non-running job.
func (s *JobStore) UpdateJobConfig(_ context.Context, id string, patch core.JobConfigPatch) (core.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return core.CrawlJob{}, core.ErrJobNotFound
	}
	if job.Status == core.JobStatusRunning {
		return core.CrawlJob{}, core.ErrJobRunning
	}
	if patch.Priority != nil {
		job.Priority = *patch.Priority
	}
	if patch.MaxRetries != nil {
		job.MaxRetries = *patch.MaxRetries
	}
	if patch.Metadata != nil {
		job.Metadata = make(map[string]string, len(patch.Metadata))
		for k, v := range patch.Metadata {
			job.Metadata[k] = v
		}
	}
	s.jobs[id] = job
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *JobStore) ListJobs(_ context.Context, filter core.JobFilter) ([]core.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []core.CrawlJob
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.CategoryID != "" && job.CategoryID != filter.CategoryID {
			continue
		}
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// DeleteJob removes a job outright. The CRUD layer owns deletion; this
// exists so tests can simulate a job disappearing mid-flight.
func (s *JobStore) DeleteJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}
