package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/newswatch/newswatch/internal/core"
)

const jobColumns = `id, category_id, status, job_type, priority, retry_count, max_retries,
not_before, created_at, started_at, completed_at, articles_found, articles_saved,
error_text, correlation_id, max_results, date_range, metadata`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// JobStore persists crawl job lifecycle records in Postgres.
type JobStore struct {
	pool Pool
}

// NewJobStore constructs a JobStore over an existing pool.
func NewJobStore(pool Pool) *JobStore {
	return &JobStore{pool: pool}
}

// CreateJob inserts a pending job.
func (s *JobStore) CreateJob(ctx context.Context, job core.CrawlJob) error {
	metadata, err := marshalMetadata(job.Metadata)
	if err != nil {
		return err
	}
	query := `
INSERT INTO crawl_jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err = s.pool.Exec(ctx, query,
		job.ID, job.CategoryID, job.Status, job.Type, job.Priority,
		job.RetryCount, job.MaxRetries, job.NotBefore, job.CreatedAt,
		job.StartedAt, job.CompletedAt, job.ArticlesFound, job.ArticlesSaved,
		job.ErrorText, job.CorrelationID, job.MaxResults, job.DateRange, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, id string) (core.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.CrawlJob{}, core.ErrJobNotFound
	}
	if err != nil {
		return core.CrawlJob{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// ClaimNextJob atomically selects the highest-priority eligible pending job
// and transitions it to running. SKIP LOCKED guarantees two concurrent
// callers never claim the same row.
func (s *JobStore) ClaimNextJob(ctx context.Context, now time.Time) (*core.CrawlJob, error) {
	query := `
UPDATE crawl_jobs SET status = 'running', started_at = $1
WHERE id = (
	SELECT id FROM crawl_jobs
	WHERE status = 'pending' AND (not_before IS NULL OR not_before <= $1)
	ORDER BY priority DESC, created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns
	row := s.pool.QueryRow(ctx, query, now)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

// CompleteJob records a terminal completed state with final counters. A
// missing row (deleted by an operator mid-flight) surfaces as ErrJobNotFound
// for the caller to discard.
func (s *JobStore) CompleteJob(ctx context.Context, id string, counters core.JobCounters, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs
SET status = 'completed', completed_at = $2, articles_found = $3, articles_saved = $4
WHERE id = $1 AND status = 'running'`,
		id, now, counters.ArticlesFound, counters.ArticlesSaved,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrJobNotFound
	}
	return nil
}

// FailJob records a terminal failed state with the last error message.
func (s *JobStore) FailJob(ctx context.Context, id string, errText string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs
SET status = 'failed', completed_at = $2, error_text = $3
WHERE id = $1 AND status = 'running'`,
		id, now, errText,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrJobNotFound
	}
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
		return core.CrawlJob{}, fmt.Errorf("requeue retry: %w", err)
	}
	return retry, nil
}

// SetJobPriority changes the priority of a pending job. Non-pending jobs are
// rejected with ErrJobNotPending and left untouched.
func (s *JobStore) SetJobPriority(ctx context.Context, id string, priority int) (core.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE crawl_jobs SET priority = $2
WHERE id = $1 AND status = 'pending'
RETURNING `+jobColumns, id, priority)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetJob(ctx, id); getErr != nil {
			return core.CrawlJob{}, getErr
		}
		return core.CrawlJob{}, core.ErrJobNotPending
	}
	if err != nil {
		return core.CrawlJob{}, fmt.Errorf("set job priority: %w", err)
	}
	return job, nil
}

// UpdateJobConfig applies a partial config patch. Running jobs are immutable.
func (s *JobStore) UpdateJobConfig(ctx context.Context, id string, patch core.JobConfigPatch) (core.CrawlJob, error) {
	current, err := s.GetJob(ctx, id)
	if err != nil {
		return core.CrawlJob{}, err
	}
	if current.Status == core.JobStatusRunning {
		return core.CrawlJob{}, core.ErrJobRunning
	}

	builder := psql.Update("crawl_jobs").Where(sq.Eq{"id": id})
	changed := false
	if patch.Priority != nil {
		builder = builder.Set("priority", *patch.Priority)
		changed = true
	}
	if patch.MaxRetries != nil {
		builder = builder.Set("max_retries", *patch.MaxRetries)
		changed = true
	}
	if patch.Metadata != nil {
		metadata, merr := marshalMetadata(patch.Metadata)
		if merr != nil {
			return core.CrawlJob{}, merr
		}
		builder = builder.Set("metadata", metadata)
		changed = true
	}
	if !changed {
		return current, nil
	}

	query, args, err := builder.Suffix("RETURNING " + jobColumns).ToSql()
	if err != nil {
		return core.CrawlJob{}, fmt.Errorf("build job patch: %w", err)
	}
	job, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.CrawlJob{}, core.ErrJobNotFound
	}
	if err != nil {
		return core.CrawlJob{}, fmt.Errorf("patch job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *JobStore) ListJobs(ctx context.Context, filter core.JobFilter) ([]core.CrawlJob, error) {
	builder := psql.Select(jobColumns).From("crawl_jobs").OrderBy("created_at DESC")
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.CategoryID != "" {
		builder = builder.Where(sq.Eq{"category_id": filter.CategoryID})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job list: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.CrawlJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (core.CrawlJob, error) {
	var (
		job      core.CrawlJob
		metadata []byte
	)
	err := row.Scan(
		&job.ID, &job.CategoryID, &job.Status, &job.Type, &job.Priority,
		&job.RetryCount, &job.MaxRetries, &job.NotBefore, &job.CreatedAt,
		&job.StartedAt, &job.CompletedAt, &job.ArticlesFound, &job.ArticlesSaved,
		&job.ErrorText, &job.CorrelationID, &job.MaxResults, &job.DateRange, &metadata,
	)
	if err != nil {
		return core.CrawlJob{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return core.CrawlJob{}, fmt.Errorf("unmarshal job metadata: %w", err)
		}
	}
	return job, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal job metadata: %w", err)
	}
	return data, nil
}
