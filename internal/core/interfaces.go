package core

import (
	"context"
	"time"
)

// CategoryStore persists categories and owns the schedule columns.
type CategoryStore interface {
	GetCategory(ctx context.Context, id string) (Category, error)
	ListEnabledSchedules(ctx context.Context) ([]Category, error)
	// ClaimDueCategories atomically selects every category whose
	// next_scheduled_at has elapsed and advances it to now + interval in the
	// same operation. Overlapping scans therefore never claim the same due
	// window twice.
	ClaimDueCategories(ctx context.Context, now time.Time) ([]Category, error)
	UpdateScheduleConfig(ctx context.Context, id string, cfg ScheduleConfig, now time.Time) (ScheduleConfig, error)
}

// JobStore owns CrawlJob lifecycle records.
type JobStore interface {
	CreateJob(ctx context.Context, job CrawlJob) error
	GetJob(ctx context.Context, id string) (CrawlJob, error)
	// ClaimNextJob selects the highest-priority eligible pending job and
	// transitions it to running in one atomic step. Returns nil when no job
	// is eligible. Two concurrent callers never receive the same job.
	ClaimNextJob(ctx context.Context, now time.Time) (*CrawlJob, error)
	CompleteJob(ctx context.Context, id string, counters JobCounters, now time.Time) error
	FailJob(ctx context.Context, id string, errText string, now time.Time) error
	// RequeueForRetry inserts a fresh pending job derived from a failed one:
	// same category and parameters, incremented retry count, eligibility gated
	// by notBefore. Retries are append-only; the failed row is left untouched.
	RequeueForRetry(ctx context.Context, failed CrawlJob, newID string, now, notBefore time.Time) (CrawlJob, error)
	SetJobPriority(ctx context.Context, id string, priority int) (CrawlJob, error)
	UpdateJobConfig(ctx context.Context, id string, patch JobConfigPatch) (CrawlJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]CrawlJob, error)
}

// ArticleStore persists deduplicated articles. The unique index on
// url_fingerprint is the single source of truth for duplicate suppression.
type ArticleStore interface {
	FindByURLFingerprint(ctx context.Context, fp string) (*Article, error)
	// UpsertArticle inserts the article, or refreshes content fields and
	// last_seen on fingerprint conflict. Returns the stored row and whether
	// a new row was inserted.
	UpsertArticle(ctx context.Context, article Article) (Article, bool, error)
	// TouchArticle advances last_seen without touching content.
	TouchArticle(ctx context.Context, fp string, seenAt time.Time) error
}

// SearchProvider resolves keyword queries to candidate article URLs.
type SearchProvider interface {
	Search(ctx context.Context, query SearchQuery) ([]Candidate, error)
}

// Extractor pulls title/author/content/image out of a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (ExtractedArticle, error)
}

// DedupCache is an advisory fingerprint cache layered over the article
// store's unique index. Misses and cache errors fall through to the store.
type DedupCache interface {
	Seen(ctx context.Context, urlFP string) (contentFP string, ok bool, err error)
	Remember(ctx context.Context, urlFP, contentFP string) error
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes crawl events to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (swappable for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}
