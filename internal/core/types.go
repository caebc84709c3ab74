// Package core defines the types shared across the crawl scheduling subsystems.
package core

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType discriminates scheduler-created jobs from operator-created ones.
type JobType string

// Job type values persisted in the job store.
const (
	JobTypeScheduled JobType = "scheduled"
	JobTypeOnDemand  JobType = "on_demand"
)

// Priority bands for pending jobs. PriorityRunNow is the reserved maximum:
// a run-now job is selected ahead of every other pending job regardless of age.
const (
	PriorityDefault = 0
	PriorityRunNow  = 100
)

// ValidIntervals is the enumerated set of allowed schedule intervals in minutes.
var ValidIntervals = []int{1, 5, 15, 30, 60, 1440}

// ValidInterval reports whether minutes is a permitted schedule interval.
func ValidInterval(minutes int) bool {
	for _, v := range ValidIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// Category is a named topic whose keywords drive crawl targeting.
type Category struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	IncludeKeywords []string   `json:"include_keywords"`
	ExcludeKeywords []string   `json:"exclude_keywords"`
	Active          bool       `json:"active"`
	ScheduleEnabled bool       `json:"schedule_enabled"`
	IntervalMinutes int        `json:"interval_minutes"`
	CrawlPeriod     string     `json:"crawl_period,omitempty"`
	LastScheduledAt *time.Time `json:"last_scheduled_at,omitempty"`
	NextScheduledAt *time.Time `json:"next_scheduled_at,omitempty"`
}

// CrawlJob is one execution attempt (scheduled or on-demand) against a category.
type CrawlJob struct {
	ID            string            `json:"id"`
	CategoryID    string            `json:"category_id"`
	Status        JobStatus         `json:"status"`
	Type          JobType           `json:"type"`
	Priority      int               `json:"priority"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	NotBefore     *time.Time        `json:"not_before,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	ArticlesFound int               `json:"articles_found"`
	ArticlesSaved int               `json:"articles_saved"`
	ErrorText     string            `json:"error_text,omitempty"`
	CorrelationID string            `json:"correlation_id"`
	MaxResults    int               `json:"max_results,omitempty"`
	DateRange     string            `json:"date_range,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// RetryJob derives the fresh pending job appended when a failed job is
// eligible for another attempt.
func RetryJob(failed CrawlJob, newID string, now, notBefore time.Time) CrawlJob {
	retry := failed
	retry.ID = newID
	retry.Status = JobStatusPending
	retry.RetryCount = failed.RetryCount + 1
	retry.NotBefore = &notBefore
	retry.CreatedAt = now
	retry.StartedAt = nil
	retry.CompletedAt = nil
	retry.ArticlesFound = 0
	retry.ArticlesSaved = 0
	retry.ErrorText = ""
	return retry
}

// Terminal reports whether the job can no longer change state.
func (j CrawlJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobCounters tracks per-job article stats while a job executes.
type JobCounters struct {
	ArticlesFound int `json:"articles_found"`
	ArticlesSaved int `json:"articles_saved"`
	URLsFailed    int `json:"urls_failed"`
	URLsSkipped   int `json:"urls_skipped"`
}

// Article is a deduplicated crawl result. URLFingerprint is unique across the
// store; re-encountering the same fingerprint advances LastSeenAt instead of
// inserting a second row.
type Article struct {
	ID                 string     `json:"id"`
	URLFingerprint     string     `json:"url_fingerprint"`
	ContentFingerprint string     `json:"content_fingerprint,omitempty"`
	Title              string     `json:"title"`
	Author             string     `json:"author,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	SourceURL          string     `json:"source_url"`
	ImageURL           string     `json:"image_url,omitempty"`
	MatchedKeywords    []string   `json:"matched_keywords,omitempty"`
	RelevanceScore     float64    `json:"relevance_score"`
	JobID              string     `json:"job_id"`
	FirstSeenAt        time.Time  `json:"first_seen_at"`
	LastSeenAt         time.Time  `json:"last_seen_at"`
}

// SearchQuery is the request handed to a SearchProvider. Include keywords are
// OR-combined; Period applies only to scheduled jobs.
type SearchQuery struct {
	IncludeKeywords []string
	ExcludeKeywords []string
	Period          string
	MaxResults      int
}

// Candidate is one URL returned by a SearchProvider.
type Candidate struct {
	URL         string
	Title       string
	Source      string
	PublishedAt *time.Time
}

// ExtractedArticle is the result of running the extractor against one URL.
type ExtractedArticle struct {
	URL         string
	Title       string
	Author      string
	Content     string
	Excerpt     string
	ImageURL    string
	PublishedAt *time.Time
	RawHTML     []byte
}

// CapacityLevel classifies aggregate scheduled job creation load.
type CapacityLevel string

// Capacity levels, ordered by severity.
const (
	CapacityNormal   CapacityLevel = "normal"
	CapacityWarning  CapacityLevel = "warning"
	CapacityCritical CapacityLevel = "critical"
)

// CapacityReport estimates aggregate scheduled-jobs-per-hour across enabled
// categories. The thresholds are a soft limit: the report never blocks
// scheduling.
type CapacityReport struct {
	JobsPerHour       float64       `json:"jobs_per_hour"`
	Level             CapacityLevel `json:"level"`
	EnabledCategories int           `json:"enabled_categories"`
	Warnings          []string      `json:"warnings,omitempty"`
	Recommendations   []string      `json:"recommendations,omitempty"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

// ScanResult summarizes one schedule scanner pass.
type ScanResult struct {
	Due           int           `json:"due"`
	Created       int           `json:"created"`
	Errors        int           `json:"errors"`
	CapacityLevel CapacityLevel `json:"capacity_level"`
	Duration      time.Duration `json:"duration"`
}

// JobConfigPatch is a partial update applied to a pending job.
type JobConfigPatch struct {
	Priority   *int              `json:"priority,omitempty"`
	MaxRetries *int              `json:"max_retries,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ScheduleConfig is the schedule portion of a category, returned by config
// updates.
type ScheduleConfig struct {
	CategoryID      string     `json:"category_id"`
	Enabled         bool       `json:"enabled"`
	IntervalMinutes int        `json:"interval_minutes,omitempty"`
	CrawlPeriod     string     `json:"crawl_period,omitempty"`
	NextScheduledAt *time.Time `json:"next_scheduled_at,omitempty"`
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status     JobStatus
	CategoryID string
	Limit      int
}
