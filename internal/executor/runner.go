package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/dedup"
	"github.com/newswatch/newswatch/internal/telemetry"
)

// Event is the payload published for job and article lifecycle notifications.
type Event struct {
	Type          string    `json:"type"`
	JobID         string    `json:"job_id"`
	CategoryID    string    `json:"category_id"`
	CorrelationID string    `json:"correlation_id"`
	ArticleID     string    `json:"article_id,omitempty"`
	URL           string    `json:"url,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (p *Pool) runJob(ctx context.Context, job core.CrawlJob, logger *zap.Logger) {
	logger = logger.With(
		zap.String("job_id", job.ID),
		zap.String("category_id", job.CategoryID),
		zap.String("correlation_id", job.CorrelationID))
	logger.Info("job started",
		zap.String("type", string(job.Type)),
		zap.Int("priority", job.Priority),
		zap.Int("retry_count", job.RetryCount))

	cat, err := p.categories.GetCategory(ctx, job.CategoryID)
	if err != nil {
		// A deleted or unknown category will not heal; fail without a retry.
		p.finishFailed(ctx, job, fmt.Sprintf("load category: %v", err), false, logger)
		return
	}
	if !cat.Active {
		p.finishFailed(ctx, job, "category is inactive", false, logger)
		return
	}

	candidates, err := p.search.Search(ctx, buildQuery(cat, job))
	if err != nil {
		if errors.Is(err, core.ErrThrottled) {
			telemetry.ObserveThrottle()
		}
		p.finishFailed(ctx, job, fmt.Sprintf("search: %v", err), true, logger)
		return
	}

	counters := p.processCandidates(ctx, job, cat, candidates, logger)
	p.finishCompleted(ctx, job, counters, logger)
}

// processCandidates works through search results one URL at a time. Repeated
// throttling signals open a breaker that abandons the remainder of the batch;
// the job still completes with whatever was saved so far.
func (p *Pool) processCandidates(ctx context.Context, job core.CrawlJob, cat core.Category,
	candidates []core.Candidate, logger *zap.Logger) core.JobCounters {

	counters := core.JobCounters{ArticlesFound: len(candidates)}
	throttleHits := 0

	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		if throttleHits >= p.opts.BreakerLimit {
			telemetry.ObserveBreakerOpen()
			logger.Warn("throttle breaker open, abandoning remaining urls",
				zap.Int("throttle_hits", throttleHits),
				zap.Int("remaining", len(candidates)-counters.ArticlesSaved-counters.URLsFailed-counters.URLsSkipped))
			break
		}

		urlFP, err := core.URLFingerprint(cand.URL)
		if err != nil {
			counters.URLsFailed++
			telemetry.ObserveArticle("failed")
			continue
		}

		if p.index.SeenRecently(ctx, urlFP) {
			if err := p.index.Touch(ctx, urlFP, p.clock.Now()); err != nil {
				logger.Warn("touch failed", zap.String("url", cand.URL), zap.Error(err))
			}
			counters.URLsSkipped++
			continue
		}

		if err := p.limiter.Wait(ctx, cand.URL); err != nil {
			break
		}

		extracted, err := p.extractor.Extract(ctx, cand.URL)
		if errors.Is(err, core.ErrThrottled) {
			throttleHits++
			counters.URLsFailed++
			telemetry.ObserveThrottle()
			telemetry.ObserveArticle("failed")
			p.throttlePause(ctx, throttleHits)
			continue
		}
		if err != nil {
			counters.URLsFailed++
			telemetry.ObserveArticle("failed")
			logger.Warn("extraction failed", zap.String("url", cand.URL), zap.Error(err))
			continue
		}

		article, err := p.buildArticle(job, cat, cand, extracted, urlFP)
		if err != nil {
			counters.URLsFailed++
			telemetry.ObserveArticle("failed")
			continue
		}

		stored, outcome, err := p.index.Record(ctx, article)
		if err != nil {
			counters.URLsFailed++
			telemetry.ObserveArticle("failed")
			logger.Warn("record failed", zap.String("url", cand.URL), zap.Error(err))
			continue
		}

		switch outcome {
		case dedup.OutcomeNew, dedup.OutcomeRefreshed:
			counters.ArticlesSaved++
			p.archiveRaw(ctx, stored, extracted.RawHTML, logger)
			p.publishEvent(ctx, Event{
				Type:          "article.saved",
				JobID:         job.ID,
				CategoryID:    job.CategoryID,
				CorrelationID: job.CorrelationID,
				ArticleID:     stored.ID,
				URL:           stored.SourceURL,
				OccurredAt:    p.clock.Now(),
			}, logger)
		default:
			counters.URLsSkipped++
		}
	}
	return counters
}

// throttlePause backs off exponentially on the throttle base before the next
// candidate.
func (p *Pool) throttlePause(ctx context.Context, hits int) {
	delay := p.opts.ThrottleBase << (hits - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Pool) buildArticle(job core.CrawlJob, cat core.Category, cand core.Candidate,
	extracted core.ExtractedArticle, urlFP string) (core.Article, error) {

	id, err := p.ids.NewID()
	if err != nil {
		return core.Article{}, fmt.Errorf("generate article id: %w", err)
	}

	title := extracted.Title
	if title == "" {
		title = cand.Title
	}
	published := extracted.PublishedAt
	if published == nil {
		published = cand.PublishedAt
	}
	matched, score := scoreRelevance(cat.IncludeKeywords, title, extracted.Content)

	now := p.clock.Now()
	return core.Article{
		ID:                 id,
		URLFingerprint:     urlFP,
		ContentFingerprint: core.ContentFingerprint(extracted.Content),
		Title:              title,
		Author:             extracted.Author,
		PublishedAt:        published,
		SourceURL:          cand.URL,
		ImageURL:           extracted.ImageURL,
		MatchedKeywords:    matched,
		RelevanceScore:     score,
		JobID:              job.ID,
		FirstSeenAt:        now,
		LastSeenAt:         now,
	}, nil
}

// scoreRelevance reports which include keywords appear in the title or body
// and the matched fraction.
func scoreRelevance(keywords []string, title, content string) ([]string, float64) {
	if len(keywords) == 0 {
		return nil, 0
	}
	haystack := strings.ToLower(title + " " + content)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched, float64(len(matched)) / float64(len(keywords))
}

func buildQuery(cat core.Category, job core.CrawlJob) core.SearchQuery {
	query := core.SearchQuery{
		IncludeKeywords: cat.IncludeKeywords,
		ExcludeKeywords: cat.ExcludeKeywords,
		MaxResults:      job.MaxResults,
	}
	switch job.Type {
	case core.JobTypeOnDemand:
		query.Period = job.DateRange
	default:
		query.Period = cat.CrawlPeriod
		if job.DateRange != "" {
			query.Period = job.DateRange
		}
	}
	return query
}

func (p *Pool) archiveRaw(ctx context.Context, article core.Article, raw []byte, logger *zap.Logger) {
	if p.archive == nil || len(raw) == 0 {
		return
	}
	objPath := path.Join(article.JobID, article.URLFingerprint+".html")
	uri, err := p.archive.PutObject(ctx, objPath, "text/html; charset=utf-8", raw)
	if err != nil {
		logger.Warn("archive write failed", zap.String("path", objPath), zap.Error(err))
		return
	}
	logger.Debug("raw html archived", zap.String("uri", uri))
}

func (p *Pool) publishEvent(ctx context.Context, event Event, logger *zap.Logger) {
	if p.publisher == nil {
		return
	}
	if _, err := p.publisher.Publish(ctx, p.opts.Topic, event); err != nil {
		logger.Warn("event publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}

// finishCompleted marks the job done. A job row deleted mid-flight is logged
// and dropped, never retried.
func (p *Pool) finishCompleted(ctx context.Context, job core.CrawlJob, counters core.JobCounters, logger *zap.Logger) {
	if err := p.jobs.CompleteJob(ctx, job.ID, counters, p.clock.Now()); err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			logger.Warn("job disappeared before completion")
			return
		}
		logger.Error("complete job failed", zap.Error(err))
		return
	}
	telemetry.ObserveJobFinished(string(core.JobStatusCompleted), string(job.Type))
	p.publishEvent(ctx, Event{
		Type:          "job.completed",
		JobID:         job.ID,
		CategoryID:    job.CategoryID,
		CorrelationID: job.CorrelationID,
		OccurredAt:    p.clock.Now(),
	}, logger)
	logger.Info("job completed",
		zap.Int("articles_found", counters.ArticlesFound),
		zap.Int("articles_saved", counters.ArticlesSaved),
		zap.Int("urls_failed", counters.URLsFailed),
		zap.Int("urls_skipped", counters.URLsSkipped))
}

// finishFailed marks the job failed and, when the failure is retryable and
// budget remains, appends a fresh pending job gated by the backoff policy.
func (p *Pool) finishFailed(ctx context.Context, job core.CrawlJob, errText string, retryable bool, logger *zap.Logger) {
	now := p.clock.Now()
	if err := p.jobs.FailJob(ctx, job.ID, errText, now); err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			logger.Warn("job disappeared before failure could be recorded")
			return
		}
		logger.Error("fail job failed", zap.Error(err))
		return
	}
	telemetry.ObserveJobFinished(string(core.JobStatusFailed), string(job.Type))
	p.publishEvent(ctx, Event{
		Type:          "job.failed",
		JobID:         job.ID,
		CategoryID:    job.CategoryID,
		CorrelationID: job.CorrelationID,
		OccurredAt:    now,
	}, logger)
	logger.Error("job failed",
		zap.String("error", errText),
		zap.Bool("retryable", retryable),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries))

	if !retryable || job.RetryCount >= job.MaxRetries {
		return
	}

	newID, err := p.ids.NewID()
	if err != nil {
		logger.Error("retry id generation failed", zap.Error(err))
		return
	}
	failed := job
	failed.Status = core.JobStatusFailed
	failed.ErrorText = errText
	notBefore := now.Add(p.retry.Backoff(job.RetryCount))
	retryJob, err := p.jobs.RequeueForRetry(ctx, failed, newID, now, notBefore)
	if err != nil {
		logger.Error("retry requeue failed", zap.Error(err))
		return
	}
	logger.Info("retry scheduled",
		zap.String("retry_job_id", retryJob.ID),
		zap.Int("retry_count", retryJob.RetryCount),
		zap.Time("not_before", notBefore))
}
