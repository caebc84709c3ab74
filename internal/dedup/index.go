// Package dedup suppresses duplicate articles by URL and content fingerprint.
//
// The article store's unique url_fingerprint index is the source of truth; the
// cache in front of it is advisory only. A cache failure degrades to store
// lookups, it never drops an article or creates a duplicate.
package dedup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/telemetry"
)

// Outcome classifies what recording an article did.
type Outcome string

// Record outcomes.
const (
	OutcomeNew       Outcome = "new"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeDuplicate Outcome = "duplicate"
)

// Index layers an advisory fingerprint cache over the article store.
type Index struct {
	articles core.ArticleStore
	cache    core.DedupCache
	logger   *zap.Logger
}

// NewIndex constructs an Index. cache may be a no-op implementation.
func NewIndex(articles core.ArticleStore, cache core.DedupCache, logger *zap.Logger) *Index {
	return &Index{articles: articles, cache: cache, logger: logger}
}

// SeenRecently consults only the cache. A hit means the URL was recorded
// within the cache TTL and extraction can be skipped; a miss or cache error
// means the caller should proceed and let Record sort it out.
func (ix *Index) SeenRecently(ctx context.Context, urlFP string) bool {
	_, ok, err := ix.cache.Seen(ctx, urlFP)
	if err != nil {
		ix.logger.Warn("dedup cache unavailable, falling through to store",
			zap.Error(err))
		return false
	}
	return ok
}

// Touch advances last_seen for an article skipped as a recent duplicate.
func (ix *Index) Touch(ctx context.Context, urlFP string, seenAt time.Time) error {
	if err := ix.articles.TouchArticle(ctx, urlFP, seenAt); err != nil {
		return fmt.Errorf("touch article: %w", err)
	}
	telemetry.ObserveArticle(string(OutcomeDuplicate))
	return nil
}

// Record upserts the article and classifies the result. An unchanged content
// fingerprint on a known URL only advances last_seen; changed content
// refreshes the stored row in place. The cache is updated best-effort either
// way.
func (ix *Index) Record(ctx context.Context, article core.Article) (core.Article, Outcome, error) {
	prevFP, known := ix.lookup(ctx, article.URLFingerprint)

	if known && prevFP != "" && prevFP == article.ContentFingerprint {
		if err := ix.articles.TouchArticle(ctx, article.URLFingerprint, article.LastSeenAt); err != nil {
			return core.Article{}, "", fmt.Errorf("touch article: %w", err)
		}
		ix.remember(ctx, article.URLFingerprint, prevFP)
		telemetry.ObserveArticle(string(OutcomeDuplicate))
		return article, OutcomeDuplicate, nil
	}

	stored, inserted, err := ix.articles.UpsertArticle(ctx, article)
	if err != nil {
		return core.Article{}, "", fmt.Errorf("upsert article: %w", err)
	}

	outcome := OutcomeRefreshed
	if inserted {
		outcome = OutcomeNew
	}
	ix.remember(ctx, stored.URLFingerprint, stored.ContentFingerprint)
	telemetry.ObserveArticle(string(outcome))
	return stored, outcome, nil
}

// lookup resolves the previously seen content fingerprint for a URL, cache
// first, store second.
func (ix *Index) lookup(ctx context.Context, urlFP string) (string, bool) {
	contentFP, ok, err := ix.cache.Seen(ctx, urlFP)
	if err != nil {
		ix.logger.Warn("dedup cache unavailable, falling through to store",
			zap.Error(err))
	} else if ok {
		return contentFP, true
	}

	existing, err := ix.articles.FindByURLFingerprint(ctx, urlFP)
	if err != nil {
		ix.logger.Warn("article lookup failed, treating URL as unseen",
			zap.Error(err))
		return "", false
	}
	if existing == nil {
		return "", false
	}
	return existing.ContentFingerprint, true
}

func (ix *Index) remember(ctx context.Context, urlFP, contentFP string) {
	if err := ix.cache.Remember(ctx, urlFP, contentFP); err != nil {
		ix.logger.Warn("dedup cache write failed", zap.Error(err))
	}
}
