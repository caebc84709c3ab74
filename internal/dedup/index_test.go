package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/store/memory"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

type brokenCache struct{}

func (brokenCache) Seen(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (brokenCache) Remember(context.Context, string, string) error {
	return errors.New("connection refused")
}

func testArticle(seen time.Time) core.Article {
	return core.Article{
		ID:                 "art-1",
		URLFingerprint:     "fp-url",
		ContentFingerprint: "fp-content",
		Title:              "headline",
		SourceURL:          "https://example.com/story",
		JobID:              "job-1",
		FirstSeenAt:        seen,
		LastSeenAt:         seen,
	}
}

func TestRecordOutcomes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &stepClock{now: time.Unix(1700000000, 0).UTC()}
	articles := memory.NewArticleStore()
	cache := NewMemoryCache(time.Hour, clock)
	index := NewIndex(articles, cache, zap.NewNop())

	first := testArticle(clock.now)
	_, outcome, err := index.Record(ctx, first)
	require.NoError(t, err)
	require.Equal(t, OutcomeNew, outcome)

	// Same URL, same content: duplicate, last_seen advances, one row.
	resight := testArticle(clock.now.Add(time.Hour))
	resight.ID = "art-2"
	resight.FirstSeenAt = clock.now.Add(time.Hour)
	_, outcome, err = index.Record(ctx, resight)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Equal(t, 1, articles.Count())

	stored, err := articles.FindByURLFingerprint(ctx, "fp-url")
	require.NoError(t, err)
	require.Equal(t, "art-1", stored.ID)
	require.Equal(t, clock.now, stored.FirstSeenAt)
	require.Equal(t, clock.now.Add(time.Hour), stored.LastSeenAt)

	// Same URL, changed content: refresh in place.
	changed := testArticle(clock.now.Add(2 * time.Hour))
	changed.ID = "art-3"
	changed.ContentFingerprint = "fp-content-v2"
	changed.Title = "updated headline"
	refreshed, outcome, err := index.Record(ctx, changed)
	require.NoError(t, err)
	require.Equal(t, OutcomeRefreshed, outcome)
	require.Equal(t, "art-1", refreshed.ID)
	require.Equal(t, "updated headline", refreshed.Title)
	require.Equal(t, 1, articles.Count())
}

func TestRecordFallsBackToStoreOnCacheFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &stepClock{now: time.Unix(1700000000, 0).UTC()}
	articles := memory.NewArticleStore()
	index := NewIndex(articles, brokenCache{}, zap.NewNop())

	_, outcome, err := index.Record(ctx, testArticle(clock.now))
	require.NoError(t, err)
	require.Equal(t, OutcomeNew, outcome)

	// The broken cache never reports seen, but the store lookup still catches
	// the duplicate.
	_, outcome, err = index.Record(ctx, testArticle(clock.now.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Equal(t, 1, articles.Count())
}

func TestSeenRecentlyRespectsTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &stepClock{now: time.Unix(1700000000, 0).UTC()}
	cache := NewMemoryCache(30*time.Minute, clock)
	index := NewIndex(memory.NewArticleStore(), cache, zap.NewNop())

	require.False(t, index.SeenRecently(ctx, "fp-url"))
	require.NoError(t, cache.Remember(ctx, "fp-url", "fp-content"))
	require.True(t, index.SeenRecently(ctx, "fp-url"))

	clock.now = clock.now.Add(31 * time.Minute)
	require.False(t, index.SeenRecently(ctx, "fp-url"))
}

func TestSeenRecentlyDegradesOnCacheFailure(t *testing.T) {
	t.Parallel()

	index := NewIndex(memory.NewArticleStore(), brokenCache{}, zap.NewNop())
	require.False(t, index.SeenRecently(context.Background(), "fp-url"))
}
