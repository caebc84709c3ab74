package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newswatch/newswatch/internal/core"
)

func TestUpsertArticleDedupIdempotence(t *testing.T) {
	t.Parallel()

	store := NewArticleStore()
	ctx := context.Background()
	first := time.Unix(1700000000, 0).UTC()
	second := first.Add(time.Hour)

	article := core.Article{
		ID:                 "art-1",
		URLFingerprint:     "fp-1",
		ContentFingerprint: "cfp-1",
		Title:              "original title",
		SourceURL:          "https://example.com/a",
		JobID:              "job-1",
		FirstSeenAt:        first,
		LastSeenAt:         first,
	}

	_, inserted, err := store.UpsertArticle(ctx, article)
	require.NoError(t, err)
	require.True(t, inserted)

	// Second sighting from another job with changed content refreshes the
	// row in place: same id, same first_seen, one row total.
	resight := article
	resight.ID = "art-2"
	resight.JobID = "job-2"
	resight.ContentFingerprint = "cfp-2"
	resight.Title = "updated title"
	resight.LastSeenAt = second

	stored, inserted, err := store.UpsertArticle(ctx, resight)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, "art-1", stored.ID)
	require.Equal(t, first, stored.FirstSeenAt)
	require.Equal(t, second, stored.LastSeenAt)
	require.Equal(t, "updated title", stored.Title)
	require.Equal(t, "cfp-2", stored.ContentFingerprint)
	require.Equal(t, 1, store.Count())
}

func TestTouchArticleAdvancesLastSeenOnly(t *testing.T) {
	t.Parallel()

	store := NewArticleStore()
	ctx := context.Background()
	first := time.Unix(1700000000, 0).UTC()

	_, _, err := store.UpsertArticle(ctx, core.Article{
		ID:             "art-1",
		URLFingerprint: "fp-1",
		Title:          "title",
		FirstSeenAt:    first,
		LastSeenAt:     first,
	})
	require.NoError(t, err)

	seen := first.Add(2 * time.Hour)
	require.NoError(t, store.TouchArticle(ctx, "fp-1", seen))

	article, err := store.FindByURLFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, article)
	require.Equal(t, first, article.FirstSeenAt)
	require.Equal(t, seen, article.LastSeenAt)
	require.Equal(t, "title", article.Title)

	require.Error(t, store.TouchArticle(ctx, "missing", seen))
}
