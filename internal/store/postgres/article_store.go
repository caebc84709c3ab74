package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/newswatch/newswatch/internal/core"
)

const articleColumns = `id, url_fingerprint, content_fingerprint, title, author,
published_at, source_url, image_url, matched_keywords, relevance_score, job_id,
first_seen_at, last_seen_at`

// ArticleStore persists deduplicated articles in Postgres. The unique index
// on url_fingerprint is the source of truth for duplicate suppression.
type ArticleStore struct {
	pool Pool
}

// NewArticleStore constructs an ArticleStore over an existing pool.
func NewArticleStore(pool Pool) *ArticleStore {
	return &ArticleStore{pool: pool}
}

// FindByURLFingerprint returns the article for a fingerprint, or nil when the
// URL has never been seen.
func (s *ArticleStore) FindByURLFingerprint(ctx context.Context, fp string) (*core.Article, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE url_fingerprint = $1`, fp)
	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select article: %w", err)
	}
	return &article, nil
}

// UpsertArticle inserts a new article, or refreshes content fields and
// last_seen on fingerprint conflict. The existing row keeps its id and
// first_seen; re-sighting a URL is an update, never a second insert.
func (s *ArticleStore) UpsertArticle(ctx context.Context, article core.Article) (core.Article, bool, error) {
	query := `
INSERT INTO articles (` + articleColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (url_fingerprint) DO UPDATE SET
	content_fingerprint = EXCLUDED.content_fingerprint,
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	published_at = EXCLUDED.published_at,
	image_url = EXCLUDED.image_url,
	matched_keywords = EXCLUDED.matched_keywords,
	relevance_score = EXCLUDED.relevance_score,
	last_seen_at = EXCLUDED.last_seen_at
RETURNING ` + articleColumns + `, (xmax = 0) AS inserted`

	var (
		stored   core.Article
		inserted bool
	)
	row := s.pool.QueryRow(ctx, query,
		article.ID, article.URLFingerprint, article.ContentFingerprint,
		article.Title, article.Author, article.PublishedAt, article.SourceURL,
		article.ImageURL, article.MatchedKeywords, article.RelevanceScore,
		article.JobID, article.FirstSeenAt, article.LastSeenAt,
	)
	err := row.Scan(
		&stored.ID, &stored.URLFingerprint, &stored.ContentFingerprint,
		&stored.Title, &stored.Author, &stored.PublishedAt, &stored.SourceURL,
		&stored.ImageURL, &stored.MatchedKeywords, &stored.RelevanceScore,
		&stored.JobID, &stored.FirstSeenAt, &stored.LastSeenAt, &inserted,
	)
	if err != nil {
		return core.Article{}, false, fmt.Errorf("upsert article: %w", err)
	}
	return stored, inserted, nil
}

// TouchArticle advances last_seen for a re-sighted URL without touching
// content.
func (s *ArticleStore) TouchArticle(ctx context.Context, fp string, seenAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE articles SET last_seen_at = $2 WHERE url_fingerprint = $1`, fp, seenAt)
	if err != nil {
		return fmt.Errorf("touch article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch article: fingerprint %s not found", fp)
	}
	return nil
}

func scanArticle(row pgx.Row) (core.Article, error) {
	var article core.Article
	err := row.Scan(
		&article.ID, &article.URLFingerprint, &article.ContentFingerprint,
		&article.Title, &article.Author, &article.PublishedAt, &article.SourceURL,
		&article.ImageURL, &article.MatchedKeywords, &article.RelevanceScore,
		&article.JobID, &article.FirstSeenAt, &article.LastSeenAt,
	)
	if err != nil {
		return core.Article{}, err
	}
	return article, nil
}
