package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newswatch/newswatch/internal/core"
)

// ArticleStore is an in-memory core.ArticleStore keyed by URL fingerprint.
type ArticleStore struct {
	mu       sync.Mutex
	articles map[string]core.Article
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]core.Article)}
}

// FindByURLFingerprint returns the article for a fingerprint, or nil.
func (s *ArticleStore) FindByURLFingerprint(_ context.Context, fp string) (*core.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[fp]
	if !ok {
		return nil, nil
	}
	return &article, nil
}

// UpsertArticle inserts a new article or refreshes content and last_seen on
// an existing fingerprint, keeping id and first_seen stable.
func (s *ArticleStore) UpsertArticle(_ context.Context, article core.Article) (core.Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.articles[article.URLFingerprint]
	if !ok {
		s.articles[article.URLFingerprint] = article
		return article, true, nil
	}

	existing.ContentFingerprint = article.ContentFingerprint
	existing.Title = article.Title
	existing.Author = article.Author
	existing.PublishedAt = article.PublishedAt
	existing.ImageURL = article.ImageURL
	existing.MatchedKeywords = article.MatchedKeywords
	existing.RelevanceScore = article.RelevanceScore
	existing.LastSeenAt = article.LastSeenAt
	s.articles[article.URLFingerprint] = existing
	return existing, false, nil
}

// TouchArticle advances last_seen for a re-sighted URL.
func (s *ArticleStore) TouchArticle(_ context.Context, fp string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.articles[fp]
	if !ok {
		return fmt.Errorf("touch article: fingerprint %s not found", fp)
	}
	article.LastSeenAt = seenAt
	s.articles[fp] = article
	return nil
}

// Count reports the number of stored articles, for tests.
func (s *ArticleStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.articles)
}
