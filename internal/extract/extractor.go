// Package extract fetches article pages and distills readable content.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
)

// Config controls the page fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// ReadabilityExtractor fetches a URL with Colly and runs the body through a
// readability pass to pull out title, byline and article text.
type ReadabilityExtractor struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a ReadabilityExtractor.
func New(cfg Config, logger *zap.Logger) *ReadabilityExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ReadabilityExtractor{
		cfg:    cfg,
		base:   colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt()),
		logger: logger,
	}
}

// Extract implements core.Extractor. HTTP 429 and 503 map to
// core.ErrThrottled.
func (e *ReadabilityExtractor) Extract(ctx context.Context, rawURL string) (core.ExtractedArticle, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return core.ExtractedArticle{}, fmt.Errorf("parse url: %w", err)
	}

	body, status, err := e.fetch(ctx, rawURL)
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		return core.ExtractedArticle{}, fmt.Errorf("%w: http %d", core.ErrThrottled, status)
	}
	if err != nil {
		return core.ExtractedArticle{}, fmt.Errorf("fetch page: %w", err)
	}
	if len(body) == 0 {
		return core.ExtractedArticle{}, fmt.Errorf("fetch page: empty body")
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return core.ExtractedArticle{}, fmt.Errorf("readability: %w", err)
	}

	e.logger.Debug("page extracted",
		zap.String("url", rawURL),
		zap.Int("content_bytes", len(article.TextContent)))

	return core.ExtractedArticle{
		URL:      rawURL,
		Title:    article.Title,
		Author:   article.Byline,
		Content:  article.TextContent,
		Excerpt:  article.Excerpt,
		ImageURL: article.Image,
		RawHTML:  body,
	}, nil
}

func (e *ReadabilityExtractor) fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	collector := e.base.Clone()
	if e.cfg.UserAgent != "" {
		collector.UserAgent = e.cfg.UserAgent
	}
	collector.SetRequestTimeout(e.cfg.Timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(rawURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
		collector.Wait()
	}()
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-done:
	}
	return body, status, fetchErr
}
