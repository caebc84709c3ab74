// Package googlenews implements the search provider on the Google News RSS
// endpoint.
package googlenews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newswatch/newswatch/internal/core"
)

const feedBase = "https://news.google.com/rss/search"

// Config tunes the provider client.
type Config struct {
	UserAgent         string
	Language          string
	Country           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Provider queries the Google News RSS search feed and maps items to
// candidates. All requests share one rate limiter: the feed endpoint throttles
// aggressively and burst traffic gets the whole service blocked.
type Provider struct {
	parser  *gofeed.Parser
	limiter *rate.Limiter
	baseURL string
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	rps := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		rps = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	return &Provider{
		parser:  parser,
		limiter: rate.NewLimiter(rps, burst),
		baseURL: feedBase,
		cfg:     cfg,
		logger:  logger,
	}
}

// Search implements core.SearchProvider. HTTP 429 and 503 surface as
// core.ErrThrottled so callers can back off.
func (p *Provider) Search(ctx context.Context, query core.SearchQuery) ([]core.Candidate, error) {
	if len(query.IncludeKeywords) == 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	feedURL := p.feedURL(query)
	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) &&
			(httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode == http.StatusServiceUnavailable) {
			return nil, fmt.Errorf("%w: http %d", core.ErrThrottled, httpErr.StatusCode)
		}
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	limit := query.MaxResults
	if limit <= 0 || limit > len(feed.Items) {
		limit = len(feed.Items)
	}

	candidates := make([]core.Candidate, 0, limit)
	for _, item := range feed.Items[:limit] {
		if item.Link == "" {
			continue
		}
		cand := core.Candidate{
			URL:         item.Link,
			Title:       item.Title,
			PublishedAt: item.PublishedParsed,
		}
		if item.Custom != nil {
			cand.Source = item.Custom["source"]
		}
		candidates = append(candidates, cand)
	}
	p.logger.Debug("feed fetched",
		zap.String("url", feedURL),
		zap.Int("items", len(feed.Items)),
		zap.Int("returned", len(candidates)))
	return candidates, nil
}

// feedURL builds the RSS search URL. Include keywords are OR-combined,
// exclusions carry a leading minus, and a period clause bounds recency.
func (p *Provider) feedURL(query core.SearchQuery) string {
	q := BuildQuery(query)
	params := url.Values{}
	params.Set("q", q)
	params.Set("hl", fmt.Sprintf("%s-%s", p.cfg.Language, p.cfg.Country))
	params.Set("gl", p.cfg.Country)
	params.Set("ceid", fmt.Sprintf("%s:%s", p.cfg.Country, p.cfg.Language))
	return p.baseURL + "?" + params.Encode()
}

// BuildQuery renders a SearchQuery as a Google News query string.
func BuildQuery(query core.SearchQuery) string {
	var parts []string

	var includes []string
	for _, kw := range query.IncludeKeywords {
		if kw == "" {
			continue
		}
		includes = append(includes, quoteIfSpaced(kw))
	}
	if len(includes) > 0 {
		parts = append(parts, strings.Join(includes, " OR "))
	}
	for _, kw := range query.ExcludeKeywords {
		if kw == "" {
			continue
		}
		parts = append(parts, "-"+quoteIfSpaced(kw))
	}
	if query.Period != "" {
		parts = append(parts, "when:"+query.Period)
	}
	return strings.Join(parts, " ")
}

func quoteIfSpaced(kw string) string {
	if strings.ContainsAny(kw, " \t") {
		return `"` + kw + `"`
	}
	return kw
}
