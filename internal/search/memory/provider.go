// Package memory contains a scripted search provider for tests and offline
// runs.
package memory

import (
	"context"
	"sync"

	"github.com/newswatch/newswatch/internal/core"
)

// Provider returns canned candidates and records the queries it was asked.
type Provider struct {
	mu         sync.Mutex
	candidates []core.Candidate
	err        error
	queries    []core.SearchQuery
}

// New creates a Provider that answers every query with the given candidates.
func New(candidates []core.Candidate) *Provider {
	return &Provider{candidates: candidates}
}

// Fail makes every subsequent Search return err.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Search implements core.SearchProvider.
func (p *Provider) Search(_ context.Context, query core.SearchQuery) ([]core.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	if p.err != nil {
		return nil, p.err
	}
	limit := query.MaxResults
	if limit <= 0 || limit > len(p.candidates) {
		limit = len(p.candidates)
	}
	out := make([]core.Candidate, limit)
	copy(out, p.candidates[:limit])
	return out, nil
}

// Queries returns the recorded queries in call order.
func (p *Provider) Queries() []core.SearchQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.SearchQuery, len(p.queries))
	copy(out, p.queries)
	return out
}
