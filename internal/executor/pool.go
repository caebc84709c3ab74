// Package executor runs claimed crawl jobs on a fixed worker pool.
package executor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/dedup"
	"github.com/newswatch/newswatch/internal/ratelimit"
)

// JobSource hands out claimed jobs. Claiming is exclusive: no two workers
// ever receive the same job.
type JobSource interface {
	NextJob(ctx context.Context) (*core.CrawlJob, error)
}

// Options sizes and tunes the pool.
type Options struct {
	Workers      int
	IdlePoll     time.Duration
	BreakerLimit int
	ThrottleBase time.Duration
	Topic        string
}

// Pool polls the dispatcher and executes jobs until its context is canceled.
// Archive and publisher are optional; a nil value disables that step.
type Pool struct {
	source     JobSource
	jobs       core.JobStore
	categories core.CategoryStore
	search     core.SearchProvider
	extractor  core.Extractor
	index      *dedup.Index
	limiter    *ratelimit.Limiter
	archive    core.BlobStore
	publisher  core.Publisher
	retry      *core.ExponentialRetryPolicy
	ids        core.IDGenerator
	clock      core.Clock
	logger     *zap.Logger
	opts       Options
}

// Deps bundles the pool's collaborators.
type Deps struct {
	Source     JobSource
	Jobs       core.JobStore
	Categories core.CategoryStore
	Search     core.SearchProvider
	Extractor  core.Extractor
	Index      *dedup.Index
	Limiter    *ratelimit.Limiter
	Archive    core.BlobStore
	Publisher  core.Publisher
	Retry      *core.ExponentialRetryPolicy
	IDs        core.IDGenerator
	Clock      core.Clock
	Logger     *zap.Logger
}

// NewPool constructs a Pool.
func NewPool(deps Deps, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.IdlePoll <= 0 {
		opts.IdlePoll = 500 * time.Millisecond
	}
	if opts.BreakerLimit <= 0 {
		opts.BreakerLimit = 3
	}
	if opts.ThrottleBase <= 0 {
		opts.ThrottleBase = time.Second
	}
	return &Pool{
		source:     deps.Source,
		jobs:       deps.Jobs,
		categories: deps.Categories,
		search:     deps.Search,
		extractor:  deps.Extractor,
		index:      deps.Index,
		limiter:    deps.Limiter,
		archive:    deps.Archive,
		publisher:  deps.Publisher,
		retry:      deps.Retry,
		ids:        deps.IDs,
		clock:      deps.Clock,
		logger:     deps.Logger,
		opts:       opts,
	}
}

// Run blocks until ctx is canceled. In-flight jobs finish before Run returns.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, worker int) {
	logger := p.logger.With(zap.Int("worker", worker))
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.source.NextJob(ctx)
		if err != nil {
			logger.Error("job claim failed", zap.Error(err))
			p.idle(ctx)
			continue
		}
		if job == nil {
			p.idle(ctx)
			continue
		}
		p.runJob(ctx, *job, logger)
	}
}

func (p *Pool) idle(ctx context.Context) {
	timer := time.NewTimer(p.opts.IdlePoll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
