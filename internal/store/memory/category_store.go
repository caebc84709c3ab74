package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/newswatch/newswatch/internal/core"
)

// CategoryStore is an in-memory core.CategoryStore.
type CategoryStore struct {
	mu         sync.Mutex
	categories map[string]core.Category
}

// NewCategoryStore constructs a CategoryStore.
func NewCategoryStore() *CategoryStore {
	return &CategoryStore{categories: make(map[string]core.Category)}
}

// PutCategory inserts or replaces a category. Category CRUD lives outside
// the core; this seeds state for development and tests.
func (s *CategoryStore) PutCategory(cat core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[cat.ID] = cat
}

// GetCategory fetches a category by ID.
func (s *CategoryStore) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return cat, nil
}

// ListEnabledSchedules returns every category with scheduling enabled.
func (s *CategoryStore) ListEnabledSchedules(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Category
	for _, cat := range s.categories {
		if cat.ScheduleEnabled {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ClaimDueCategories selects due categories and advances their schedule
// timestamps under one lock, mirroring the single-statement postgres claim.
func (s *CategoryStore) ClaimDueCategories(_ context.Context, now time.Time) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []core.Category
	for id, cat := range s.categories {
		if !cat.ScheduleEnabled || cat.NextScheduledAt == nil || cat.NextScheduledAt.After(now) {
			continue
		}
		last := now
		next := now.Add(time.Duration(cat.IntervalMinutes) * time.Minute)
		cat.LastScheduledAt = &last
		cat.NextScheduledAt = &next
		s.categories[id] = cat
		claimed = append(claimed, cat)
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].ID < claimed[j].ID })
	return claimed, nil
}

// UpdateScheduleConfig applies a schedule change with the same validation as
// the postgres store.
func (s *CategoryStore) UpdateScheduleConfig(
	_ context.Context,
	id string,
	cfg core.ScheduleConfig,
	now time.Time,
) (core.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, ok := s.categories[id]
	if !ok {
		return core.ScheduleConfig{}, core.ErrCategoryNotFound
	}

	if !cfg.Enabled {
		cat.ScheduleEnabled = false
		cat.NextScheduledAt = nil
		s.categories[id] = cat
		return core.ScheduleConfig{
			CategoryID:  id,
			Enabled:     false,
			CrawlPeriod: cat.CrawlPeriod,
		}, nil
	}

	if !cat.Active {
		return core.ScheduleConfig{}, core.ErrCategoryInactive
	}
	if !core.ValidInterval(cfg.IntervalMinutes) {
		return core.ScheduleConfig{}, core.ErrInvalidInterval
	}

	next := now.Add(time.Duration(cfg.IntervalMinutes) * time.Minute)
	cat.ScheduleEnabled = true
	cat.IntervalMinutes = cfg.IntervalMinutes
	if cfg.CrawlPeriod != "" {
		cat.CrawlPeriod = cfg.CrawlPeriod
	}
	cat.NextScheduledAt = &next
	s.categories[id] = cat

	return core.ScheduleConfig{
		CategoryID:      id,
		Enabled:         true,
		IntervalMinutes: cfg.IntervalMinutes,
		CrawlPeriod:     cat.CrawlPeriod,
		NextScheduledAt: &next,
	}, nil
}
