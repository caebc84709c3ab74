package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/newswatch/newswatch/internal/core"
)

const categoryColumns = `id, name, include_keywords, exclude_keywords, active,
schedule_enabled, interval_minutes, crawl_period, last_scheduled_at, next_scheduled_at`

// CategoryStore persists categories and their schedule columns in Postgres.
type CategoryStore struct {
	pool Pool
}

// NewCategoryStore constructs a CategoryStore over an existing pool.
func NewCategoryStore(pool Pool) *CategoryStore {
	return &CategoryStore{pool: pool}
}

// GetCategory fetches a category by ID.
func (s *CategoryStore) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	cat, err := scanCategory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("select category: %w", err)
	}
	return cat, nil
}

// ListEnabledSchedules returns every category with scheduling enabled.
func (s *CategoryStore) ListEnabledSchedules(ctx context.Context) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE schedule_enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()
	return collectCategories(rows)
}

// ClaimDueCategories selects every category whose next run has elapsed and
// advances last/next scheduled timestamps in the same statement. The
// read-then-advance is a single row update, so overlapping scans cannot claim
// the same due window twice.
func (s *CategoryStore) ClaimDueCategories(ctx context.Context, now time.Time) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx, `
UPDATE categories
SET last_scheduled_at = $1,
    next_scheduled_at = $1 + (interval_minutes * interval '1 minute')
WHERE schedule_enabled AND next_scheduled_at <= $1
RETURNING `+categoryColumns, now)
	if err != nil {
		return nil, fmt.Errorf("claim due categories: %w", err)
	}
	defer rows.Close()
	return collectCategories(rows)
}

// UpdateScheduleConfig applies a schedule change. Enabling requires an active
// category and a permitted interval; disabling clears the next-run timestamp
// and ignores any provided interval.
func (s *CategoryStore) UpdateScheduleConfig(
	ctx context.Context,
	id string,
	cfg core.ScheduleConfig,
	now time.Time,
) (core.ScheduleConfig, error) {
	current, err := s.GetCategory(ctx, id)
	if err != nil {
		return core.ScheduleConfig{}, err
	}

	if !cfg.Enabled {
		_, err := s.pool.Exec(ctx, `
UPDATE categories
SET schedule_enabled = FALSE, next_scheduled_at = NULL
WHERE id = $1`, id)
		if err != nil {
			return core.ScheduleConfig{}, fmt.Errorf("disable schedule: %w", err)
		}
		return core.ScheduleConfig{
			CategoryID:  id,
			Enabled:     false,
			CrawlPeriod: current.CrawlPeriod,
		}, nil
	}

	if !current.Active {
		return core.ScheduleConfig{}, core.ErrCategoryInactive
	}
	if !core.ValidInterval(cfg.IntervalMinutes) {
		return core.ScheduleConfig{}, core.ErrInvalidInterval
	}

	next := now.Add(time.Duration(cfg.IntervalMinutes) * time.Minute)
	_, err = s.pool.Exec(ctx, `
UPDATE categories
SET schedule_enabled = TRUE, interval_minutes = $2, crawl_period = $3, next_scheduled_at = $4
WHERE id = $1`, id, cfg.IntervalMinutes, cfg.CrawlPeriod, next)
	if err != nil {
		return core.ScheduleConfig{}, fmt.Errorf("enable schedule: %w", err)
	}
	return core.ScheduleConfig{
		CategoryID:      id,
		Enabled:         true,
		IntervalMinutes: cfg.IntervalMinutes,
		CrawlPeriod:     cfg.CrawlPeriod,
		NextScheduledAt: &next,
	}, nil
}

func collectCategories(rows pgx.Rows) ([]core.Category, error) {
	var categories []core.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

func scanCategory(row pgx.Row) (core.Category, error) {
	var cat core.Category
	err := row.Scan(
		&cat.ID, &cat.Name, &cat.IncludeKeywords, &cat.ExcludeKeywords, &cat.Active,
		&cat.ScheduleEnabled, &cat.IntervalMinutes, &cat.CrawlPeriod,
		&cat.LastScheduledAt, &cat.NextScheduledAt,
	)
	if err != nil {
		return core.Category{}, err
	}
	return cat, nil
}
