// Package capacity estimates aggregate scheduled job creation load.
package capacity

import (
	"context"
	"fmt"
	"sort"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/telemetry"
)

// Load tier boundaries in scheduled jobs per hour. The critical ceiling is a
// soft limit: the guard reports, it never blocks scheduling.
const (
	WarningThreshold  = 60
	CriticalThreshold = 100
)

// Guard classifies the system's scheduled job creation rate.
type Guard struct {
	categories core.CategoryStore
	clock      core.Clock
}

// New constructs a Guard.
func New(categories core.CategoryStore, clock core.Clock) *Guard {
	return &Guard{categories: categories, clock: clock}
}

// Estimate computes jobs-per-hour across all enabled schedules and classifies
// the result.
func (g *Guard) Estimate(ctx context.Context) (core.CapacityReport, error) {
	categories, err := g.categories.ListEnabledSchedules(ctx)
	if err != nil {
		return core.CapacityReport{}, fmt.Errorf("list enabled schedules: %w", err)
	}

	report := core.CapacityReport{
		EnabledCategories: len(categories),
		GeneratedAt:       g.clock.Now(),
	}

	var fastCategories []string
	for _, cat := range categories {
		if cat.IntervalMinutes <= 0 {
			continue
		}
		report.JobsPerHour += 60.0 / float64(cat.IntervalMinutes)
		if cat.IntervalMinutes < 15 {
			fastCategories = append(fastCategories, cat.Name)
		}
	}

	switch {
	case report.JobsPerHour >= CriticalThreshold:
		report.Level = core.CapacityCritical
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"estimated %.0f scheduled jobs/hour exceeds the %d/hour design ceiling",
			report.JobsPerHour, CriticalThreshold))
	case report.JobsPerHour >= WarningThreshold:
		report.Level = core.CapacityWarning
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"estimated %.0f scheduled jobs/hour is approaching the %d/hour ceiling",
			report.JobsPerHour, CriticalThreshold))
	default:
		report.Level = core.CapacityNormal
	}

	if len(fastCategories) > 0 && report.Level != core.CapacityNormal {
		sort.Strings(fastCategories)
		report.Recommendations = append(report.Recommendations, fmt.Sprintf(
			"consider longer intervals for high-frequency categories: %v", fastCategories))
	}

	telemetry.ObserveCapacity(report.JobsPerHour, string(report.Level))
	return report, nil
}
