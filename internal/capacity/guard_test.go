package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/store/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func seedSchedules(store *memory.CategoryStore, intervals []int) {
	next := time.Unix(1700000000, 0).UTC()
	for i, interval := range intervals {
		store.PutCategory(core.Category{
			ID:              string(rune('a' + i)),
			Name:            string(rune('a' + i)),
			Active:          true,
			ScheduleEnabled: true,
			IntervalMinutes: interval,
			NextScheduledAt: &next,
		})
	}
}

func TestEstimateLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		intervals   []int
		wantPerHour float64
		wantLevel   core.CapacityLevel
	}{
		{
			name:        "empty is normal",
			intervals:   nil,
			wantPerHour: 0,
			wantLevel:   core.CapacityNormal,
		},
		{
			name:        "below warning threshold",
			intervals:   []int{30, 30, 60}, // 2 + 2 + 1 = 5/hr
			wantPerHour: 5,
			wantLevel:   core.CapacityNormal,
		},
		{
			name:        "at warning threshold",
			intervals:   []int{1}, // 60/hr
			wantPerHour: 60,
			wantLevel:   core.CapacityWarning,
		},
		{
			name:        "just under critical",
			intervals:   []int{5, 5, 5, 5, 5, 5, 5, 5}, // 8 * 12 = 96/hr
			wantPerHour: 96,
			wantLevel:   core.CapacityWarning,
		},
		{
			name:        "at critical ceiling",
			intervals:   []int{1, 5, 5, 15, 15, 15, 15}, // 60 + 24 + 16 = 100/hr
			wantPerHour: 100,
			wantLevel:   core.CapacityCritical,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := memory.NewCategoryStore()
			seedSchedules(store, tt.intervals)
			guard := New(store, fixedClock{now: time.Unix(1700000000, 0).UTC()})

			report, err := guard.Estimate(context.Background())
			require.NoError(t, err)
			require.InDelta(t, tt.wantPerHour, report.JobsPerHour, 0.01)
			require.Equal(t, tt.wantLevel, report.Level)
			require.Equal(t, len(tt.intervals), report.EnabledCategories)
			if tt.wantLevel != core.CapacityNormal {
				require.NotEmpty(t, report.Warnings)
			}
		})
	}
}

func TestEstimateRecommendsSlowerIntervals(t *testing.T) {
	t.Parallel()

	store := memory.NewCategoryStore()
	seedSchedules(store, []int{1, 5})
	guard := New(store, fixedClock{now: time.Unix(1700000000, 0).UTC()})

	report, err := guard.Estimate(context.Background())
	require.NoError(t, err)
	require.Equal(t, core.CapacityWarning, report.Level)
	require.NotEmpty(t, report.Recommendations)
}
