package nutrition

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/metrics"
)

// SumTotals adds up food value times quantity over lines. Unknown macros count as 0.
func SumTotals(lines []MealLine) Totals {
	var t Totals
	for _, l := range lines {
		t.Calories += l.Calories * l.Quantity
		t.Protein += deref(l.Protein) * l.Quantity
		t.Carbs += deref(l.Carbs) * l.Quantity
		t.Fat += deref(l.Fat) * l.Quantity
	}
	return t
}

// Recompute rebuilds a day's totals from its meals. It must run inside the
// transaction that changed the meals; the day row stays locked until commit.
func Recompute(ctx context.Context, q Queries, dayID uuid.UUID) (Totals, error) {
	if err := q.LockDay(ctx, dayID); err != nil {
		return Totals{}, fmt.Errorf("locking day: %w", err)
	}
	lines, err := q.ListMealLines(ctx, dayID)
	if err != nil {
		return Totals{}, fmt.Errorf("listing meal lines: %w", err)
	}
	totals := SumTotals(lines)
	if err := q.UpdateDayTotals(ctx, dayID, totals); err != nil {
		return Totals{}, fmt.Errorf("updating day totals: %w", err)
	}
	metrics.DayRecomputesTotal.Inc()
	return totals, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
