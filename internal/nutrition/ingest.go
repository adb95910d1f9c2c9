package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/prona-platform/prona/internal/metrics"
	pronanats "github.com/prona-platform/prona/internal/nats"
	"github.com/prona-platform/prona/internal/numeric"
)

// EventPublisher receives day totals after the change is committed.
type EventPublisher interface {
	PublishDayTotals(ctx context.Context, evt pronanats.DayTotalsUpdated) error
}

// IngestResult is the day after ingestion plus what was written.
type IngestResult struct {
	Day     *DayAggregate `json:"day"`
	Meals   []Meal        `json:"meals"`
	Skipped int           `json:"skipped"`
}

// Pipeline turns loosely structured food descriptors into meals.
type Pipeline struct {
	store  Store
	events EventPublisher
	now    func() time.Time
}

// NewPipeline creates a new ingestion pipeline. events may be nil.
func NewPipeline(store Store, events EventPublisher) *Pipeline {
	return &Pipeline{store: store, events: events, now: time.Now}
}

// Ingest logs every usable descriptor as a meal on the user's day and
// recomputes the day once. Items without a name are skipped, not rejected.
// A zero date means today.
func (p *Pipeline) Ingest(ctx context.Context, userID uuid.UUID, items []Descriptor, slot MealSlot, date time.Time) (*IngestResult, error) {
	if date.IsZero() {
		date = p.now()
	}
	date = DateOnly(date)
	slot = ParseMealSlot(string(slot))

	res := &IngestResult{Meals: []Meal{}}
	err := p.store.InTx(ctx, func(q Queries) error {
		day, err := q.GetOrCreateDay(ctx, userID, date)
		if err != nil {
			return fmt.Errorf("getting day: %w", err)
		}
		res.Day = day

		for _, item := range items {
			name := normalizeFoodName(item.Name)
			if name == "" {
				res.Skipped++
				metrics.DescriptorsSkippedTotal.Inc()
				slog.Debug("nutrition: skipping descriptor without name", "user_id", userID)
				continue
			}

			food, err := resolveFood(ctx, q, name, item)
			if err != nil {
				return err
			}

			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			note := aiMealNote
			meal := Meal{
				DayID:    day.ID,
				FoodID:   food.ID,
				Food:     food,
				Quantity: qty,
				Calories: round2(food.Calories * qty),
				Slot:     slot,
				Notes:    &note,
			}
			if err := q.CreateMeal(ctx, &meal); err != nil {
				return err
			}
			res.Meals = append(res.Meals, meal)
		}

		if len(res.Meals) == 0 {
			return nil
		}
		totals, err := Recompute(ctx, q, day.ID)
		if err != nil {
			return err
		}
		day.setTotals(totals)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting meals: %w", err)
	}

	if len(res.Meals) > 0 {
		metrics.MealsIngestedTotal.WithLabelValues("ai").Add(float64(len(res.Meals)))
		publishDayTotals(ctx, p.events, res.Day, "ai")
	}
	return res, nil
}

// resolveFood finds the food by case-insensitive name or creates it from the
// descriptor. A stored food with zero calories is treated as a placeholder and
// takes the descriptor's values when those are nonzero. Foods are shared, so
// this backfill applies across users.
func resolveFood(ctx context.Context, q Queries, name string, d Descriptor) (*Food, error) {
	food, created, err := q.GetOrCreateFood(ctx, &Food{
		Name:        name,
		Calories:    d.Calories,
		Protein:     ptr(d.Protein),
		Carbs:       ptr(d.Carbs),
		Fat:         ptr(d.Fat),
		Category:    defaultCategory,
		ServingSize: defaultServingSize,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving food %q: %w", name, err)
	}
	if created || food.Calories != 0 || d.Calories <= 0 {
		return food, nil
	}

	food.Calories = d.Calories
	food.Protein = ptr(d.Protein)
	food.Carbs = ptr(d.Carbs)
	food.Fat = ptr(d.Fat)
	if err := q.UpdateFoodNutrients(ctx, food); err != nil {
		return nil, fmt.Errorf("backfilling food %q: %w", name, err)
	}
	return food, nil
}

// normalizeFoodName trims, title-cases and bounds a food name. "elma SUYU"
// becomes "Elma Suyu".
func normalizeFoodName(raw string) string {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if name == "" {
		return ""
	}
	// Casers keep state, so one per call.
	name = cases.Title(language.Und).String(name)
	if r := []rune(name); len(r) > maxFoodNameRunes {
		name = string(r[:maxFoodNameRunes])
	}
	return name
}

// ParseDescriptors reads an object, an array of objects or names, or a bare
// name. Names come from "food_name" or "name"; numbers go through
// numeric.Coerce. Elements of any other shape are dropped.
func ParseDescriptors(raw json.RawMessage) ([]Descriptor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding food items: %w", err)
	}

	switch t := v.(type) {
	case []any:
		out := make([]Descriptor, 0, len(t))
		for _, el := range t {
			if d, ok := descriptorFrom(el); ok {
				out = append(out, d)
			}
		}
		return out, nil
	default:
		if d, ok := descriptorFrom(t); ok {
			return []Descriptor{d}, nil
		}
		return nil, nil
	}
}

func descriptorFrom(v any) (Descriptor, bool) {
	switch t := v.(type) {
	case string:
		return Descriptor{Name: t}, true
	case map[string]any:
		d := Descriptor{
			Calories: numeric.Coerce(t["calories"]),
			Protein:  numeric.Coerce(t["protein"]),
			Carbs:    numeric.Coerce(t["carbs"]),
			Fat:      numeric.Coerce(t["fat"]),
			Quantity: numeric.Coerce(t["quantity"]),
		}
		name, ok := t["food_name"]
		if !ok {
			name = t["name"]
		}
		if name != nil {
			d.Name = fmt.Sprint(name)
		}
		return d, true
	default:
		return Descriptor{}, false
	}
}

func publishDayTotals(ctx context.Context, events EventPublisher, day *DayAggregate, source string) {
	if events == nil || day == nil {
		return
	}
	evt := pronanats.DayTotalsUpdated{
		UserID:    day.UserID,
		DayID:     day.ID,
		Date:      day.Date.Format(time.DateOnly),
		Calories:  day.TotalCalories,
		Protein:   day.TotalProtein,
		Carbs:     day.TotalCarbs,
		Fat:       day.TotalFat,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	if err := events.PublishDayTotals(ctx, evt); err != nil {
		slog.Warn("nutrition: publishing day totals", "error", err, "day_id", day.ID)
	}
}
