package nutrition

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mustParse(t *testing.T, raw string) []Descriptor {
	t.Helper()
	items, err := ParseDescriptors(json.RawMessage(raw))
	require.NoError(t, err)
	return items
}

func TestIngest_EndToEnd(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	res, err := p.Ingest(ctx, userID,
		mustParse(t, `[{"food_name":"Elma","calories":"52 kcal","protein":"0.3g","quantity":"1"}]`),
		SlotSnack, jan1)
	require.NoError(t, err)
	assert.Equal(t, 52.0, res.Day.TotalCalories)
	assert.InDelta(t, 0.3, res.Day.TotalProtein, 1e-9)
	require.Len(t, res.Meals, 1)
	assert.Equal(t, "Elma", res.Meals[0].Food.Name)

	res, err = p.Ingest(ctx, userID, mustParse(t, `{"food_name":"elma","quantity":2}`), SlotSnack, jan1)
	require.NoError(t, err)
	assert.Equal(t, 156.0, res.Day.TotalCalories)
	assert.InDelta(t, 0.9, res.Day.TotalProtein, 1e-9)
	assert.Equal(t, 104.0, res.Meals[0].Calories)

	assert.Equal(t, 1, store.foodCount())
	assert.Equal(t, 2, store.mealCount())
	assert.Equal(t, 156.0, store.dayTotals(userID, jan1).Calories)
}

func TestIngest_CaseInsensitiveFoodReuse(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	userID := uuid.New()

	for _, name := range []string{"Muz", "muz", "MUZ", "  muz  "} {
		_, err := p.Ingest(context.Background(), userID, []Descriptor{{Name: name, Calories: 89}}, SlotSnack, jan1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.foodCount())
	assert.Equal(t, 4*89.0, store.dayTotals(userID, jan1).Calories)
}

func TestIngest_BackfillsZeroCalorieFood(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := p.Ingest(ctx, userID, []Descriptor{{Name: "Ayran"}}, SlotLunch, jan1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, store.dayTotals(userID, jan1).Calories)

	res, err := p.Ingest(ctx, userID, []Descriptor{{Name: "ayran", Calories: 38, Protein: 1.7}}, SlotLunch, jan1)
	require.NoError(t, err)
	assert.Equal(t, 38.0, res.Meals[0].Food.Calories)
	// The earlier placeholder meal now counts too.
	assert.Equal(t, 76.0, res.Day.TotalCalories)
	assert.InDelta(t, 3.4, res.Day.TotalProtein, 1e-9)
}

func TestIngest_DoesNotOverwriteKnownCalories(t *testing.T) {
	store := newMemStore()
	store.addFood("Ekmek", 265, ptr(9), ptr(49), ptr(3.2))
	p := NewPipeline(store, nil)
	userID := uuid.New()

	res, err := p.Ingest(context.Background(), userID, []Descriptor{{Name: "ekmek", Calories: 300, Protein: 1}}, SlotBreakfast, jan1)
	require.NoError(t, err)
	assert.Equal(t, 265.0, res.Meals[0].Food.Calories)
	assert.Equal(t, 9.0, *res.Meals[0].Food.Protein)
}

func TestIngest_SkipsNamelessItems(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	userID := uuid.New()

	items := mustParse(t, `[{"food_name":"   ","calories":100},{"calories":50},{"food_name":"Peynir","calories":"100"}]`)
	res, err := p.Ingest(context.Background(), userID, items, SlotBreakfast, jan1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Meals, 1)
	assert.Equal(t, 100.0, res.Day.TotalCalories)
}

func TestIngest_NoUsableItemsLeavesTotals(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := p.Ingest(ctx, userID, []Descriptor{{Name: "Yumurta", Calories: 155}}, SlotBreakfast, jan1)
	require.NoError(t, err)
	locks := store.locks

	res, err := p.Ingest(ctx, userID, []Descriptor{{Name: ""}}, SlotBreakfast, jan1)
	require.NoError(t, err)
	assert.Empty(t, res.Meals)
	assert.Equal(t, 155.0, res.Day.TotalCalories)
	assert.Equal(t, locks, store.locks, "no recompute without new meals")

	res, err = p.Ingest(ctx, userID, nil, SlotBreakfast, jan1)
	require.NoError(t, err)
	assert.Equal(t, 155.0, res.Day.TotalCalories)
}

func TestIngest_QuantityDefaults(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	userID := uuid.New()

	items := mustParse(t, `[{"food_name":"a","calories":10,"quantity":0},{"food_name":"b","calories":10,"quantity":-3},{"food_name":"c","calories":10,"quantity":"yarım"}]`)
	res, err := p.Ingest(context.Background(), userID, items, SlotSnack, jan1)
	require.NoError(t, err)
	require.Len(t, res.Meals, 3)
	for _, m := range res.Meals {
		assert.Equal(t, 1.0, m.Quantity, m.Food.Name)
	}
	assert.Equal(t, 30.0, res.Day.TotalCalories)
}

func TestIngest_StringQuantityLosesSign(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)

	res, err := p.Ingest(context.Background(), uuid.New(),
		mustParse(t, `{"food_name":"Su","calories":1,"quantity":"-2"}`), SlotSnack, jan1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Meals[0].Quantity)
}

func TestIngest_SlotAndNotes(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)

	res, err := p.Ingest(context.Background(), uuid.New(), []Descriptor{{Name: "Çorba", Calories: 70}}, MealSlot("brunch"), jan1)
	require.NoError(t, err)
	assert.Equal(t, SlotSnack, res.Meals[0].Slot)
	require.NotNil(t, res.Meals[0].Notes)
	assert.Equal(t, aiMealNote, *res.Meals[0].Notes)
}

func TestIngest_DefaultsToToday(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	now := time.Date(2025, 3, 9, 22, 15, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	res, err := p.Ingest(context.Background(), uuid.New(), []Descriptor{{Name: "Çay", Calories: 2}}, SlotSnack, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, DateOnly(now), res.Day.Date)
}

func TestIngest_RollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(store, nil)
	userID := uuid.New()
	store.failOn = "UpdateDayTotals"

	_, err := p.Ingest(context.Background(), userID, []Descriptor{{Name: "Pilav", Calories: 130}}, SlotLunch, jan1)
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, 0, store.mealCount())
	assert.Equal(t, 0, store.foodCount())
}

func TestIngest_PublishesAfterCommit(t *testing.T) {
	store := newMemStore()
	events := &recordingEvents{}
	p := NewPipeline(store, events)
	ctx := context.Background()

	_, err := p.Ingest(ctx, uuid.New(), []Descriptor{{Name: "Elma", Calories: 52}}, SlotSnack, jan1)
	require.NoError(t, err)
	_, err = p.Ingest(ctx, uuid.New(), []Descriptor{{Name: ""}}, SlotSnack, jan1)
	require.NoError(t, err)

	assert.Equal(t, []string{"ai"}, events.events)
	assert.Equal(t, []float64{52}, events.totals)
}

func TestNormalizeFoodName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"elma", "Elma"},
		{"  ELMA suyu ", "Elma Suyu"},
		{"tavuk göğsü", "Tavuk Göğsü"},
		{"", ""},
		{"   \t", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeFoodName(tt.in), tt.in)
	}

	long := normalizeFoodName(strings.Repeat("ş", 150))
	assert.Equal(t, maxFoodNameRunes, len([]rune(long)))
}

func TestParseDescriptors(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		items := mustParse(t, `{"food_name":"Elma","calories":"52 kcal","protein":"0.3g","carbs":14,"fat":null,"quantity":"1"}`)
		require.Len(t, items, 1)
		assert.Equal(t, Descriptor{Name: "Elma", Calories: 52, Protein: 0.3, Carbs: 14, Quantity: 1}, items[0])
	})

	t.Run("array", func(t *testing.T) {
		items := mustParse(t, `[{"food_name":"Elma"},{"name":"Armut","calories":57},"Muz",42]`)
		require.Len(t, items, 3)
		assert.Equal(t, "Armut", items[1].Name)
		assert.Equal(t, 57.0, items[1].Calories)
		assert.Equal(t, "Muz", items[2].Name)
	})

	t.Run("bare name", func(t *testing.T) {
		items := mustParse(t, `"Yoğurt"`)
		assert.Equal(t, []Descriptor{{Name: "Yoğurt"}}, items)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, mustParse(t, ``))
		assert.Empty(t, mustParse(t, `null`))
		assert.Empty(t, mustParse(t, `[]`))
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseDescriptors(json.RawMessage(`{"food_name":`))
		assert.Error(t, err)
	})
}
