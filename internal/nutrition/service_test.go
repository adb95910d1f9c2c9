package nutrition

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(now time.Time) (*Service, *memStore, *recordingEvents) {
	store := newMemStore()
	events := &recordingEvents{}
	svc := NewService(store, events)
	svc.now = func() time.Time { return now }
	return svc, store, events
}

func TestService_CreateMeal(t *testing.T) {
	svc, store, events := newTestService(jan1)
	userID := uuid.New()
	elma := store.addFood("Elma", 52, ptr(0.3), nil, nil)

	meal, err := svc.CreateMeal(context.Background(), userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 1.5, Slot: "lunch"})
	require.NoError(t, err)
	assert.Equal(t, 78.0, meal.Calories)
	assert.Equal(t, SlotLunch, meal.Slot)
	assert.Equal(t, 78.0, store.dayTotals(userID, jan1).Calories)
	assert.Equal(t, []string{"manual"}, events.events)
}

func TestService_CreateMeal_UnknownFood(t *testing.T) {
	svc, store, _ := newTestService(jan1)

	_, err := svc.CreateMeal(context.Background(), uuid.New(), &CreateMealRequest{FoodID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.days)
}

func TestService_CreateMeal_InvalidDate(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	elma := store.addFood("Elma", 52, nil, nil, nil)

	_, err := svc.CreateMeal(context.Background(), uuid.New(), &CreateMealRequest{FoodID: elma.ID, Quantity: 1, Date: "01/02/2024"})
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestService_UpdateMeal_RecomputesCalories(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)
	ekmek := store.addFood("Ekmek", 265, nil, nil, nil)

	meal, err := svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 2})
	require.NoError(t, err)

	qty := 0.5
	updated, err := svc.UpdateMeal(ctx, userID, meal.ID, &UpdateMealRequest{FoodID: &ekmek.ID, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 132.5, updated.Calories)
	assert.Equal(t, 132.5, store.dayTotals(userID, jan1).Calories)
}

func TestService_MealsAreOwnedByUser(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	meal, err := svc.CreateMeal(ctx, owner, &CreateMealRequest{FoodID: elma.ID, Quantity: 1})
	require.NoError(t, err)

	qty := 3.0
	_, err = svc.UpdateMeal(ctx, other, meal.ID, &UpdateMealRequest{Quantity: &qty})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteMeal(ctx, other, meal.ID), ErrNotFound)
	assert.Equal(t, 52.0, store.dayTotals(owner, jan1).Calories)
}

func TestService_DeleteMeal(t *testing.T) {
	svc, store, events := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	m1, err := svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 1})
	require.NoError(t, err)
	m2, err := svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMeal(ctx, userID, m2.ID))
	assert.Equal(t, 52.0, store.dayTotals(userID, jan1).Calories)
	require.NoError(t, svc.DeleteMeal(ctx, userID, m1.ID))
	assert.Equal(t, 0.0, store.dayTotals(userID, jan1).Calories)
	assert.Equal(t, []float64{52, 156, 52, 0}, events.totals)
}

func TestService_GetDay(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	empty, err := svc.GetDay(ctx, userID, jan1)
	require.NoError(t, err)
	assert.Empty(t, empty.Meals)
	assert.Equal(t, 0.0, empty.TotalCalories)

	_, err = svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 1})
	require.NoError(t, err)

	day, err := svc.GetDay(ctx, userID, jan1)
	require.NoError(t, err)
	require.Len(t, day.Meals, 1)
	assert.Equal(t, "Elma", day.Meals[0].Food.Name)
}

func TestService_RecomputeDay_FixesDrift(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	_, err := svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 1})
	require.NoError(t, err)
	day, _ := store.GetDay(ctx, userID, jan1)
	require.NoError(t, store.UpdateDayTotals(ctx, day.ID, Totals{Calories: 999}))

	got, err := svc.RecomputeDay(ctx, userID, jan1)
	require.NoError(t, err)
	assert.Equal(t, 52.0, got.TotalCalories)

	_, err = svc.RecomputeDay(ctx, userID, jan1.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RecomputeAll(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	for _, d := range []string{"2023-12-30", "2023-12-31", "2024-01-01"} {
		_, err := svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 1, Date: d})
		require.NoError(t, err)
	}

	n, err := svc.RecomputeAll(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestService_WeeklyReport(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	for _, d := range []string{"2023-12-20", "2023-12-25", "2024-01-01", "2023-12-28"} {
		_, err := svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 1, Date: d})
		require.NoError(t, err)
	}
	_, err := svc.CreateMeal(ctx, uuid.New(), &CreateMealRequest{FoodID: elma.ID, Quantity: 1, Date: "2023-12-31"})
	require.NoError(t, err)

	days, err := svc.WeeklyReport(ctx, userID)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2023-12-25", days[0].Date.Format(time.DateOnly))
	assert.Equal(t, "2024-01-01", days[2].Date.Format(time.DateOnly))
}

func TestService_Dashboard(t *testing.T) {
	svc, store, _ := newTestService(jan1.Add(9 * time.Hour))
	ctx := context.Background()
	userID := uuid.New()
	elma := store.addFood("Elma", 52, nil, nil, nil)

	d, err := svc.Dashboard(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.TodayCalories)
	assert.Equal(t, 2635.0, d.DailyNeed)
	assert.Equal(t, 24.2, d.BMI)
	assert.Equal(t, GoalHealthyEating, d.Goal)

	_, err = svc.CreateMeal(ctx, userID, &CreateMealRequest{FoodID: elma.ID, Quantity: 3})
	require.NoError(t, err)
	d, err = svc.Dashboard(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 156.0, d.TodayCalories)
}

func TestService_UpdateProfile(t *testing.T) {
	svc, _, _ := newTestService(jan1)
	ctx := context.Background()
	userID := uuid.New()

	weight := 80.0
	goal := GoalLoseWeight
	p, err := svc.UpdateProfile(ctx, userID, &UpdateProfileRequest{WeightKg: &weight, Goal: &goal})
	require.NoError(t, err)
	assert.Equal(t, 80.0, p.WeightKg)
	assert.Equal(t, 170.0, p.HeightCm)

	got, err := svc.GetProfile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, GoalLoseWeight, got.Goal)

	bad := "couch"
	_, err = svc.UpdateProfile(ctx, userID, &UpdateProfileRequest{ActivityLevel: &bad})
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestService_SearchFoods(t *testing.T) {
	svc, store, _ := newTestService(jan1)
	store.addFood("Elma", 52, nil, nil, nil)
	store.addFood("Elma Suyu", 46, nil, nil, nil)
	store.addFood("Armut", 57, nil, nil, nil)

	foods, err := svc.SearchFoods(context.Background(), "elma", "", 0)
	require.NoError(t, err)
	require.Len(t, foods, 2)
	assert.Equal(t, "Elma", foods[0].Name)
}
