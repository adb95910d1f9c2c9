package nutrition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/metrics"
)

// weeklyReportDays is how far back the weekly report reaches, today included.
const weeklyReportDays = 7

// Service implements meal bookkeeping, reports and profiles.
type Service struct {
	store  Store
	events EventPublisher
	now    func() time.Time
}

// NewService creates a new nutrition service. events may be nil.
func NewService(store Store, events EventPublisher) *Service {
	return &Service{store: store, events: events, now: time.Now}
}

type CreateMealRequest struct {
	FoodID   uuid.UUID `json:"food_id" validate:"required"`
	Quantity float64   `json:"quantity" validate:"gt=0"`
	Slot     string    `json:"meal_time" validate:"omitempty,oneof=breakfast lunch dinner snack"`
	Date     string    `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes    *string   `json:"notes" validate:"omitempty,max=500"`
}

type UpdateMealRequest struct {
	FoodID   *uuid.UUID `json:"food_id"`
	Quantity *float64   `json:"quantity" validate:"omitempty,gt=0"`
	Slot     *string    `json:"meal_time" validate:"omitempty,oneof=breakfast lunch dinner snack"`
	Notes    *string    `json:"notes" validate:"omitempty,max=500"`
}

// CreateMeal logs a known food on a day and recomputes that day.
func (s *Service) CreateMeal(ctx context.Context, userID uuid.UUID, req *CreateMealRequest) (*Meal, error) {
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	meal := &Meal{
		FoodID:   req.FoodID,
		Quantity: req.Quantity,
		Slot:     ParseMealSlot(req.Slot),
		Notes:    req.Notes,
	}
	var day *DayAggregate
	err = s.store.InTx(ctx, func(q Queries) error {
		food, err := q.GetFood(ctx, req.FoodID)
		if err != nil {
			return err
		}
		day, err = q.GetOrCreateDay(ctx, userID, date)
		if err != nil {
			return err
		}
		meal.DayID = day.ID
		meal.Food = food
		meal.Calories = round2(food.Calories * meal.Quantity)
		if err := q.CreateMeal(ctx, meal); err != nil {
			return err
		}
		totals, err := Recompute(ctx, q, day.ID)
		if err != nil {
			return err
		}
		day.setTotals(totals)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MealsIngestedTotal.WithLabelValues("manual").Inc()
	publishDayTotals(ctx, s.events, day, "manual")
	return meal, nil
}

// UpdateMeal changes a meal the user owns and recomputes its day.
func (s *Service) UpdateMeal(ctx context.Context, userID, mealID uuid.UUID, req *UpdateMealRequest) (*Meal, error) {
	var (
		meal *Meal
		day  *DayAggregate
	)
	err := s.store.InTx(ctx, func(q Queries) error {
		var err error
		meal, err = q.GetMeal(ctx, userID, mealID)
		if err != nil {
			return err
		}
		if req.FoodID != nil {
			meal.FoodID = *req.FoodID
		}
		if req.Quantity != nil {
			meal.Quantity = *req.Quantity
		}
		if req.Slot != nil {
			meal.Slot = ParseMealSlot(*req.Slot)
		}
		if req.Notes != nil {
			meal.Notes = req.Notes
		}

		food, err := q.GetFood(ctx, meal.FoodID)
		if err != nil {
			return err
		}
		meal.Food = food
		meal.Calories = round2(food.Calories * meal.Quantity)
		if err := q.UpdateMeal(ctx, meal); err != nil {
			return err
		}

		if _, err := Recompute(ctx, q, meal.DayID); err != nil {
			return err
		}
		day, err = q.GetDayByID(ctx, meal.DayID)
		return err
	})
	if err != nil {
		return nil, err
	}

	publishDayTotals(ctx, s.events, day, "manual")
	return meal, nil
}

// DeleteMeal removes a meal the user owns and recomputes its day.
func (s *Service) DeleteMeal(ctx context.Context, userID, mealID uuid.UUID) error {
	var day *DayAggregate
	err := s.store.InTx(ctx, func(q Queries) error {
		meal, err := q.GetMeal(ctx, userID, mealID)
		if err != nil {
			return err
		}
		if err := q.DeleteMeal(ctx, meal.ID); err != nil {
			return err
		}
		if _, err := Recompute(ctx, q, meal.DayID); err != nil {
			return err
		}
		day, err = q.GetDayByID(ctx, meal.DayID)
		return err
	})
	if err != nil {
		return err
	}

	publishDayTotals(ctx, s.events, day, "manual")
	return nil
}

// GetDay returns a day with its meals. A day without meals is returned empty
// rather than as not found.
func (s *Service) GetDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error) {
	date = DateOnly(date)
	day, err := s.store.GetDay(ctx, userID, date)
	if errors.Is(err, ErrNotFound) {
		return &DayAggregate{UserID: userID, Date: date, Meals: []Meal{}}, nil
	}
	if err != nil {
		return nil, err
	}
	day.Meals, err = s.store.ListMeals(ctx, day.ID)
	if err != nil {
		return nil, err
	}
	return day, nil
}

// RecomputeDay rebuilds one day's totals from its meals.
func (s *Service) RecomputeDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error) {
	var day *DayAggregate
	err := s.store.InTx(ctx, func(q Queries) error {
		var err error
		day, err = q.GetDay(ctx, userID, date)
		if err != nil {
			return err
		}
		totals, err := Recompute(ctx, q, day.ID)
		if err != nil {
			return err
		}
		day.setTotals(totals)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishDayTotals(ctx, s.events, day, "recompute")
	return day, nil
}

// RecomputeAll rebuilds every day the user has, one transaction per day.
func (s *Service) RecomputeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	days, err := s.store.ListDays(ctx, userID, time.Time{}, DateOnly(s.now()).AddDate(100, 0, 0))
	if err != nil {
		return 0, err
	}
	for i, d := range days {
		if _, err := s.RecomputeDay(ctx, userID, d.Date); err != nil {
			return i, fmt.Errorf("recomputing %s: %w", d.Date.Format(time.DateOnly), err)
		}
	}
	return len(days), nil
}

// WeeklyReport returns the days of the last week that have entries, oldest first.
func (s *Service) WeeklyReport(ctx context.Context, userID uuid.UUID) ([]DayAggregate, error) {
	today := DateOnly(s.now())
	return s.store.ListDays(ctx, userID, today.AddDate(0, 0, -weeklyReportDays), today)
}

type Dashboard struct {
	TodayCalories float64 `json:"today_calories"`
	Today         Totals  `json:"today"`
	DailyNeed     float64 `json:"daily_need"`
	BMI           float64 `json:"bmi"`
	Goal          string  `json:"goal"`
	GoalLabel     string  `json:"goal_label"`
}

// Dashboard summarizes today against the user's calorie need.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var today Totals
	day, err := s.store.GetDay(ctx, userID, s.now())
	switch {
	case err == nil:
		today = day.Totals()
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	return &Dashboard{
		TodayCalories: today.Calories,
		Today:         today,
		DailyNeed:     profile.DailyCalorieNeed(),
		BMI:           profile.BMI(),
		Goal:          profile.Goal,
		GoalLabel:     profile.GoalLabel(),
	}, nil
}

// SearchFoods lists foods by name substring and category.
func (s *Service) SearchFoods(ctx context.Context, query, category string, limit int) ([]Food, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.SearchFoods(ctx, query, category, limit)
}

// GetProfile returns the stored profile or the defaults.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return DefaultProfile(userID), nil
	}
	return p, err
}

type UpdateProfileRequest struct {
	Age           *int     `json:"age" validate:"omitempty,min=1,max=120"`
	WeightKg      *float64 `json:"weight_kg" validate:"omitempty,gt=0,lte=500"`
	HeightCm      *float64 `json:"height_cm" validate:"omitempty,gt=0,lte=300"`
	Goal          *string  `json:"goal"`
	ActivityLevel *string  `json:"activity_level"`
}

// UpdateProfile applies the given fields on top of the current profile.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.WeightKg != nil {
		p.WeightKg = *req.WeightKg
	}
	if req.HeightCm != nil {
		p.HeightCm = *req.HeightCm
	}
	if req.Goal != nil {
		if !validGoal(*req.Goal) {
			return nil, fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, *req.Goal)
		}
		p.Goal = *req.Goal
	}
	if req.ActivityLevel != nil {
		if !validActivity(*req.ActivityLevel) {
			return nil, fmt.Errorf("%w: unknown activity level %q", ErrInvalidProfile, *req.ActivityLevel)
		}
		p.ActivityLevel = *req.ActivityLevel
	}

	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) parseDate(v string) (time.Time, error) {
	if v == "" {
		return DateOnly(s.now()), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	return d, nil
}
