package nutrition

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidProfile = errors.New("invalid profile")
)

type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotDinner    MealSlot = "dinner"
	SlotSnack     MealSlot = "snack"
)

// ParseMealSlot maps free text onto a slot; anything unrecognized is a snack.
func ParseMealSlot(s string) MealSlot {
	switch slot := MealSlot(strings.ToLower(strings.TrimSpace(s))); slot {
	case SlotBreakfast, SlotLunch, SlotDinner, SlotSnack:
		return slot
	default:
		return SlotSnack
	}
}

const (
	defaultCategory    = "snack"
	defaultServingSize = "100g"
	maxFoodNameRunes   = 99
	aiMealNote         = "AI chat suggestion"
)

// Food is shared across users. Macro fields may be unknown.
type Food struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Calories    float64   `json:"calories"`
	Protein     *float64  `json:"protein"`
	Carbs       *float64  `json:"carbs"`
	Fat         *float64  `json:"fat"`
	Category    string    `json:"category"`
	ServingSize string    `json:"serving_size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Meal is one food eaten on a day. Calories is derived from the food at write time.
type Meal struct {
	ID        uuid.UUID `json:"id"`
	DayID     uuid.UUID `json:"day_id"`
	FoodID    uuid.UUID `json:"food_id"`
	Food      *Food     `json:"food,omitempty"`
	Quantity  float64   `json:"quantity"`
	Calories  float64   `json:"calories"`
	Slot      MealSlot  `json:"meal_time"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// DayAggregate holds a user's totals for one calendar date.
type DayAggregate struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Date          time.Time `json:"date"`
	TotalCalories float64   `json:"total_calories"`
	TotalProtein  float64   `json:"total_protein"`
	TotalCarbs    float64   `json:"total_carbs"`
	TotalFat      float64   `json:"total_fat"`
	Meals         []Meal    `json:"meals,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (d *DayAggregate) Totals() Totals {
	return Totals{Calories: d.TotalCalories, Protein: d.TotalProtein, Carbs: d.TotalCarbs, Fat: d.TotalFat}
}

func (d *DayAggregate) setTotals(t Totals) {
	d.TotalCalories, d.TotalProtein, d.TotalCarbs, d.TotalFat = t.Calories, t.Protein, t.Carbs, t.Fat
}

type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// MealLine is a meal quantity joined with its food's per-unit values.
type MealLine struct {
	Quantity float64
	Calories float64
	Protein  *float64
	Carbs    *float64
	Fat      *float64
}

// Descriptor is a coerced food description from the assistant or a client.
type Descriptor struct {
	Name     string  `json:"food_name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Quantity float64 `json:"quantity"`
}

// DateOnly strips the clock from t, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ptr(f float64) *float64 { return &f }
