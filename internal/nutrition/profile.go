package nutrition

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	GoalLoseWeight    = "lose_weight"
	GoalGainWeight    = "gain_weight"
	GoalHealthyEating = "healthy_eating"
	GoalAthlete       = "athlete"
	GoalMaintain      = "maintain"
)

var goalLabels = map[string]string{
	GoalLoseWeight:    "Lose weight",
	GoalGainWeight:    "Gain weight",
	GoalHealthyEating: "Healthy eating",
	GoalAthlete:       "Athletic performance",
	GoalMaintain:      "Maintain weight",
}

var activityMultipliers = map[string]float64{
	"sedentary":   1.2,
	"light":       1.375,
	"moderate":    1.55,
	"active":      1.725,
	"very_active": 1.9,
}

// Profile holds the body measurements used for calorie targets.
type Profile struct {
	UserID        uuid.UUID `json:"user_id"`
	Age           int       `json:"age"`
	WeightKg      float64   `json:"weight_kg"`
	HeightCm      float64   `json:"height_cm"`
	Goal          string    `json:"goal"`
	ActivityLevel string    `json:"activity_level"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultProfile is used for users who never saved one.
func DefaultProfile(userID uuid.UUID) *Profile {
	return &Profile{
		UserID:        userID,
		Age:           25,
		WeightKg:      70,
		HeightCm:      170,
		Goal:          GoalHealthyEating,
		ActivityLevel: "moderate",
	}
}

// BMI is weight over height in metres squared, one decimal.
func (p *Profile) BMI() float64 {
	if p.HeightCm <= 0 {
		return 0
	}
	h := p.HeightCm / 100
	return math.Round(p.WeightKg/(h*h)*10) / 10
}

// DailyCalorieNeed applies the Harris-Benedict BMR to the activity multiplier.
func (p *Profile) DailyCalorieNeed() float64 {
	bmr := 88.362 + 13.397*p.WeightKg + 4.799*p.HeightCm - 5.677*float64(p.Age)
	mult, ok := activityMultipliers[p.ActivityLevel]
	if !ok {
		mult = activityMultipliers["moderate"]
	}
	return math.RoundToEven(bmr * mult)
}

func (p *Profile) GoalLabel() string {
	if l, ok := goalLabels[p.Goal]; ok {
		return l
	}
	return p.Goal
}

// Summary is a one-line description for prompts.
func (p *Profile) Summary() string {
	return fmt.Sprintf("Age: %d, Weight: %gkg, Height: %gcm, Goal: %s, Daily need: %.0f kcal",
		p.Age, p.WeightKg, p.HeightCm, p.GoalLabel(), p.DailyCalorieNeed())
}

func validGoal(g string) bool {
	_, ok := goalLabels[g]
	return ok
}

func validActivity(a string) bool {
	_, ok := activityMultipliers[a]
	return ok
}
