package nutrition

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProfile_Defaults(t *testing.T) {
	p := DefaultProfile(uuid.New())

	assert.Equal(t, 24.2, p.BMI())
	// (88.362 + 937.79 + 815.83 - 141.925) * 1.55 = 2635.08...
	assert.Equal(t, 2635.0, p.DailyCalorieNeed())
	assert.Equal(t, "Healthy eating", p.GoalLabel())
}

func TestProfile_ActivityLevels(t *testing.T) {
	p := DefaultProfile(uuid.New())
	bmr := 88.362 + 13.397*70 + 4.799*170 - 5.677*25

	tests := map[string]float64{
		"sedentary":   1.2,
		"light":       1.375,
		"moderate":    1.55,
		"active":      1.725,
		"very_active": 1.9,
		"unknown":     1.55,
	}
	for level, mult := range tests {
		p.ActivityLevel = level
		assert.InDelta(t, bmr*mult, p.DailyCalorieNeed(), 0.5, level)
	}
}

func TestProfile_BMIWithoutHeight(t *testing.T) {
	p := &Profile{WeightKg: 80}
	assert.Equal(t, 0.0, p.BMI())
}

func TestProfile_Summary(t *testing.T) {
	p := DefaultProfile(uuid.New())
	p.Goal = GoalLoseWeight

	assert.Equal(t, "Age: 25, Weight: 70kg, Height: 170cm, Goal: Lose weight, Daily need: 2635 kcal", p.Summary())
}
