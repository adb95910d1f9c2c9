package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prona-platform/prona/internal/memory"
	"github.com/prona-platform/prona/internal/nutrition"
)

func TestSystemPrompt(t *testing.T) {
	p := nutrition.DefaultProfile(uuid.New())
	prompt := systemPrompt(p)

	assert.Contains(t, prompt, "25 years old")
	assert.Contains(t, prompt, "2635 kcal")
	assert.Contains(t, prompt, dataStart)
	assert.Contains(t, prompt, dataEnd)
}

func TestBuildMessages_Order(t *testing.T) {
	history := []memory.Exchange{
		{UserMessage: "a", Reply: "b"},
		{UserMessage: "c", Reply: strings.Repeat("x", 500)},
	}
	msgs := buildMessages(nutrition.DefaultProfile(uuid.New()), "", history, "son")

	require.Len(t, msgs, 6)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user", "assistant", "user"}, roles)
	assert.Len(t, msgs[4].Content, historyReplyRunes)
	assert.Equal(t, "son", msgs[5].Content)
}

func TestExtractData(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantItems int
		wantSlot  nutrition.MealSlot
		wantOK    bool
	}{
		{
			name:      "object",
			reply:     `Afiyet olsun! ---DATA_START--- {"food_name":"Elma","calories":52} ---DATA_END--- 🍎`,
			wantItems: 1,
			wantSlot:  nutrition.SlotSnack,
			wantOK:    true,
		},
		{
			name:      "list with slot",
			reply:     "---DATA_START---[{\"food_name\":\"Yumurta\",\"calories\":78,\"meal_time\":\"breakfast\"},{\"food_name\":\"Ekmek\"}]---DATA_END---",
			wantItems: 2,
			wantSlot:  nutrition.SlotBreakfast,
			wantOK:    true,
		},
		{
			name:      "fenced",
			reply:     "---DATA_START---\n```json\n{\"food_name\":\"Ayran\",\"calories\":\"38 kcal\",\"meal_time\":\"lunch\"}\n```\n---DATA_END---",
			wantItems: 1,
			wantSlot:  nutrition.SlotLunch,
			wantOK:    true,
		},
		{
			name:      "missing end marker",
			reply:     `---DATA_START---{"food_name":"Muz","calories":89}`,
			wantItems: 1,
			wantSlot:  nutrition.SlotSnack,
			wantOK:    true,
		},
		{name: "no block", reply: "Bugün çok iyisin!"},
		{name: "broken json", reply: `---DATA_START---{"food_name":---DATA_END---`},
		{name: "empty list", reply: `---DATA_START---[]---DATA_END---`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, slot, ok := extractData(tt.reply)
			assert.Equal(t, tt.wantOK, ok)
			assert.Len(t, items, tt.wantItems)
			if tt.wantOK {
				assert.Equal(t, tt.wantSlot, slot)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "çğı", truncateRunes("çğıöşü", 3))
	assert.Equal(t, "kısa", truncateRunes("kısa", 10))
}

func TestGroupByDay(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	long := strings.Repeat("a", 60)

	its := []Interaction{
		{ID: 4, Message: "sonra", CreatedAt: day1.Add(2 * time.Hour)},
		{ID: 3, Message: "öğle", CreatedAt: day2.Add(time.Hour)},
		{ID: 2, Message: long, CreatedAt: day1},
		{ID: 1, Message: "sabah", CreatedAt: day2},
	}

	got := GroupByDay(its)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-01-02", got[0].ID)
	assert.Equal(t, "sabah", got[0].Title)
	assert.Equal(t, 2, got[0].MessageCount)
	assert.Equal(t, day2.Add(time.Hour), got[0].LastUpdated)

	assert.Equal(t, "2024-01-01", got[1].Date)
	assert.Equal(t, strings.Repeat("a", 50)+"...", got[1].Title)

	assert.Empty(t, GroupByDay(nil))
}
