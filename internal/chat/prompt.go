package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prona-platform/prona/internal/llm"
	"github.com/prona-platform/prona/internal/memory"
	"github.com/prona-platform/prona/internal/nutrition"
)

const (
	dataStart = "---DATA_START---"
	dataEnd   = "---DATA_END---"

	historyUserRunes  = 200
	historyReplyRunes = 300

	notConfiguredReply = "AI configuration is missing."
)

func systemPrompt(p *nutrition.Profile) string {
	var b strings.Builder
	b.WriteString("You are Prona AI, a friendly and motivating dietitian. ")
	b.WriteString("Keep answers short, use emojis, and reply in the user's language.\n\n")
	fmt.Fprintf(&b, "User summary: %d years old, goal: %s, daily limit: %.0f kcal.\n\n",
		p.Age, p.GoalLabel(), p.DailyCalorieNeed())
	b.WriteString("If the user says they ate something:\n")
	b.WriteString("1. Estimate its calories and macros.\n")
	b.WriteString("2. Append the data as JSON using numbers only, between the markers below. ")
	b.WriteString("Use a list for several foods and set meal_time to breakfast, lunch, dinner or snack when known.\n")
	b.WriteString(dataStart)
	b.WriteString(`{"food_name": "Food name", "calories": 120.5, "protein": 10, "carbs": 15, "fat": 5, "quantity": 1, "meal_time": "snack"}`)
	b.WriteString(dataEnd)
	return b.String()
}

// buildMessages lays out the prompt: system, retrieved memory, recent
// exchanges, then the new message.
func buildMessages(profile *nutrition.Profile, memoryContext string, history []memory.Exchange, message string) []llm.Message {
	msgs := make([]llm.Message, 0, 3+2*len(history))
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt(profile)})
	if memoryContext != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: "History:\n" + memoryContext})
	}
	for _, h := range history {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: truncateRunes(h.UserMessage, historyUserRunes)},
			llm.Message{Role: "assistant", Content: truncateRunes(h.Reply, historyReplyRunes)},
		)
	}
	return append(msgs, llm.Message{Role: "user", Content: message})
}

// extractData pulls the food descriptors out of a reply's data block. ok is
// false when there is no block or it holds no descriptors.
func extractData(reply string) (items []nutrition.Descriptor, slot nutrition.MealSlot, ok bool) {
	start := strings.Index(reply, dataStart)
	if start < 0 {
		return nil, "", false
	}
	body := reply[start+len(dataStart):]
	if end := strings.Index(body, dataEnd); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	items, err := nutrition.ParseDescriptors(json.RawMessage(body))
	if err != nil || len(items) == 0 {
		return nil, "", false
	}
	return items, readSlot(body), true
}

// readSlot finds meal_time on the block's object or first list element.
func readSlot(body string) nutrition.MealSlot {
	var probe struct {
		MealTime string `json:"meal_time"`
	}
	if json.Unmarshal([]byte(body), &probe) == nil && probe.MealTime != "" {
		return nutrition.ParseMealSlot(probe.MealTime)
	}
	var list []struct {
		MealTime string `json:"meal_time"`
	}
	if json.Unmarshal([]byte(body), &list) == nil && len(list) > 0 {
		return nutrition.ParseMealSlot(list[0].MealTime)
	}
	return nutrition.SlotSnack
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
