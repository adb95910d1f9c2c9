package chat

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/memory"
	"github.com/prona-platform/prona/internal/nutrition"
)

var ErrEmptyMessage = errors.New("message is required")

const (
	TypeGeneral         = "general"
	TypeNutritionAdvice = "nutrition_advice"
	TypeMealPlanning    = "meal_planning"
	TypeMotivation      = "motivation"
	TypeQuestion        = "question"
)

// Interaction is one stored user message and the assistant's reply.
type Interaction struct {
	ID              int64     `json:"id"`
	UserID          uuid.UUID `json:"-"`
	Message         string    `json:"message"`
	Response        string    `json:"response"`
	InteractionType string    `json:"interaction_type"`
	CreatedAt       time.Time `json:"created_at"`
}

type ChatRequest struct {
	Message         string `json:"message" validate:"required,max=4000"`
	InteractionType string `json:"interaction_type" validate:"omitempty,oneof=general nutrition_advice meal_planning motivation question"`
}

// ChatReply is what the user gets back for one message.
type ChatReply struct {
	InteractionID  int64                   `json:"interaction_id"`
	Message        string                  `json:"message"`
	Response       string                  `json:"response"`
	Suggestion     []nutrition.Descriptor  `json:"suggestion,omitempty"`
	Logged         *nutrition.IngestResult `json:"logged,omitempty"`
	MemoryDegraded bool                    `json:"memory_degraded"`
	MemoryReason   string                  `json:"memory_reason,omitempty"`
}

// Summary describes one day of conversation.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Date         string    `json:"date"`
	MessageCount int       `json:"message_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

const titleRunes = 50

// GroupByDay folds interactions into one summary per UTC day, most recently
// active first. The title comes from the day's first message.
func GroupByDay(interactions []Interaction) []Summary {
	type group struct {
		first, last Interaction
		count       int
	}
	groups := map[string]*group{}
	for _, it := range interactions {
		key := it.CreatedAt.UTC().Format(time.DateOnly)
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{first: it, last: it, count: 1}
			continue
		}
		g.count++
		if it.CreatedAt.Before(g.first.CreatedAt) {
			g.first = it
		}
		if it.CreatedAt.After(g.last.CreatedAt) {
			g.last = it
		}
	}

	out := make([]Summary, 0, len(groups))
	for key, g := range groups {
		title := g.first.Message
		if r := []rune(title); len(r) > titleRunes {
			title = string(r[:titleRunes]) + "..."
		}
		out = append(out, Summary{
			ID:           key,
			Title:        title,
			Date:         key,
			MessageCount: g.count,
			LastUpdated:  g.last.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out
}

func toExchanges(interactions []Interaction) []memory.Exchange {
	out := make([]memory.Exchange, 0, len(interactions))
	for _, it := range interactions {
		out = append(out, memory.Exchange{UserMessage: it.Message, Reply: it.Response, Timestamp: it.CreatedAt})
	}
	return out
}
