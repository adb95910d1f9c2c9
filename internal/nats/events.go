package nats

import (
	"time"

	"github.com/google/uuid"
)

// StreamEvents holds every domain event.
const StreamEvents = "PRONA_EVENTS"

// Subject constants.
const (
	SubjectDayTotals   = "prona.events.day_totals"
	SubjectInteraction = "prona.events.interaction"
)

// DayTotalsUpdated is published after a day's totals are recomputed and committed.
type DayTotalsUpdated struct {
	UserID    uuid.UUID `json:"user_id"`
	DayID     uuid.UUID `json:"day_id"`
	Date      string    `json:"date"`
	Calories  float64   `json:"total_calories"`
	Protein   float64   `json:"total_protein"`
	Carbs     float64   `json:"total_carbs"`
	Fat       float64   `json:"total_fat"`
	Source    string    `json:"source"` // ai, manual, recompute
	Timestamp time.Time `json:"timestamp"`
}

// InteractionRecorded is published once a chat exchange is stored.
type InteractionRecorded struct {
	InteractionID   int64     `json:"interaction_id"`
	UserID          uuid.UUID `json:"user_id"`
	InteractionType string    `json:"interaction_type"`
	MealsLogged     int       `json:"meals_logged"`
	MemoryDegraded  bool      `json:"memory_degraded"`
	Timestamp       time.Time `json:"timestamp"`
}
