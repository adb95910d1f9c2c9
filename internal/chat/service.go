package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/llm"
	"github.com/prona-platform/prona/internal/memory"
	"github.com/prona-platform/prona/internal/metrics"
	pronanats "github.com/prona-platform/prona/internal/nats"
	"github.com/prona-platform/prona/internal/nutrition"
)

type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.CompleteOptions) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, userID uuid.UUID, query string) memory.Retrieval
}

type MemoryWriter interface {
	AddInteraction(ctx context.Context, userID uuid.UUID, userMessage, reply string, messageID *int64) error
}

type ShortTerm interface {
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]memory.Exchange, error)
	Append(ctx context.Context, userID uuid.UUID, entry memory.Exchange, maxItems int, ttl time.Duration) error
}

type MealIngester interface {
	Ingest(ctx context.Context, userID uuid.UUID, items []nutrition.Descriptor, slot nutrition.MealSlot, date time.Time) (*nutrition.IngestResult, error)
}

type ProfileSource interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*nutrition.Profile, error)
}

type EventPublisher interface {
	PublishInteraction(ctx context.Context, evt pronanats.InteractionRecorded) error
}

type Config struct {
	HistoryTurns  int
	MaxTokens     int
	Temperature   float64
	AutoLogMeals  bool
	ShortTermMsgs int
	ShortTermTTL  time.Duration
}

// Deps are the collaborators of Service. ShortTerm, Ingester and Events may
// be nil.
type Deps struct {
	Repo      Repository
	LLM       Completer
	Retriever Retriever
	Memory    MemoryWriter
	ShortTerm ShortTerm
	Ingester  MealIngester
	Profiles  ProfileSource
	Events    EventPublisher
}

// Service runs the chat flow: recall, prompt, complete, store, learn.
type Service struct {
	Deps
	cfg Config
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.ShortTermMsgs < cfg.HistoryTurns {
		cfg.ShortTermMsgs = cfg.HistoryTurns
	}
	if cfg.ShortTermTTL <= 0 {
		cfg.ShortTermTTL = 24 * time.Hour
	}
	return &Service{Deps: deps, cfg: cfg}
}

// Chat answers one user message. Only a failing language model or a failing
// interaction store fail the call; memory, meal logging and events degrade
// with a log line.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, req ChatRequest) (*ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	interactionType := req.InteractionType
	if interactionType == "" {
		interactionType = TypeGeneral
	}

	profile, err := s.Profiles.GetProfile(ctx, userID)
	if err != nil {
		slog.Warn("chat: loading profile, using defaults", "error", err, "user_id", userID)
		profile = nutrition.DefaultProfile(userID)
	}

	recall := s.Retriever.Retrieve(ctx, userID, message)
	history := s.history(ctx, userID)
	msgs := buildMessages(profile, recall.Context, history, message)

	reply, err := s.LLM.Complete(ctx, msgs, llm.CompleteOptions{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		metrics.LLMRequestsTotal.WithLabelValues("unconfigured").Inc()
		reply = notConfiguredReply
	case err != nil:
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("completing chat: %w", err)
	default:
		metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()
	}

	it := &Interaction{
		UserID:          userID,
		Message:         message,
		Response:        reply,
		InteractionType: interactionType,
	}
	if err := s.Repo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("saving interaction: %w", err)
	}

	out := &ChatReply{
		InteractionID:  it.ID,
		Message:        message,
		Response:       reply,
		MemoryDegraded: recall.Degraded,
		MemoryReason:   recall.Reason,
	}

	if items, slot, ok := extractData(reply); ok {
		out.Suggestion = items
		if s.cfg.AutoLogMeals && s.Ingester != nil {
			res, err := s.Ingester.Ingest(ctx, userID, items, slot, time.Time{})
			if err != nil {
				slog.Warn("chat: logging suggested meals", "error", err, "user_id", userID)
			} else {
				out.Logged = res
			}
		}
	}

	if err := s.Memory.AddInteraction(ctx, userID, message, reply, &it.ID); err != nil {
		slog.Warn("chat: storing interaction in memory", "error", err, "user_id", userID, "interaction_id", it.ID)
	}

	if s.ShortTerm != nil {
		ex := memory.Exchange{UserMessage: message, Reply: reply, Timestamp: it.CreatedAt}
		if err := s.ShortTerm.Append(ctx, userID, ex, s.cfg.ShortTermMsgs, s.cfg.ShortTermTTL); err != nil {
			slog.Warn("chat: appending short-term history", "error", err, "user_id", userID)
		}
	}

	s.publish(ctx, it, out)
	return out, nil
}

// history returns the last exchanges for the prompt. The Redis window is
// tried first; the interaction table covers a cold or failing cache.
func (s *Service) history(ctx context.Context, userID uuid.UUID) []memory.Exchange {
	if s.ShortTerm != nil {
		recent, err := s.ShortTerm.Recent(ctx, userID, s.cfg.HistoryTurns)
		if err != nil {
			slog.Warn("chat: reading short-term history", "error", err, "user_id", userID)
		} else if len(recent) > 0 {
			return recent
		}
	}

	its, err := s.Repo.Recent(ctx, userID, s.cfg.HistoryTurns)
	if err != nil {
		slog.Warn("chat: reading stored history", "error", err, "user_id", userID)
		return nil
	}
	return toExchanges(its)
}

func (s *Service) publish(ctx context.Context, it *Interaction, out *ChatReply) {
	if s.Events == nil {
		return
	}
	logged := 0
	if out.Logged != nil {
		logged = len(out.Logged.Meals)
	}
	evt := pronanats.InteractionRecorded{
		InteractionID:   it.ID,
		UserID:          it.UserID,
		InteractionType: it.InteractionType,
		MealsLogged:     logged,
		MemoryDegraded:  out.MemoryDegraded,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.Events.PublishInteraction(ctx, evt); err != nil {
		slog.Warn("chat: publishing interaction", "error", err, "interaction_id", it.ID)
	}
}

// History lists the user's conversations grouped by day.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]Summary, error) {
	its, err := s.Repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return GroupByDay(its), nil
}

// Day returns one day of conversation, oldest first.
func (s *Service) Day(ctx context.Context, userID uuid.UUID, date time.Time) ([]Interaction, error) {
	return s.Repo.ListDay(ctx, userID, date)
}
