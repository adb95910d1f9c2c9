package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/embedding"
	"github.com/prona-platform/prona/internal/metrics"
)

// Service is the per-user vector memory: it embeds text, appends it to the
// user's index and answers nearest-neighbour queries.
type Service struct {
	registry *Registry
	embedder embedding.Embedder
	storage  Storage
}

// NewService creates a memory service over the given registry.
func NewService(registry *Registry, embedder embedding.Embedder) *Service {
	return &Service{
		registry: registry,
		embedder: embedder,
		storage:  registry.storage,
	}
}

// Add embeds texts and appends them with their payloads. Entries are durable
// when Add returns nil. Sequence ids continue from the current index length.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, texts []string, payloads []Payload) error {
	if len(texts) != len(payloads) {
		return fmt.Errorf("%w: %d texts, %d payloads", ErrLengthMismatch, len(texts), len(payloads))
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		metrics.EmbeddingFailuresTotal.Inc()
		return fmt.Errorf("embedding memory entries: %w", err)
	}
	if len(vectors) != len(texts) {
		metrics.EmbeddingFailuresTotal.Inc()
		return fmt.Errorf("%w: expected %d vectors, got %d", embedding.ErrUnavailable, len(texts), len(vectors))
	}
	for _, v := range vectors {
		embedding.Normalize(v)
	}

	h, err := s.registry.get(ctx, userID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	before := h.index.len()
	if err := h.index.add(vectors); err != nil {
		return err
	}
	h.payloads = append(h.payloads, payloads...)

	if err := s.storage.Save(ctx, userID, h.snapshot(), h.persisted); err != nil {
		// Keep memory in step with what is durable.
		h.index.truncate(before)
		h.payloads = h.payloads[:before]
		return fmt.Errorf("persisting memory index: %w", err)
	}
	h.persisted = h.index.len()

	metrics.MemoryEntriesAddedTotal.Add(float64(len(texts)))
	slog.Debug("memory: entries added", "user_id", userID, "added", len(texts), "total", h.persisted)
	return nil
}

// Search returns up to k entries most similar to query, best first.
// A blank query or an empty index returns no results without calling the embedder.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, query string, k int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []SearchResult{}, nil
	}

	h, err := s.registry.get(ctx, userID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	empty := h.index.len() == 0
	h.mu.Unlock()
	if empty {
		return []SearchResult{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		metrics.EmbeddingFailuresTotal.Inc()
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", embedding.ErrUnavailable, len(vectors))
	}
	q := embedding.Normalize(vectors[0])

	h.mu.Lock()
	defer h.mu.Unlock()

	hits, err := h.index.search(q, k)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{
			Payload:    h.payloads[hit.seq],
			Score:      hit.score,
			Rank:       i,
			SequenceID: hit.seq,
		}
	}
	metrics.MemorySearchesTotal.Inc()
	return results, nil
}

// AddInteraction stores one user message and the assistant reply as two entries.
func (s *Service) AddInteraction(ctx context.Context, userID uuid.UUID, userMessage, reply string, messageID *int64) error {
	return s.Add(ctx, userID,
		[]string{userMessage, reply},
		[]Payload{
			{Role: RoleUser, Text: userMessage, SourceMessageID: messageID},
			{Role: RoleAssistant, Text: reply, SourceMessageID: messageID},
		},
	)
}

// Stats reports the size of a user's index.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	h, err := s.registry.get(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Entries: h.index.len(), Dim: h.index.dim}, nil
}

// IsUnavailable reports whether err means the embedding provider could not serve.
func IsUnavailable(err error) bool {
	return errors.Is(err, embedding.ErrUnavailable)
}
