package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/metrics"
)

// BuildContext renders results as "<role>: <text>" lines in the given order.
// When the result is longer than limitChars runes only the trailing limitChars
// are kept, which favours the lowest-ranked entries. limitChars <= 0 disables
// truncation.
func BuildContext(results []SearchResult, limitChars int) string {
	if len(results) == 0 {
		return ""
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = string(r.Payload.Role) + ": " + r.Payload.Text
	}
	out := strings.Join(lines, "\n")

	if limitChars <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) <= limitChars {
		return out
	}
	return string(runes[len(runes)-limitChars:])
}

// SortChronological orders results by sequence id, oldest first.
func SortChronological(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].SequenceID < results[j].SequenceID })
}

// Searcher is the subset of Service used for retrieval.
type Searcher interface {
	Search(ctx context.Context, userID uuid.UUID, query string, k int) ([]SearchResult, error)
}

// Degradation reasons reported by Retriever.
const (
	ReasonEmbeddingUnavailable = "embedding_unavailable"
	ReasonSearchFailed         = "search_failed"
)

// Retrieval is the outcome of a context lookup. Degraded is set when memory
// could not be consulted; Context is then empty and Reason says why.
type Retrieval struct {
	Context  string         `json:"context"`
	Results  []SearchResult `json:"results"`
	Degraded bool           `json:"degraded"`
	Reason   string         `json:"reason,omitempty"`
}

// Retriever turns a query into prompt context and never fails the caller.
type Retriever struct {
	searcher   Searcher
	k          int
	limitChars int
}

func NewRetriever(searcher Searcher, k, limitChars int) *Retriever {
	return &Retriever{searcher: searcher, k: k, limitChars: limitChars}
}

func (r *Retriever) Retrieve(ctx context.Context, userID uuid.UUID, query string) Retrieval {
	results, err := r.searcher.Search(ctx, userID, query, r.k)
	if err != nil {
		reason := ReasonSearchFailed
		if IsUnavailable(err) {
			reason = ReasonEmbeddingUnavailable
		}
		metrics.RetrievalDegradedTotal.WithLabelValues(reason).Inc()
		slog.Warn("memory: retrieval degraded", "user_id", userID, "reason", reason, "error", err)
		return Retrieval{Results: []SearchResult{}, Degraded: true, Reason: reason}
	}
	return Retrieval{
		Context: BuildContext(results, r.limitChars),
		Results: results,
	}
}
