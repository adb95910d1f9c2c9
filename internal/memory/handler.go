package memory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prona-platform/prona/internal/api"
	"github.com/prona-platform/prona/internal/auth"
)

// Handler exposes a user's memory for inspection.
type Handler struct {
	svc *Service
	cfg Config
}

// NewHandler creates a new memory handler.
func NewHandler(svc *Service, cfg Config) *Handler {
	return &Handler{svc: svc, cfg: cfg.WithDefaults()}
}

type searchResponse struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Context  string         `json:"context"`
	Degraded bool           `json:"degraded"`
	Reason   string         `json:"reason,omitempty"`
}

// Search runs a similarity query over the caller's memory: GET ?q=...&k=5
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	query := r.URL.Query().Get("q")
	k := h.cfg.SearchK
	if ks := r.URL.Query().Get("k"); ks != "" {
		v, err := strconv.Atoi(ks)
		if err != nil || v < 1 || v > 50 {
			api.HandleError(w, api.NewBadRequestError("k must be between 1 and 50"))
			return
		}
		k = v
	}

	results, err := h.svc.Search(r.Context(), userID, query, k)
	if err != nil {
		if IsUnavailable(err) {
			api.JSON(w, http.StatusOK, searchResponse{
				Query: query, Results: []SearchResult{}, Degraded: true, Reason: ReasonEmbeddingUnavailable,
			})
			return
		}
		slog.Error("searching memory", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Results: results,
		Context: BuildContext(results, h.cfg.ContextLimit),
	})
}

// Stats returns the size of the caller's memory index.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		slog.Error("memory stats", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, stats)
}
