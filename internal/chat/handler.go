package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/prona-platform/prona/internal/api"
	"github.com/prona-platform/prona/internal/auth"
	"github.com/prona-platform/prona/internal/llm"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	reply, err := h.svc.Chat(r.Context(), userID, req)
	if err != nil {
		var upstream *llm.UpstreamError
		switch {
		case errors.Is(err, ErrEmptyMessage):
			api.HandleError(w, api.NewValidationError(err.Error()))
		case errors.As(err, &upstream):
			slog.Warn("chat upstream failure", "status", upstream.Status, "user_id", userID)
			api.HandleError(w, api.NewBadGatewayError(upstream.Error()))
		default:
			slog.Error("chat", "error", err, "user_id", userID)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusOK, reply)
}

type historyResponse struct {
	Chats []Summary `json:"chats"`
	Total int       `json:"total"`
}

// History handles GET /chat/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	chats, err := h.svc.History(r.Context(), userID)
	if err != nil {
		slog.Error("listing chat history", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, historyResponse{Chats: chats, Total: len(chats)})
}

type dayResponse struct {
	ChatID   string        `json:"chat_id"`
	Messages []Interaction `json:"messages"`
}

// Day handles GET /chat/history/{chatID}, where chatID is a YYYY-MM-DD date.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	date, err := time.Parse(time.DateOnly, chatID)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("chat id must be a YYYY-MM-DD date"))
		return
	}

	msgs, err := h.svc.Day(r.Context(), userID, date)
	if err != nil {
		slog.Error("listing chat messages", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, dayResponse{ChatID: chatID, Messages: msgs})
}
