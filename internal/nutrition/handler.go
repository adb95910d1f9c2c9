package nutrition

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/prona-platform/prona/internal/api"
	"github.com/prona-platform/prona/internal/auth"
)

type Handler struct {
	svc      *Service
	pipeline *Pipeline
	validate *validator.Validate
}

func NewHandler(svc *Service, pipeline *Pipeline) *Handler {
	return &Handler{
		svc:      svc,
		pipeline: pipeline,
		validate: validator.New(),
	}
}

// SearchFoods handles GET /foods?q=&category=&limit=
func (h *Handler) SearchFoods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	foods, err := h.svc.SearchFoods(r.Context(), q.Get("q"), q.Get("category"), limit)
	if err != nil {
		slog.Error("searching foods", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, foods)
}

func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	day, err := h.svc.GetDay(r.Context(), userID, date)
	if err != nil {
		slog.Error("getting day", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, day)
}

func (h *Handler) RecomputeDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	day, err := h.svc.RecomputeDay(r.Context(), userID, date)
	if err != nil {
		h.handleServiceError(w, "recomputing day", err)
		return
	}
	api.JSON(w, http.StatusOK, day)
}

func (h *Handler) CreateMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateMealRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	meal, err := h.svc.CreateMeal(r.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(w, "creating meal", err)
		return
	}
	api.JSON(w, http.StatusCreated, meal)
}

func (h *Handler) UpdateMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	mealID, err := uuid.Parse(chi.URLParam(r, "mealID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid meal ID"))
		return
	}

	var req UpdateMealRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	meal, err := h.svc.UpdateMeal(r.Context(), userID, mealID, &req)
	if err != nil {
		h.handleServiceError(w, "updating meal", err)
		return
	}
	api.JSON(w, http.StatusOK, meal)
}

func (h *Handler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	mealID, err := uuid.Parse(chi.URLParam(r, "mealID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid meal ID"))
		return
	}

	if err := h.svc.DeleteMeal(r.Context(), userID, mealID); err != nil {
		h.handleServiceError(w, "deleting meal", err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "meal deleted successfully")
}

// IngestMeals handles POST /meals/ai. The body is either a single descriptor
// ({"food_name": ..., "calories": ..., "meal_time": ..., "date": ...}) or
// {"items": <descriptor | [descriptor] | "name">, "meal_time": ..., "date": ...},
// or a bare [descriptor] list.
// An unparseable date falls back to today.
func (h *Handler) IngestMeals(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var payload json.RawMessage
	if err := api.DecodeJSON(w, r, &payload); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	// A bare array or string carries items only; slot and date take defaults.
	raw := bytes.TrimSpace(payload)
	var body map[string]json.RawMessage
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &body); err != nil {
			api.HandleError(w, api.ErrBadRequest)
			return
		}
		if items, ok := body["items"]; ok {
			raw = items
		}
	}
	items, err := ParseDescriptors(raw)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	var slot, dateStr string
	_ = json.Unmarshal(body["meal_time"], &slot)
	_ = json.Unmarshal(body["date"], &dateStr)
	var date time.Time
	if d, err := time.Parse(time.DateOnly, dateStr); err == nil {
		date = d
	}

	res, err := h.pipeline.Ingest(r.Context(), userID, items, MealSlot(slot), date)
	if err != nil {
		slog.Error("ingesting meals", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	status := http.StatusCreated
	if len(res.Meals) == 0 {
		status = http.StatusOK
	}
	api.JSON(w, status, res)
}

func (h *Handler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	days, err := h.svc.WeeklyReport(r.Context(), userID)
	if err != nil {
		slog.Error("weekly report", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, days)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	d, err := h.svc.Dashboard(r.Context(), userID)
	if err != nil {
		slog.Error("dashboard", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, d)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	p, err := h.svc.GetProfile(r.Context(), userID)
	if err != nil {
		slog.Error("getting profile", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, profileResponse(p))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	p, err := h.svc.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(w, "updating profile", err)
		return
	}
	api.JSON(w, http.StatusOK, profileResponse(p))
}

type profileView struct {
	*Profile
	BMI       float64 `json:"bmi"`
	DailyNeed float64 `json:"daily_need"`
	GoalLabel string  `json:"goal_label"`
}

func profileResponse(p *Profile) profileView {
	return profileView{Profile: p, BMI: p.BMI(), DailyNeed: p.DailyCalorieNeed(), GoalLabel: p.GoalLabel()}
}

func (h *Handler) handleServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.HandleError(w, api.ErrNotFound)
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidProfile):
		api.HandleError(w, api.NewValidationError(err.Error()))
	default:
		slog.Error(op, "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

// dateParam reads {date} as YYYY-MM-DD or "today".
func dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := chi.URLParam(r, "date")
	if v == "" || v == "today" {
		return DateOnly(time.Now()), true
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("date must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return d, true
}
