package server

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prona-platform/prona/internal/api"
	mw "github.com/prona-platform/prona/internal/middleware"
)

// HandlerSet holds the domain handlers wired in main.go.
type HandlerSet struct {
	// Foods and meals
	SearchFoods  http.HandlerFunc
	CreateMeal   http.HandlerFunc
	IngestMeals  http.HandlerFunc
	UpdateMeal   http.HandlerFunc
	DeleteMeal   http.HandlerFunc
	GetDay       http.HandlerFunc
	RecomputeDay http.HandlerFunc

	// Reports
	WeeklyReport http.HandlerFunc
	Dashboard    http.HandlerFunc

	// Profile
	GetProfile    http.HandlerFunc
	UpdateProfile http.HandlerFunc

	// Chat
	Chat        http.HandlerFunc
	ChatHistory http.HandlerFunc
	ChatDay     http.HandlerFunc

	// Memory inspection
	SearchMemory http.HandlerFunc
	MemoryStats  http.HandlerFunc

	AuthMiddleware func(http.Handler) http.Handler
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	ChatRateLimiter    func(http.Handler) http.Handler

	// Required checks turn readiness to 503 when they fail; optional ones
	// only mark the dependency as degraded.
	Required map[string]HealthCheck
	Optional map[string]HealthCheck
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	ready := readinessHandler(cfg.Required, cfg.Optional)
	r.Get("/health/ready", ready)
	r.Get("/health", ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/foods", h.SearchFoods)

		r.Route("/meals", func(r chi.Router) {
			r.Post("/", h.CreateMeal)
			r.Post("/ai", h.IngestMeals)
			r.Put("/{mealID}", h.UpdateMeal)
			r.Delete("/{mealID}", h.DeleteMeal)
		})

		r.Route("/days/{date}", func(r chi.Router) {
			r.Get("/", h.GetDay)
			r.Post("/recompute", h.RecomputeDay)
		})

		r.Get("/reports/weekly", h.WeeklyReport)
		r.Get("/dashboard", h.Dashboard)

		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)

		r.Route("/chat", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.ChatRateLimiter != nil {
					r.Use(cfg.ChatRateLimiter)
				}
				r.Post("/", h.Chat)
			})
			r.Get("/history", h.ChatHistory)
			r.Get("/history/{chatID}", h.ChatDay)
		})

		r.Route("/memory", func(r chi.Router) {
			r.Get("/search", h.SearchMemory)
			r.Get("/stats", h.MemoryStats)
		})
	})

	return r
}

func readinessHandler(required, optional map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for _, name := range sortedNames(required) {
			health[name] = "healthy"
			if check := required[name]; check == nil || check(r.Context()) != nil {
				health[name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		for _, name := range sortedNames(optional) {
			health[name] = "healthy"
			if optional[name] == nil {
				health[name] = "not configured"
				continue
			}
			if err := optional[name](r.Context()); err != nil {
				health[name] = "unhealthy"
				health["status"] = "degraded"
			}
		}

		api.JSON(w, status, health)
	}
}

func sortedNames(checks map[string]HealthCheck) []string {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
