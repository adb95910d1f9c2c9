package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prona-platform/prona/internal/auth"
	"github.com/prona-platform/prona/internal/chat"
	"github.com/prona-platform/prona/internal/config"
	"github.com/prona-platform/prona/internal/database"
	"github.com/prona-platform/prona/internal/embedding"
	"github.com/prona-platform/prona/internal/llm"
	"github.com/prona-platform/prona/internal/memory"
	mw "github.com/prona-platform/prona/internal/middleware"
	pronanats "github.com/prona-platform/prona/internal/nats"
	"github.com/prona-platform/prona/internal/nutrition"
	iredis "github.com/prona-platform/prona/internal/redis"
	"github.com/prona-platform/prona/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var (
		natsClient  *pronanats.Client
		dayEvents   nutrition.EventPublisher
		interEvents chat.EventPublisher
	)
	if cfg.NATS.URL != "" {
		natsClient, err = pronanats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()

		publisher := pronanats.NewPublisher(natsClient.JetStream())
		dayEvents = publisher
		interEvents = publisher
	} else {
		slog.Info("NATS_URL is empty, domain events are disabled")
	}

	// Memory
	storage, err := memory.OpenStorage(cfg.Memory.Backend, cfg.Memory.IndexDir, pool)
	if err != nil {
		slog.Error("creating memory storage", "error", err)
		os.Exit(1)
	}
	slog.Info("memory storage ready", "backend", cfg.Memory.Backend)
	embedder := embedding.NewOpenAIEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey,
		cfg.Embedding.Model, cfg.Embedding.Dims, cfg.Embedding.Timeout)
	memoryCfg := memory.Config{
		SearchK:       cfg.Memory.SearchK,
		ContextLimit:  cfg.Memory.ContextLimit,
		ShortTermMsgs: cfg.Memory.ShortTermMsgs,
		ShortTermTTL:  cfg.Memory.ShortTermTTL,
	}.WithDefaults()
	memorySvc := memory.NewService(memory.NewRegistry(storage), embedder)
	retriever := memory.NewRetriever(memorySvc, memoryCfg.SearchK, memoryCfg.ContextLimit)
	memoryHandler := memory.NewHandler(memorySvc, memoryCfg)

	// Nutrition
	store := nutrition.NewPostgresStore(pool)
	nutritionSvc := nutrition.NewService(store, dayEvents)
	pipeline := nutrition.NewPipeline(store, dayEvents)
	nutritionHandler := nutrition.NewHandler(nutritionSvc, pipeline)

	// Chat
	chatSvc := chat.NewService(chat.Deps{
		Repo:      chat.NewPostgresRepository(pool),
		LLM:       llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout),
		Retriever: retriever,
		Memory:    memorySvc,
		ShortTerm: memory.NewShortTermStore(redisClient),
		Ingester:  pipeline,
		Profiles:  nutritionSvc,
		Events:    interEvents,
	}, chat.Config{
		HistoryTurns:  cfg.Chat.HistoryTurns,
		MaxTokens:     cfg.Chat.MaxTokens,
		Temperature:   cfg.Chat.Temperature,
		AutoLogMeals:  cfg.Chat.AutoLogMeals,
		ShortTermMsgs: memoryCfg.ShortTermMsgs,
		ShortTermTTL:  memoryCfg.ShortTermTTL,
	})
	chatHandler := chat.NewHandler(chatSvc)

	// Rate limiting
	chatLimiter := mw.NewRateLimiter(redisClient, "chat",
		cfg.RateLimit.ChatRequests, cfg.RateLimit.ChatWindow, mw.KeyByUser)

	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret)

	var natsCheck server.HealthCheck
	if natsClient != nil {
		natsCheck = func(context.Context) error {
			if !natsClient.Healthy() {
				return pronanats.ErrDisconnected
			}
			return nil
		}
	}

	router := server.NewRouter(server.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		ChatRateLimiter:    chatLimiter.Middleware,
		Required: map[string]server.HealthCheck{
			"database": func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
		},
		Optional: map[string]server.HealthCheck{
			"redis": func(ctx context.Context) error { return iredis.HealthCheck(ctx, redisClient) },
			"nats":  natsCheck,
		},
	}, server.HandlerSet{
		SearchFoods:  nutritionHandler.SearchFoods,
		CreateMeal:   nutritionHandler.CreateMeal,
		IngestMeals:  nutritionHandler.IngestMeals,
		UpdateMeal:   nutritionHandler.UpdateMeal,
		DeleteMeal:   nutritionHandler.DeleteMeal,
		GetDay:       nutritionHandler.GetDay,
		RecomputeDay: nutritionHandler.RecomputeDay,

		WeeklyReport: nutritionHandler.WeeklyReport,
		Dashboard:    nutritionHandler.Dashboard,

		GetProfile:    nutritionHandler.GetProfile,
		UpdateProfile: nutritionHandler.UpdateProfile,

		Chat:        chatHandler.Chat,
		ChatHistory: chatHandler.History,
		ChatDay:     chatHandler.Day,

		SearchMemory: memoryHandler.Search,
		MemoryStats:  memoryHandler.Stats,

		AuthMiddleware: auth.Middleware(jwtManager),
	})

	srv := server.New(cfg.Server, router)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
