package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/auth"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/config"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/database"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/enhance"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/jobs"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/middleware"
	inats "github.com/HubEvolution/EvolutionHub-sub002/internal/nats"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/provider"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/quota"
	iredis "github.com/HubEvolution/EvolutionHub-sub002/internal/redis"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/server"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/storage"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/users"
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

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *inats.Client
	var events *inats.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		events = inats.NewPublisher(natsClient.JetStream())
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Quota
	checker := quota.NewChecker(quota.NewCounterStore(redisClient))

	// Blob storage
	blobStore := storage.NewStore(pool)
	fileHandler := storage.NewHandler(blobStore)

	// Inference provider: the real client in production with credentials,
	// the echo double everywhere else.
	var prov provider.Provider
	if cfg.IsProduction() && cfg.Provider.APIToken != "" {
		prov = provider.NewClient(cfg.Provider)
	} else {
		slog.Info("using echo provider", "env", cfg.Env)
		prov = provider.NewEcho()
	}

	// Enhancement
	enhanceSvc := enhance.NewService(cfg.Enhance, checker, blobStore, prov, events)
	enhanceHandler := enhance.NewHandler(enhanceSvc, checker)

	// Jobs
	jobRepo := jobs.NewRepository(pool)
	jobSvc := jobs.NewService(jobRepo, enhanceSvc, events)
	jobHandler := jobs.NewHandler(jobSvc)

	// Rate limiter for auth endpoints
	authLimiter := middleware.NewRateLimiter(redisClient, "auth", 10, time.Minute)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
		Register:   authHandler.Register,
		Login:      authHandler.Login,
		Refresh:    authHandler.Refresh,
		Logout:     authHandler.Logout,
		UpdatePlan: authHandler.UpdatePlan,

		Enhance: enhanceHandler.Enhance,
		Usage:   enhanceHandler.Usage,

		CreateJob: jobHandler.Create,
		GetJob:    jobHandler.Get,
		CancelJob: jobHandler.Cancel,

		ServeFile: fileHandler.Serve,

		AuthMiddleware:  auth.Middleware(authSvc),
		OptionalAuth:    auth.OptionalMiddleware(authSvc),
		OwnerMiddleware: owner.Middleware,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
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
