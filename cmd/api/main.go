package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead-manager-backend/internal/agents"
	"lead-manager-backend/internal/auth"
	"lead-manager-backend/internal/cache"
	"lead-manager-backend/internal/config"
	"lead-manager-backend/internal/crm"
	"lead-manager-backend/internal/db"
	"lead-manager-backend/internal/dispatch"
	"lead-manager-backend/internal/history"
	"lead-manager-backend/internal/leads"
	"lead-manager-backend/internal/middleware"
	"lead-manager-backend/internal/products"
	"lead-manager-backend/internal/users"
	"lead-manager-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "lead-manager-backend",
		}
	}

	gateway := crm.NewBitrixClient(cfg.CRMWebhookURL, time.Duration(cfg.CRMTimeoutSeconds)*time.Second)
	if cfg.CRMWebhookURL == "" {
		logger.Warn("crm webhook not configured, sends will fail")
	} else if gateway.CheckConnection(ctx) {
		logger.Info("crm webhook reachable")
	} else {
		logger.Warn("crm webhook unreachable at startup")
	}

	val := validation.New()
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	agentsRepo := agents.NewRepository(cols.Agents)
	agentsService := agents.NewService(agentsRepo, cfg.Timezone)
	agentsHandler := agents.NewHandler(agentsService, val, logger)

	productsRepo := products.NewRepository(cols.Products)
	productsService := products.NewService(productsRepo, cfg.Timezone)
	productsHandler := products.NewHandler(productsService, val, logger)

	leadsRepo := leads.NewRepository(cols.Leads)
	batchesRepo := leads.NewBatchRepository(cols.Batches)
	historyRepo := history.NewRepository(cols.History)
	leadsService := leads.NewService(leadsRepo, batchesRepo, productsRepo, historyRepo, cacheStore, cacheTTL, cfg.Timezone)
	leadsHandler := leads.NewHandler(leadsService, logger)

	dispatchRepo := dispatch.NewRepository(cols.Dispatches)
	dispatchService := dispatch.NewService(dispatchRepo, leadsRepo, batchesRepo, productsRepo, agentsRepo, historyRepo, gateway, cacheStore, cfg.Timezone)
	dispatchHandler := dispatch.NewHandler(dispatchService, logger)

	usersRepo := users.NewRepository(cols.Users)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(usersService, jwtManager, val, logger, cfg.CookieSecure)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	uploadLimiter := middleware.NewRateLimiter(cfg.RateLimitUpload, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/admin", func(a chi.Router) {
			a.Post("/login", usersHandler.Login)
			a.Post("/refresh", usersHandler.Refresh)
			a.Post("/logout", usersHandler.Logout)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.AdminAuth(cfg.AdminAPIKey, jwtManager))

			protected.With(uploadLimiter.Middleware).Post("/leads/upload/{productID}", leadsHandler.Upload)
			protected.Post("/leads/process/{batchID}", leadsHandler.Process)
			protected.Post("/leads/send/{batchID}", dispatchHandler.Send)
			protected.Get("/leads/batch/{batchID}/summary", leadsHandler.Summary)
			protected.Get("/leads/batch/{batchID}", leadsHandler.ListByBatch)
			protected.Get("/leads/history", leadsHandler.History)

			protected.Route("/agents", func(a chi.Router) {
				a.Post("/", agentsHandler.Create)
				a.Get("/", agentsHandler.List)
				a.Get("/{id}", agentsHandler.Get)
				a.Put("/{id}", agentsHandler.Update)
				a.Delete("/{id}", agentsHandler.Delete)
			})

			protected.Route("/products", func(p chi.Router) {
				p.Post("/", productsHandler.Create)
				p.Get("/", productsHandler.List)
				p.Get("/{id}", productsHandler.Get)
				p.Put("/{id}", productsHandler.Update)
				p.Delete("/{id}", productsHandler.Delete)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
