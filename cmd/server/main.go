package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"odo-backend/internal/config"
	"odo-backend/internal/database"
	"odo-backend/internal/handlers"
	"odo-backend/internal/logging"
	"odo-backend/internal/metrics"
	"odo-backend/internal/middleware"
	"odo-backend/internal/repository"
	"odo-backend/internal/router"
	"odo-backend/internal/services"
	"odo-backend/internal/websocket"
	"odo-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.Env)
	log.Info().Msg("Starting Odo Backend")

	metrics.Register()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClients.Close()
	log.Info().Msg("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}
	log.Info().Msg("Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	eventRepo := repository.NewEventRepo(pool)
	recordRepo := repository.NewRecordRepo(pool)
	statsRepo := repository.NewStatsRepo(pool)
	groupRepo := repository.NewGroupRepo(pool)
	trackRepo := repository.NewTrackRepo(pool)
	permissionRepo := repository.NewPermissionRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	queue := worker.NewQueue(redisClients.Queue)

	authService := services.NewAuthService(userRepo, groupRepo, jwtAuth)
	sessionService := services.NewSessionService(sessionRepo)
	aggregator := services.NewAggregator(statsRepo, userRepo, recordRepo, queue, queue)
	ingestService := services.NewIngestService(eventRepo, recordRepo, trackRepo, aggregator, queue)
	statsService := services.NewStatsService(statsRepo, recordRepo, groupRepo)
	permissionService := services.NewPermissionService(userRepo, permissionRepo)
	youtubeService := services.NewYouTubeService(redisClients.Queue)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService, sessionService)
	listeningHandler := handlers.NewListeningHandler(ingestService, sessionService, statsService)
	statsHandler := handlers.NewStatsHandler(statsService)
	groupHandler := handlers.NewGroupHandler(groupRepo)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		aggregator,
		userRepo,
		trackRepo,
		youtubeService,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Info().Int("workers", cfg.WorkerCount).Msg("Worker pool started")

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Info().Msg("WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		permissionService,
		authHandler,
		listeningHandler,
		statsHandler,
		groupHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
