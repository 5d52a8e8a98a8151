package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/phonelink/broker-server-go/internal/config"
	"github.com/phonelink/broker-server-go/internal/database"
	"github.com/phonelink/broker-server-go/internal/handler"
	"github.com/phonelink/broker-server-go/internal/jobs"
	"github.com/phonelink/broker-server-go/internal/middleware"
	"github.com/phonelink/broker-server-go/internal/redis"
	"github.com/phonelink/broker-server-go/internal/relay"
	"github.com/phonelink/broker-server-go/internal/repository"
	"github.com/phonelink/broker-server-go/internal/service"
	"github.com/phonelink/broker-server-go/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database connected")

	var rateLimiter service.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		rateLimiter = service.NewRedisLimiter(redisClient.Client)
		log.Info().Msg("redis connected, using redis rate limiter")
	} else {
		rateLimiter = service.NewMemoryLimiter()
		log.Info().Msg("no redis url, using in-memory rate limiter")
	}

	accountRepo := repository.NewAccountRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	pairingCodeRepo := repository.NewPairingCodeRepository(db.DB)
	pairingRepo := repository.NewPairingRepository(db.DB)
	messageRepo := repository.NewMessageLogRepository(db.DB)
	queueRepo := repository.NewQueuedCommandRepository(db.DB)

	registry := relay.NewRegistry()
	router := relay.NewRouter(registry, deviceRepo, pairingRepo, messageRepo, queueRepo)

	tokens := token.NewManager(cfg.TokenSecret, config.TokenTTL)

	authService := service.NewAuthService(accountRepo, tokens, rateLimiter)
	deviceService := service.NewDeviceService(deviceRepo, registry)
	pairingService := service.NewPairingService(db, deviceRepo, pairingCodeRepo, pairingRepo, rateLimiter)
	commandService := service.NewCommandService(deviceRepo, pairingRepo, router)
	messageService := service.NewMessageService(messageRepo, deviceRepo)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	authHandler := handler.NewAuthHandler(authService)
	deviceHandler := handler.NewDeviceHandler(deviceService)
	pairingHandler := handler.NewPairingHandler(pairingService)
	commandHandler := handler.NewCommandHandler(commandService)
	historyHandler := handler.NewHistoryHandler(messageService)
	wsHandler := handler.NewWSHandler(deviceService, router)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// REST routes get the request timeout; the websocket routes must not,
	// a channel outliving the timeout would be torn down mid-session.
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(middleware.BodyLimit)

		r.Route("/auth", func(r chi.Router) {
			r.Mount("/", authHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)

			r.Route("/devices", func(r chi.Router) {
				r.Mount("/", deviceHandler.Routes())
			})
			r.Route("/pair", func(r chi.Router) {
				r.Mount("/", pairingHandler.Routes())
			})

			r.Post("/sms", commandHandler.SendSMS)
			r.Post("/call", commandHandler.Call)
			r.Get("/sims", commandHandler.GetSims)
			r.Get("/history", historyHandler.GetHistory)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", wsHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		pairingCodeRepo, queueRepo, messageRepo,
		cfg.RetentionWindow(), config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
