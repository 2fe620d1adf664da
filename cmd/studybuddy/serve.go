package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"studybuddy-backend/internal/config"
	"studybuddy-backend/internal/database"
	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/router"
	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/websocket"
	"studybuddy-backend/internal/worker"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, "info")
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("env", cfg.Env).Msg("Starting Study Buddy backend")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Redis (optional) ────
	var publisher, subscriber *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClients.Close()
		publisher, subscriber = redisClients.Publish, redisClients.PubSub
		log.Info().Msg("Redis connected, events fan out through pub/sub")
	} else {
		log.Info().Msg("REDIS_URL not set, events are delivered in-process")
	}

	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, clients must supply their own key")
	}

	// ──── Sessions ────
	sessionRepo := repository.NewSessionRepo(cfg.SessionIdleTimeout)
	sessionRepo.Start()
	defer sessionRepo.Stop()

	// ──── Extraction Worker Pool ────
	extractPool := worker.NewPool(services.NewFileExtractService(), cfg.ExtractWorkers)
	extractPool.Start()
	defer extractPool.Stop()

	// ──── Services ────
	study, modelCache := newStudyService(cfg, extractPool)
	defer modelCache.Close()

	// ──── WebSocket Hub ────
	wsHub := websocket.NewHub(sessionRepo, publisher, subscriber)

	// ──── HTTP Server ────
	askLimiter := middleware.NewRateLimiter(cfg.AskRateLimitPerMin, time.Minute)
	defer askLimiter.Stop()

	sessionHandler := handlers.NewSessionHandler(sessionRepo, study, wsHub, cfg.MaxUploadBytes)
	r := router.New(sessionHandler, wsHub, askLimiter, cfg.FrontendURL)

	// An exchange may wait out every retry delay before the model answers.
	retryBudget := time.Duration(cfg.GeminiMaxAttempts-1) * cfg.GeminiRetryDelay

	server := newHTTPServer(ctx, fmt.Sprintf(":%s", cfg.Port), r, retryBudget+2*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
			Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/sessions/{id}/ws", cfg.Port)).
			Msg("Study Buddy backend ready")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Request contexts derive from ctx, so pending retry waits have already
	// been cancelled and in-flight exchanges finish promptly.
	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newHTTPServer builds the API server. Every request context derives from
// ctx, so cancelling it aborts in-flight exchanges.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}
