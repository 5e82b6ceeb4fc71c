package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mooshihub/database"
	"mooshihub/internal/config"
	"mooshihub/internal/microservices/http-api/handler"
	"mooshihub/internal/microservices/http-api/repository"
	"mooshihub/internal/microservices/http-api/service"
	"mooshihub/internal/microservices/websocket"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]handler.HealthCheck)

	// Database (optional): API key table and message log
	var (
		keyRepo     repository.APIKeyRepository
		messageRepo repository.MessageLogRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.OpenGorm(cfg.DatabaseURL, logger)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close(db)

		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect database pool: %v", err)
		}
		defer pool.Close()
		checks["database"] = pool.Ping

		keyRepo = repository.NewAPIKeyRepository(db)
		messageRepo = repository.NewMessageLogRepository(db)
	} else {
		logger.Warn("database_disabled", "reason", "DATABASE_URL not set")
	}

	// Redis (optional): pending OAuth states
	var states repository.OAuthStateStore
	if cfg.RedisURL != "" {
		redisStore, err := repository.NewOAuthStateRedisStore(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		checks["redis"] = redisStore.Ping
		states = redisStore
	} else {
		states = repository.NewOAuthStateMemoryStore()
	}

	// Connection manager
	hub := websocket.NewHub(websocket.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		MessageRate:       cfg.WSMessageRate,
		MessageBurst:      cfg.WSMessageBurst,
		Logger:            logger,
	})

	if messageRepo != nil {
		hub.Bus().Subscribe(websocket.CategoryMessage, service.MessageLogHandler(messageRepo, logger))
	}
	hub.Bus().Subscribe(websocket.CategoryDisconnect, func(_ context.Context, payload json.RawMessage, _ string) error {
		logger.Debug("client_disconnected_event", "payload", string(payload))
		return nil
	})

	// Services
	keys, err := service.NewKeyService(ctx, cfg.APIKeys, cfg.MasterAPIKey, keyRepo, cfg.EnvFile, logger)
	if err != nil {
		log.Fatalf("Failed to load API keys: %v", err)
	}
	tokens := service.NewAdminTokenService(cfg.JWTSecret, cfg.AdminTokenTTL)

	var oauth service.OAuthService
	if cfg.SpotifyEnabled() {
		oauth = service.NewOAuthService(service.OAuthConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURI,
			Scopes:       cfg.SpotifyScopes,
			Endpoint:     service.SpotifyEndpoint,
			StateTTL:     cfg.OAuthStateTTL,
		}, states, hub, logger)
	} else {
		logger.Warn("spotify_disabled", "reason", "SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET not set")
	}

	maxUpload, err := cfg.UploadMaxBytes()
	if err != nil {
		log.Fatalf("Invalid UPLOAD_MAX_SIZE: %v", err)
	}
	cdn, err := service.NewCDNService(cfg.CDNPath, cfg.CDNURL, maxUpload, logger)
	if err != nil {
		log.Fatalf("Failed to prepare CDN directory: %v", err)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Hub:         hub,
		Keys:        keys,
		Tokens:      tokens,
		OAuth:       oauth,
		CDN:         cdn,
		Messages:    messageRepo,
		Checks:      checks,
		APIVersion:  cfg.APIVersion,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting_api_server",
			"addr", addr,
			"env", cfg.GoEnv,
			"heartbeat_interval", cfg.HeartbeatInterval.String(),
			"heartbeat_timeout", cfg.HeartbeatTimeout.String(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		hub.Close()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// websocket connections are hijacked, so the hub closes them itself
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err.Error())
	}
	logger.Info("server_stopped_gracefully")
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
