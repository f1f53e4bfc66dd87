package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	fitsync "github.com/pilab-dev/fitsync"
	echoapi "github.com/pilab-dev/fitsync/api/echo"
	"github.com/pilab-dev/fitsync/cache"
	"github.com/pilab-dev/fitsync/cache/redis"
	"github.com/pilab-dev/fitsync/config"
	"github.com/pilab-dev/fitsync/domain"
	"github.com/pilab-dev/fitsync/fitbit"
	"github.com/pilab-dev/fitsync/internal/keymutex"
	"github.com/pilab-dev/fitsync/internal/metrics"
	"github.com/pilab-dev/fitsync/mongodb"
	"github.com/pilab-dev/fitsync/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Str("credential_backend", cfg.CredentialBackend).
		Str("log_level", cfg.LogLevel).
		Msg("Starting fitsync server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}
	db := mongodb.GetDB()

	// Repositories
	var credStore domain.CredentialRepository
	var redisClient *goredis.Client
	switch cfg.CredentialBackend {
	case "redis":
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		credStore = redis.NewCredentialStore(redisClient, cfg.RedisKeyPrefix)
	case "mongo", "":
		credStore = mongodb.NewCredentialRepository(db)
	default:
		log.Fatal().Str("backend", cfg.CredentialBackend).Msg("Unknown credential backend")
	}

	credCache := cache.NewCredentialCache(credStore, time.Duration(cfg.CredentialCacheTTLSec)*time.Second)
	defer credCache.Stop()

	checkpointRepo := mongodb.NewCheckpointRepository(db)
	recordRepo, err := mongodb.NewMetricRecordRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MetricRecordRepository")
	}

	// Provider clients
	fitbitClient := fitbit.NewClient(cfg.FitbitAPIBaseURL, cfg.FitbitUTCOffset)
	authorizer := fitbit.NewAuthorizer(cfg.FitbitAuthURL, cfg.FitbitTokenURL, fitbit.DefaultScopes)

	// Core services. The lock set is shared so that sync and refresh for the
	// same client are serialized.
	locks := keymutex.New()
	engine := fitsync.NewSyncEngine(credCache, checkpointRepo, recordRepo, fitbitClient, locks)
	engine.SetWindowOverlap(time.Duration(cfg.SyncOverlapHours) * time.Hour)
	tokenService := fitsync.NewTokenService(credCache, authorizer, locks)

	tickTable := cfg.TickTable
	if len(tickTable) == 0 {
		tickTable = fitsync.DefaultTickTable()
	}
	dispatcher, err := fitsync.NewCronDispatcher(credCache, engine, tokenService, tickTable, cfg.SyncConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tick table")
	}

	metrics.Register(prometheus.DefaultRegisterer)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())

	api := echoapi.NewSyncAPI(credCache, recordRepo, dispatcher, authorizer, fitbitClient)
	api.RegisterRoutes(e)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown error")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close error")
		}
	}
	mongodb.CloseMongoDB(shutdownCtx)

	log.Info().Msg("Server gracefully stopped")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
