package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/sorincom/analize-new/internal/adapters/cache"
	"github.com/sorincom/analize-new/internal/adapters/database"
	"github.com/sorincom/analize-new/internal/adapters/matching"
	"github.com/sorincom/analize-new/internal/api/handlers"
	"github.com/sorincom/analize-new/internal/api/routes"
	"github.com/sorincom/analize-new/internal/application/services"
	"github.com/sorincom/analize-new/internal/domain/providers"
	"github.com/sorincom/analize-new/internal/infrastructure/clients/openai"
	"github.com/sorincom/analize-new/internal/infrastructure/clients/postgres"
	"github.com/sorincom/analize-new/internal/infrastructure/clients/redis"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
	"github.com/sorincom/analize-new/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client and schema
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if err := database.EnsureSchema(ctx, pgClient); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure database schema")
	}
	logger.Info().Msg("PostgreSQL client initialized")

	// Initialize Redis client. The service degrades without it: no verdict
	// cache, no idempotency keys, but ingestion still works.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to initialize Redis client, continuing without cache")
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info().Msg("Redis client initialized")
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Repositories
	labRepo := database.NewLabAdapter(pgClient)
	testTypeRepo := database.NewTestTypeAdapter(pgClient)
	resultRepo := database.NewTestResultAdapter(pgClient)
	documentRepo := database.NewDocumentAdapter(pgClient)
	userRepo := database.NewUserAdapter(pgClient)

	// Similarity matcher, wrapped with verdict caching
	var matcher providers.SimilarityMatcher
	matcher, err = openai.NewClient(&cfg.Matcher)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize similarity matcher")
	}
	matcher = matching.NewCachedMatcher(matcher, cacheProvider, cfg.Matcher.VerdictTTLSeconds, metrics)

	// Application services
	locks := services.NewEntityLocks()
	labResolver := services.NewLabResolverService(labRepo, matcher, locks, cfg.Matcher.ShortlistLimit)
	testTypeResolver := services.NewTestTypeResolverService(testTypeRepo, matcher, locks, cfg.Matcher.ShortlistLimit)
	resultUpsert := services.NewResultUpsertService(resultRepo, locks)
	ingestionService := services.NewIngestionService(labResolver, testTypeResolver, resultUpsert, documentRepo, metrics)
	documentService := services.NewDocumentService(documentRepo)
	userService := services.NewUserService(userRepo)
	timelineService := services.NewTimelineService(resultRepo)
	catalogService := services.NewCatalogService(labRepo, testTypeRepo)

	// Handlers
	var rawRedis *redislib.Client
	if redisClient != nil {
		rawRedis = redisClient.Client()
	}
	ingestionHandler := handlers.NewIngestionHandler(ingestionService, documentService, rawRedis, 24*time.Hour)
	documentHandler := handlers.NewDocumentHandler(documentService)
	userHandler := handlers.NewUserHandler(userService)
	timelineHandler := handlers.NewTimelineHandler(timelineService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)

	router := routes.NewRouter(
		ingestionHandler,
		documentHandler,
		userHandler,
		timelineHandler,
		catalogHandler,
		metrics,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
