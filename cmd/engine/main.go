package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pillarrx/rxworkability/internal/adapters/cache"
	"github.com/pillarrx/rxworkability/internal/adapters/coverage"
	"github.com/pillarrx/rxworkability/internal/adapters/database"
	"github.com/pillarrx/rxworkability/internal/adapters/events"
	"github.com/pillarrx/rxworkability/internal/application/services"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/formularyapi"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/redis"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/pillarrx/rxworkability/pkg/config"
)

// reverifyInterval is how often the stale sweep runs while the engine is up
const reverifyInterval = 1 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.Service.Name, cfg.Service.Environment)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	logger.Info().Msg("PostgreSQL client initialized")

	// Redis is optional; without it the engine falls back to the in-process
	// cache and skips event publishing.
	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, falling back to in-process cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info().Msg("Redis client initialized")
		}
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	} else {
		cacheProvider = cache.NewMemoryAdapter()
	}

	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		logger.Info().Msg("verification event bus initialized")
	}

	// Repositories
	opportunityRepo := database.NewOpportunityAdapter(pgClient)
	prescriptionRepo := database.NewPrescriptionAdapter(pgClient)
	formularyRepo := database.NewFormularyAdapter(pgClient)
	pricingRepo := database.NewPricingAdapter(pgClient)
	verificationLogRepo := database.NewVerificationLogAdapter(pgClient)
	workabilityRepo := database.NewWorkabilityAdapter(pgClient)
	dashboardRepo := database.NewDashboardAdapter(pgClient)

	// Coverage sources, in fallback priority order. The remote source is
	// wrapped with the read-through cache.
	apiClient := formularyapi.NewClient(
		cfg.FormularyAPI.BaseURL,
		cfg.FormularyAPI.APIKey,
		time.Duration(cfg.FormularyAPI.TimeoutSeconds)*time.Second,
	)
	remoteSource := coverage.NewRemoteFormularyAdapter(
		apiClient,
		cfg.FormularyAPI.MaxAttempts,
		time.Duration(cfg.FormularyAPI.BackoffSeconds)*time.Second,
	)
	sources := []providers.CoverageSource{
		coverage.NewCachedSource(remoteSource, cacheProvider, cfg.Cache.TTLSeconds),
		coverage.NewLocalFormularyAdapter(formularyRepo),
		coverage.NewPricingDataAdapter(pricingRepo),
	}

	// Services
	resolverService := services.NewCoverageResolverService(
		sources,
		opportunityRepo,
		prescriptionRepo,
		verificationLogRepo,
		eventBus,
	)
	workabilityService := services.NewWorkabilityService(
		opportunityRepo,
		prescriptionRepo,
		workabilityRepo,
		cfg.Scoring,
	)
	batchService := services.NewBatchService(
		resolverService,
		workabilityService,
		opportunityRepo,
		cfg.Batch,
	)
	dashboardService := services.NewDashboardService(
		dashboardRepo,
		workabilityRepo,
		opportunityRepo,
		cfg.Dashboard,
	)

	go runStaleSweep(ctx, batchService, time.Duration(cfg.Scoring.ScoreFreshnessHours)*time.Hour)

	logger.Info().
		Str("cache_backend", cfg.Cache.Backend).
		Int("batch_concurrency", cfg.Batch.Concurrency).
		Msg("workability engine started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("engine shutting down")
	cancel()

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	// Log the dashboard once on the way out so an operator sees the final
	// state of the window in the logs.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if dashboard, err := dashboardService.GetCoverageDashboard(shutdownCtx); err == nil {
		logger.Info().
			Int("total_attempts", dashboard.TotalAttempts).
			Float64("success_rate", dashboard.SuccessRate).
			Int("alerts", len(dashboard.Alerts)).
			Msg("final dashboard snapshot")
	}

	logger.Info().Msg("engine stopped")
}

// runStaleSweep periodically re-verifies stale coverage and rescores stale
// opportunities until the context is cancelled
func runStaleSweep(ctx context.Context, batch *services.BatchService, scoreFreshness time.Duration) {
	logger := observability.ComponentLogger("stale_sweep")

	ticker := time.NewTicker(reverifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if result, err := batch.ReverifyStale(ctx); err != nil {
				logger.Error().Err(err).Msg("stale re-verification sweep failed")
			} else if result.Total > 0 {
				logger.Info().Int("verified", len(result.Results)).Int("failed", len(result.Errors)).Msg("stale coverage re-verified")
			}

			if result, err := batch.RescoreStale(ctx, scoreFreshness); err != nil {
				logger.Error().Err(err).Msg("stale rescoring sweep failed")
			} else if result.Total > 0 {
				logger.Info().Int("scored", len(result.Scores)).Int("failed", len(result.Errors)).Msg("stale scores recomputed")
			}
		}
	}
}
