package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pillarrx/rxworkability/internal/adapters/cache"
	"github.com/pillarrx/rxworkability/internal/adapters/coverage"
	"github.com/pillarrx/rxworkability/internal/adapters/database"
	"github.com/pillarrx/rxworkability/internal/application/services"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/formularyapi"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/pillarrx/rxworkability/pkg/config"
)

func main() {
	var opportunityIDs string
	var forceRefresh bool
	var rescore bool

	flag.StringVar(&opportunityIDs, "opportunities", "", "Comma-separated opportunity IDs; empty means all stale")
	flag.BoolVar(&forceRefresh, "force", false, "Drop cached coverage answers before verifying")
	flag.BoolVar(&rescore, "rescore", true, "Recompute workability scores after verification")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger(cfg.Service.Name, cfg.Service.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pgClient.Close()

	opportunityRepo := database.NewOpportunityAdapter(pgClient)
	prescriptionRepo := database.NewPrescriptionAdapter(pgClient)
	formularyRepo := database.NewFormularyAdapter(pgClient)
	pricingRepo := database.NewPricingAdapter(pgClient)
	verificationLogRepo := database.NewVerificationLogAdapter(pgClient)
	workabilityRepo := database.NewWorkabilityAdapter(pgClient)

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
		coverage.NewCachedSource(remoteSource, cache.NewMemoryAdapter(), cfg.Cache.TTLSeconds),
		coverage.NewLocalFormularyAdapter(formularyRepo),
		coverage.NewPricingDataAdapter(pricingRepo),
	}

	resolver := services.NewCoverageResolverService(sources, opportunityRepo, prescriptionRepo, verificationLogRepo, nil)
	scorer := services.NewWorkabilityService(opportunityRepo, prescriptionRepo, workabilityRepo, cfg.Scoring)
	batch := services.NewBatchService(resolver, scorer, opportunityRepo, cfg.Batch)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()

	var ids []string
	if opportunityIDs != "" {
		for _, id := range strings.Split(opportunityIDs, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
	}

	var result *services.BatchVerifyResult
	if len(ids) > 0 {
		log.Printf("Verifying %d opportunities...", len(ids))
		result = batch.VerifyMany(ctx, ids, services.VerifyOptions{ForceRefresh: forceRefresh})
	} else {
		log.Printf("Re-verifying all stale coverage...")
		result, err = batch.ReverifyStale(ctx)
		if err != nil {
			log.Fatalf("Stale selection failed: %v", err)
		}
	}

	log.Printf("Verification complete in %s", time.Since(start))
	log.Printf("Total: %d", result.Total)
	log.Printf("Verified: %d", len(result.Results))
	log.Printf("Failed: %d", len(result.Errors))
	for _, failure := range result.Errors {
		log.Printf("  %s: %s", failure.OpportunityID, failure.Error)
	}

	if rescore {
		verified := make([]string, 0, len(result.Results))
		for _, r := range result.Results {
			verified = append(verified, r.OpportunityID)
		}
		scored := batch.ScoreMany(ctx, verified)
		log.Printf("Rescored: %d (failed: %d)", len(scored.Scores), len(scored.Errors))
	}
}
