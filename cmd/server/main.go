package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/config"
	"github.com/prudhvinik1/smsledger/internal/database"
	"github.com/prudhvinik1/smsledger/internal/handlers"
	"github.com/prudhvinik1/smsledger/internal/logger"
	"github.com/prudhvinik1/smsledger/internal/repositories"
	"github.com/prudhvinik1/smsledger/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	var (
		ledger      repositories.LedgerRepository
		index       repositories.DedupeIndex
		healthCheck func(ctx context.Context) error
	)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create postgres pool")
		}
		defer pool.Close()

		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply schema")
			}
		}

		ledger = repositories.NewPostgresLedgerRepository(pool, cfg.Location)
		healthCheck = pool.Ping
	default:
		log.Warn().Msg("Using in-memory ledger, data is lost on restart")
		ledger = repositories.NewMemoryLedgerRepository(cfg.Location)
	}

	// The index caches keys of a durable ledger, so it only pairs with Postgres.
	if cfg.RedisURL != "" && cfg.StorageDriver == config.StorageDriverPostgres {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, duplicate checks use the ledger only")
		} else {
			defer redisClient.Close()
			index = repositories.NewRedisDedupeIndex(redisClient)
		}
	}

	detector := services.NewDuplicateDetector(ledger, index, log)
	router := handlers.NewRouter(handlers.RouterConfig{
		Log:         log,
		Verifier:    services.NewTokenVerifier(cfg.JWTSecret),
		Ingest:      services.NewIngestService(ledger, detector, cfg.AbortOnStorageFailure(), log),
		Ledger:      services.NewLedgerService(ledger, index, cfg.RecentLimit, log),
		Stats:       services.NewStatsService(ledger),
		Location:    cfg.Location,
		HealthCheck: healthCheck,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	go shutdownOnSignal(server, log)

	log.Info().
		Str("port", cfg.ServerPort).
		Str("storage", cfg.StorageDriver).
		Bool("dedupe_index", index != nil).
		Msg("Starting server")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Server stopped gracefully")
}

func shutdownOnSignal(server *http.Server, log zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}
