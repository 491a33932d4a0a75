package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/services"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Log      zerolog.Logger
	Verifier IdentityVerifier
	Ingest   *services.IngestService
	Ledger   *services.LedgerService
	Stats    *services.StatsService
	Location *time.Location
	// HealthCheck reports backing store health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	syncHandler := NewSyncHandler(cfg.Ingest)
	ledgerHandler := NewLedgerHandler(cfg.Ledger, cfg.Stats, cfg.Location)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(RequestLogger(cfg.Log))
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.HealthCheck(ctx); err != nil {
				cfg.Log.Warn().Err(err).Msg("Health check failed")
				WriteError(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		WriteSuccess(w, http.StatusOK, "OK", nil)
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(cfg.Verifier))

		r.Post("/sync/batch", syncHandler.SyncBatch)
		r.Post("/messages/parse", syncHandler.ParseMessage)

		r.Get("/transactions/recent", ledgerHandler.RecentTransactions)
		r.Get("/transactions/monthly", ledgerHandler.MonthlyTransactions)
		r.Get("/statistics/senders", ledgerHandler.SenderStatistics)

		r.Get("/devices", ledgerHandler.Devices)
		r.Get("/devices/{deviceName}/transactions", ledgerHandler.DeviceTransactions)

		r.Delete("/ledger", ledgerHandler.DeleteLedger)
	})

	return router
}
