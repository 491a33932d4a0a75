package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prudhvinik1/smsledger/internal/logger"
	"github.com/prudhvinik1/smsledger/internal/services"
)

// LedgerHandler serves read queries and deletion over the caller's ledger.
type LedgerHandler struct {
	ledger *services.LedgerService
	stats  *services.StatsService
	loc    *time.Location
	now    func() time.Time
}

func NewLedgerHandler(ledger *services.LedgerService, stats *services.StatsService, loc *time.Location) *LedgerHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerHandler{ledger: ledger, stats: stats, loc: loc, now: time.Now}
}

// RecentTransactions handles GET /api/transactions/recent
func (h *LedgerHandler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := IdentityFromContext(ctx)

	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.ledger.RecentTransactions(ctx, identity.OwnerID, limit)
	if err != nil {
		writeServiceError(w, logger.FromContext(ctx), err, "list recent transactions")
		return
	}
	WriteSuccess(w, http.StatusOK, "Recent transactions", txs)
}

// MonthlyTransactions handles GET /api/transactions/monthly
// month and year default to the current month in the ledger time zone.
func (h *LedgerHandler) MonthlyTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := IdentityFromContext(ctx)
	current := h.now().In(h.loc)

	month, err := intQuery(r, "month", int(current.Month()))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	year, err := intQuery(r, "year", current.Year())
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.ledger.MonthlyTransactions(ctx, identity.OwnerID, month, year)
	if err != nil {
		writeServiceError(w, logger.FromContext(ctx), err, "list monthly transactions")
		return
	}
	WriteSuccess(w, http.StatusOK, "Monthly transactions", txs)
}

// SenderStatistics handles GET /api/statistics/senders
func (h *LedgerHandler) SenderStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := IdentityFromContext(ctx)

	stats, err := h.stats.SenderStatistics(ctx, identity.OwnerID)
	if err != nil {
		writeServiceError(w, logger.FromContext(ctx), err, "compute sender statistics")
		return
	}
	WriteSuccess(w, http.StatusOK, "Sender statistics", stats)
}

// Devices handles GET /api/devices
func (h *LedgerHandler) Devices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := IdentityFromContext(ctx)

	devices, err := h.ledger.Devices(ctx, identity.OwnerID)
	if err != nil {
		writeServiceError(w, logger.FromContext(ctx), err, "list devices")
		return
	}
	WriteSuccess(w, http.StatusOK, "Devices", devices)
}

// DeviceTransactions handles GET /api/devices/{deviceName}/transactions
func (h *LedgerHandler) DeviceTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, _ := IdentityFromContext(ctx)

	txs, err := h.ledger.DeviceTransactions(ctx, identity.OwnerID, chi.URLParam(r, "deviceName"))
	if err != nil {
		writeServiceError(w, logger.FromContext(ctx), err, "list device transactions")
		return
	}
	WriteSuccess(w, http.StatusOK, "Device transactions", txs)
}

// DeleteLedger handles DELETE /api/ledger
func (h *LedgerHandler) DeleteLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	identity, _ := IdentityFromContext(ctx)

	if err := h.ledger.DeleteOwner(ctx, identity.OwnerID); err != nil {
		writeServiceError(w, log, err, "delete ledger")
		return
	}
	log.Info().Msg("Ledger deleted")
	WriteSuccess(w, http.StatusOK, "Ledger deleted", nil)
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
