package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prudhvinik1/smsledger/internal/logger"
	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/services"
)

const maxBatchBodyBytes = 8 << 20

// SyncHandler accepts SMS uploads from devices.
type SyncHandler struct {
	ingest *services.IngestService
}

func NewSyncHandler(ingest *services.IngestService) *SyncHandler {
	return &SyncHandler{ingest: ingest}
}

type batchResponse struct {
	Summary    models.BatchSummary  `json:"summary"`
	Successful []models.SuccessItem `json:"successful"`
	Failed     []models.FailedItem  `json:"failed"`
}

// SyncBatch handles POST /api/sync/batch
func (h *SyncHandler) SyncBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	identity, _ := IdentityFromContext(ctx)

	var req models.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.ingest.IngestBatch(ctx, identity, req)
	if err != nil {
		writeServiceError(w, log, err, "process batch")
		return
	}

	summary := report.Summary()
	WriteSuccess(w, http.StatusOK, "Batch processed", batchResponse{
		Summary:    summary,
		Successful: report.Successful,
		Failed:     report.Failed,
	})
}

type parseRequest struct {
	MessageText string           `json:"messageText"`
	Date        models.Timestamp `json:"date"`
}

// ParseMessage handles POST /api/messages/parse
func (h *SyncHandler) ParseMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	identity, _ := IdentityFromContext(ctx)

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.MessageText) == "" {
		WriteError(w, http.StatusBadRequest, "messageText is required")
		return
	}

	item, err := h.ingest.IngestMessage(ctx, identity, req.MessageText, req.Date)
	if err != nil {
		writeServiceError(w, log, err, "store message")
		return
	}

	WriteSuccess(w, http.StatusCreated, "Transaction stored", item)
}
