package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/parser"
	"github.com/prudhvinik1/smsledger/internal/repositories"
)

// Per-item failure reasons reported in a BatchReport.
const (
	ReasonMissingFields  = "required fields missing"
	ReasonDuplicate      = "duplicate"
	ReasonStorageFailure = "storage failure"
	ReasonNotProcessed   = "not processed: storage unavailable"
	ReasonCancelled      = "not processed: request cancelled"
)

const (
	legacyDevicePrefix = "legacy-"
	legacySender       = "unknown"
)

// IngestService is the batch ingestion coordinator. Items are processed
// strictly in input order and an item failure never aborts the batch.
type IngestService struct {
	ledger                repositories.LedgerRepository
	detector              *DuplicateDetector
	abortOnStorageFailure bool
	log                   zerolog.Logger
	now                   func() time.Time
}

func NewIngestService(
	ledger repositories.LedgerRepository,
	detector *DuplicateDetector,
	abortOnStorageFailure bool,
	log zerolog.Logger,
) *IngestService {
	return &IngestService{
		ledger:                ledger,
		detector:              detector,
		abortOnStorageFailure: abortOnStorageFailure,
		log:                   log,
		now:                   time.Now,
	}
}

// IngestBatch parses, deduplicates and stores every message of one sync
// request. It only returns an error when the batch cannot start: missing
// identity, missing device name, or a device that cannot be created.
func (s *IngestService) IngestBatch(ctx context.Context, identity models.Identity, req models.BatchRequest) (*models.BatchReport, error) {
	if identity.OwnerID == "" || identity.Role == "" {
		return nil, ErrUnauthorized
	}

	deviceName := strings.TrimSpace(req.DeviceName)
	if deviceName == "" {
		return nil, fmt.Errorf("%w: device name is required", ErrInvalidInput)
	}

	now := s.now()
	syncAt := req.LastSyncTimestamp.Time(now)

	if _, err := s.ledger.EnsureDevice(ctx, identity.OwnerID, deviceName, syncAt); err != nil {
		return nil, fmt.Errorf("failed to prepare device: %w", err)
	}

	report := models.NewBatchReport()
	halted := ""

	for i, msg := range req.Messages {
		if halted == "" && ctx.Err() != nil {
			halted = ReasonCancelled
		}
		if halted != "" {
			report.AddFailure(i, msg, halted)
			continue
		}

		if err := s.ingestItem(ctx, identity, deviceName, syncAt, now, i, msg, report); err != nil {
			if ctx.Err() != nil {
				report.AddFailure(i, msg, ReasonCancelled)
				halted = ReasonCancelled
				continue
			}
			s.log.Warn().Err(err).
				Str("owner", identity.OwnerID).
				Str("device", deviceName).
				Int("index", i).
				Msg("storage failure during batch")
			report.AddFailure(i, msg, ReasonStorageFailure)
			if s.abortOnStorageFailure {
				halted = ReasonNotProcessed
			}
		}
	}

	if err := s.ledger.TouchDevice(ctx, identity.OwnerID, deviceName, syncAt); err != nil {
		s.log.Error().Err(err).
			Str("owner", identity.OwnerID).
			Str("device", deviceName).
			Msg("failed to update device sync time")
	}

	summary := report.Summary()
	s.log.Info().
		Str("owner", identity.OwnerID).
		Str("role", string(identity.Role)).
		Str("device", deviceName).
		Int("total", summary.Total).
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Msg("batch ingested")

	return report, nil
}

// ingestItem records the item's outcome in report. The returned error is a
// storage failure the caller must account for.
func (s *IngestService) ingestItem(
	ctx context.Context,
	identity models.Identity,
	deviceName string,
	syncAt, now time.Time,
	index int,
	msg models.BatchMessage,
	report *models.BatchReport,
) error {
	sender := strings.TrimSpace(msg.Sender)
	if strings.TrimSpace(msg.Body) == "" || sender == "" || !msg.Date.IsSet() {
		report.AddFailure(index, msg, ReasonMissingFields)
		return nil
	}

	// millisecond precision keeps keys stable across both stores
	date := msg.Date.Time(now).Truncate(time.Millisecond)

	parsed, err := parser.Parse(msg.Body, date)
	if err != nil {
		reason, ok := parser.IsParseError(err)
		if !ok {
			reason = err.Error()
		}
		report.AddFailure(index, msg, reason)
		return nil
	}
	parsed.Sender = sender

	dup, err := s.detector.IsDuplicate(ctx, identity.OwnerID, identity.Role, parsed)
	if err != nil {
		return err
	}
	if dup {
		report.AddFailure(index, msg, ReasonDuplicate)
		return nil
	}

	tx := &models.Transaction{
		OwnerID:   identity.OwnerID,
		OwnerRole: identity.Role,
		Sender:    parsed.Sender,
		Amount:    parsed.Amount,
		Date:      parsed.Date,
		Type:      parsed.Type,
	}

	err = s.ledger.AppendTransaction(ctx, deviceName, syncAt, tx)
	switch {
	case errors.Is(err, repositories.ErrDuplicate):
		// lost a race with a concurrent batch
		s.detector.Remember(ctx, identity.OwnerID, identity.Role, tx.Key())
		report.AddFailure(index, msg, ReasonDuplicate)
		return nil
	case errors.Is(err, repositories.ErrInvalidInput):
		report.AddFailure(index, msg, err.Error())
		return nil
	case err != nil:
		return err
	}

	s.detector.Remember(ctx, identity.OwnerID, identity.Role, tx.Key())
	report.AddSuccess(index, parsed, tx.ID)
	return nil
}

// IngestMessage is the single-message path for callers without a device
// context. The message becomes a batch of one on a per-owner device.
func (s *IngestService) IngestMessage(ctx context.Context, identity models.Identity, messageText string, date models.Timestamp) (*models.SuccessItem, error) {
	if !date.IsSet() {
		date = models.NewTimestamp(s.now())
	}

	report, err := s.IngestBatch(ctx, identity, models.BatchRequest{
		DeviceName: LegacyDeviceName(identity.OwnerID),
		Messages: []models.BatchMessage{
			{Body: messageText, Sender: legacySender, Date: date},
		},
	})
	if err != nil {
		return nil, err
	}

	if len(report.Successful) == 1 {
		return &report.Successful[0], nil
	}

	reason := report.Failed[0].Reason
	switch reason {
	case ReasonDuplicate:
		return nil, fmt.Errorf("%w: a transaction with the same amount, date and type already exists", ErrDuplicate)
	case ReasonStorageFailure, ReasonNotProcessed, ReasonCancelled:
		return nil, fmt.Errorf("%w: %s", ErrStorageFailure, reason)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, reason)
	}
}

// LegacyDeviceName is the device used for single-message ingestion.
func LegacyDeviceName(ownerID string) string {
	return legacyDevicePrefix + ownerID
}
