package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/repositories"
)

const MaxRecentLimit = 100

// LedgerService serves the read side of the device ledger.
type LedgerService struct {
	ledger       repositories.LedgerRepository
	index        repositories.DedupeIndex
	defaultLimit int
	log          zerolog.Logger
}

func NewLedgerService(ledger repositories.LedgerRepository, index repositories.DedupeIndex, defaultLimit int, log zerolog.Logger) *LedgerService {
	if defaultLimit <= 0 {
		defaultLimit = repositories.DefaultListLimit
	}
	return &LedgerService{ledger: ledger, index: index, defaultLimit: defaultLimit, log: log}
}

func (s *LedgerService) RecentTransactions(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	txs, err := s.ledger.ListAllTransactions(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) MonthlyTransactions(ctx context.Context, ownerID string, month, year int) ([]*models.Transaction, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
	}
	if year < 1970 || year > 9999 {
		return nil, fmt.Errorf("%w: invalid year", ErrInvalidInput)
	}

	txs, err := s.ledger.ListTransactionsInMonth(ctx, ownerID, time.Month(month), year)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly transactions: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) Devices(ctx context.Context, ownerID string) ([]*models.Device, error) {
	devices, err := s.ledger.ListDevices(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (s *LedgerService) DeviceTransactions(ctx context.Context, ownerID, deviceName string) ([]*models.Transaction, error) {
	deviceName = strings.TrimSpace(deviceName)
	if deviceName == "" {
		return nil, fmt.Errorf("%w: device name is required", ErrInvalidInput)
	}

	txs, err := s.ledger.ListDeviceTransactions(ctx, ownerID, deviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to list device transactions: %w", err)
	}
	return txs, nil
}

// DeleteOwner removes the owner's whole ledger as part of account deletion.
func (s *LedgerService) DeleteOwner(ctx context.Context, ownerID string) error {
	if err := s.ledger.DeleteOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}

	if s.index != nil {
		if err := s.index.Forget(ctx, ownerID); err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("failed to clear dedupe index")
		}
	}
	return nil
}
