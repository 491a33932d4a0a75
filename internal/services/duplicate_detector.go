package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/repositories"
)

// DuplicateDetector answers whether an owner+role already holds a
// transaction with the same (amount, date, type). The optional index is a
// cache in front of the ledger; its failures never fail a lookup.
type DuplicateDetector struct {
	ledger repositories.LedgerRepository
	index  repositories.DedupeIndex
	log    zerolog.Logger
}

// NewDuplicateDetector builds a detector; index may be nil.
func NewDuplicateDetector(ledger repositories.LedgerRepository, index repositories.DedupeIndex, log zerolog.Logger) *DuplicateDetector {
	return &DuplicateDetector{ledger: ledger, index: index, log: log}
}

func (d *DuplicateDetector) IsDuplicate(ctx context.Context, ownerID string, role models.Role, candidate models.ParsedTransaction) (bool, error) {
	key := candidate.Key()

	if d.index != nil {
		found, err := d.index.Contains(ctx, ownerID, role, key)
		if err != nil {
			d.log.Warn().Err(err).Str("owner", ownerID).Msg("dedupe index lookup failed, using ledger")
		} else if found {
			return true, nil
		}
	}

	exists, err := d.ledger.TransactionExists(ctx, ownerID, role, key)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	if exists {
		d.Remember(ctx, ownerID, role, key)
	}
	return exists, nil
}

// Remember records a stored key in the index.
func (d *DuplicateDetector) Remember(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) {
	if d.index == nil {
		return
	}
	if err := d.index.Add(ctx, ownerID, role, key); err != nil {
		d.log.Warn().Err(err).Str("owner", ownerID).Msg("failed to update dedupe index")
	}
}
