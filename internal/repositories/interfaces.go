package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/prudhvinik1/smsledger/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate transaction")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultListLimit caps ListAllTransactions when the caller passes no limit.
const DefaultListLimit = 20

// LedgerRepository is the per-owner device ledger. Devices are created
// lazily and each holds an append-only log of transactions. The tuple
// (owner, role, amount, date, type) is unique across all devices of an owner;
// a write that would break it fails with ErrDuplicate.
type LedgerRepository interface {
	EnsureDevice(ctx context.Context, ownerID, name string, syncAt time.Time) (*models.Device, error)
	AppendTransaction(ctx context.Context, deviceName string, syncAt time.Time, tx *models.Transaction) error
	TouchDevice(ctx context.Context, ownerID, name string, syncAt time.Time) error
	TransactionExists(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error)
	ListDevices(ctx context.Context, ownerID string) ([]*models.Device, error)
	ListDeviceTransactions(ctx context.Context, ownerID, name string) ([]*models.Transaction, error)
	ListAllTransactions(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error)
	ListTransactionsInMonth(ctx context.Context, ownerID string, month time.Month, year int) ([]*models.Transaction, error)
	DeleteOwner(ctx context.Context, ownerID string) error
}

// DedupeIndex is a fast, lossy membership cache of stored duplicate keys.
// The LedgerRepository stays the source of truth.
type DedupeIndex interface {
	Contains(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error)
	Add(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) error
	Forget(ctx context.Context, ownerID string) error
}

func validateTransaction(deviceName string, tx *models.Transaction) error {
	switch {
	case deviceName == "":
		return errors.Join(ErrInvalidInput, errors.New("device name is required"))
	case tx.OwnerID == "" || tx.OwnerRole == "":
		return errors.Join(ErrInvalidInput, errors.New("owner and role are required"))
	case !tx.Amount.IsPositive():
		return errors.Join(ErrInvalidInput, errors.New("amount must be positive"))
	case !tx.Type.Valid():
		return errors.Join(ErrInvalidInput, errors.New("unknown transaction type"))
	case tx.Date.IsZero():
		return errors.Join(ErrInvalidInput, errors.New("date is required"))
	}
	return nil
}

func validateDevice(ownerID, name string) error {
	if ownerID == "" || name == "" {
		return errors.Join(ErrInvalidInput, errors.New("owner and device name are required"))
	}
	return nil
}
