package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/utils"
)

// MemoryLedgerRepository keeps every owner's ledger in process memory.
// It is safe for concurrent use and enforces the same duplicate-key
// invariant as the Postgres schema. Data is lost on restart.
type MemoryLedgerRepository struct {
	mu     sync.RWMutex
	loc    *time.Location
	seq    int64
	owners map[string]*ownerLedger
	now    func() time.Time
}

type ownerLedger struct {
	devices []*deviceLog
	keys    map[string]struct{}
}

type deviceLog struct {
	device       models.Device
	transactions []models.Transaction
}

func NewMemoryLedgerRepository(loc *time.Location) *MemoryLedgerRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &MemoryLedgerRepository{
		loc:    loc,
		owners: make(map[string]*ownerLedger),
		now:    time.Now,
	}
}

func (r *MemoryLedgerRepository) EnsureDevice(ctx context.Context, ownerID, name string, syncAt time.Time) (*models.Device, error) {
	if err := validateDevice(ownerID, name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.deviceLocked(ownerID, name, syncAt)
	device := log.device
	return &device, nil
}

func (r *MemoryLedgerRepository) AppendTransaction(ctx context.Context, deviceName string, syncAt time.Time, tx *models.Transaction) error {
	if err := validateTransaction(deviceName, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dedupe := memoryKey(tx.OwnerRole, tx.Key())
	if owner, ok := r.owners[tx.OwnerID]; ok {
		if _, exists := owner.keys[dedupe]; exists {
			return ErrDuplicate
		}
	}

	log := r.deviceLocked(tx.OwnerID, deviceName, syncAt)
	log.device.LastSyncTimestamp = syncAt

	r.seq++
	tx.ID = uuid.New()
	tx.DeviceID = log.device.ID
	tx.Seq = r.seq
	tx.CreatedAt = r.now()

	log.transactions = append(log.transactions, *tx)
	r.owners[tx.OwnerID].keys[dedupe] = struct{}{}
	return nil
}

func (r *MemoryLedgerRepository) TouchDevice(ctx context.Context, ownerID, name string, syncAt time.Time) error {
	if err := validateDevice(ownerID, name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.findLocked(ownerID, name)
	if log == nil {
		return ErrNotFound
	}
	log.device.LastSyncTimestamp = syncAt
	return nil
}

func (r *MemoryLedgerRepository) TransactionExists(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[ownerID]
	if !ok {
		return false, nil
	}
	_, exists := owner.keys[memoryKey(role, key)]
	return exists, nil
}

func (r *MemoryLedgerRepository) ListDevices(ctx context.Context, ownerID string) ([]*models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := []*models.Device{}
	owner, ok := r.owners[ownerID]
	if !ok {
		return devices, nil
	}
	for _, log := range owner.devices {
		device := log.device
		devices = append(devices, &device)
	}
	return devices, nil
}

func (r *MemoryLedgerRepository) ListDeviceTransactions(ctx context.Context, ownerID, name string) ([]*models.Transaction, error) {
	if err := validateDevice(ownerID, name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.findLocked(ownerID, name)
	if log == nil {
		return nil, ErrNotFound
	}

	transactions := make([]*models.Transaction, 0, len(log.transactions))
	for i := range log.transactions {
		tx := log.transactions[i]
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

func (r *MemoryLedgerRepository) ListAllTransactions(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	transactions := r.collect(ownerID, func(*models.Transaction) bool { return true })
	if len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

func (r *MemoryLedgerRepository) ListTransactionsInMonth(ctx context.Context, ownerID string, month time.Month, year int) ([]*models.Transaction, error) {
	start, end := utils.MonthBounds(r.loc, year, month)

	return r.collect(ownerID, func(tx *models.Transaction) bool {
		return !tx.Date.Before(start) && tx.Date.Before(end)
	}), nil
}

func (r *MemoryLedgerRepository) DeleteOwner(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[ownerID]; !ok {
		return ErrNotFound
	}
	delete(r.owners, ownerID)
	return nil
}

// collect flattens the owner's device logs and sorts newest first, ties by insertion order.
func (r *MemoryLedgerRepository) collect(ownerID string, keep func(*models.Transaction) bool) []*models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	transactions := []*models.Transaction{}
	owner, ok := r.owners[ownerID]
	if !ok {
		return transactions
	}

	for _, log := range owner.devices {
		for i := range log.transactions {
			tx := log.transactions[i]
			if keep(&tx) {
				transactions = append(transactions, &tx)
			}
		}
	}

	sort.Slice(transactions, func(i, j int) bool {
		if !transactions[i].Date.Equal(transactions[j].Date) {
			return transactions[i].Date.After(transactions[j].Date)
		}
		return transactions[i].Seq < transactions[j].Seq
	})
	return transactions
}

// deviceLocked finds or lazily creates a device. Caller holds the write lock.
func (r *MemoryLedgerRepository) deviceLocked(ownerID, name string, syncAt time.Time) *deviceLog {
	if log := r.findLocked(ownerID, name); log != nil {
		return log
	}

	owner, ok := r.owners[ownerID]
	if !ok {
		owner = &ownerLedger{keys: make(map[string]struct{})}
		r.owners[ownerID] = owner
	}

	log := &deviceLog{
		device: models.Device{
			ID:                uuid.New(),
			OwnerID:           ownerID,
			Name:              name,
			LastSyncTimestamp: syncAt,
			CreatedAt:         r.now(),
		},
	}
	owner.devices = append(owner.devices, log)
	return log
}

func (r *MemoryLedgerRepository) findLocked(ownerID, name string) *deviceLog {
	owner, ok := r.owners[ownerID]
	if !ok {
		return nil
	}
	for _, log := range owner.devices {
		if log.device.Name == name {
			return log
		}
	}
	return nil
}

func memoryKey(role models.Role, key models.DedupeKey) string {
	return string(role) + "|" + key.String()
}
