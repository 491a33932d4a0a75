package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/repositories"
)

var (
	testNow      = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	testIdentity = models.Identity{OwnerID: "owner-1", Role: models.RoleNormal}
	errOutage    = errors.New("connection refused")
)

func newTestIngest(ledger repositories.LedgerRepository, index repositories.DedupeIndex, abort bool) *IngestService {
	detector := NewDuplicateDetector(ledger, index, zerolog.Nop())
	svc := NewIngestService(ledger, detector, abort, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func msg(body, sender string, date time.Time) models.BatchMessage {
	return models.BatchMessage{Body: body, Sender: sender, Date: models.NewTimestamp(date)}
}

// memoryIndex is a DedupeIndex backed by a map, optionally failing every call.
type memoryIndex struct {
	mu    sync.Mutex
	keys  map[string]bool
	fail  bool
	hits  int
	added int
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{keys: map[string]bool{}}
}

func (m *memoryIndex) Contains(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false, errOutage
	}
	found := m.keys[ownerID+"|"+string(role)+"|"+key.String()]
	if found {
		m.hits++
	}
	return found, nil
}

func (m *memoryIndex) Add(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errOutage
	}
	m.added++
	m.keys[ownerID+"|"+string(role)+"|"+key.String()] = true
	return nil
}

func (m *memoryIndex) Forget(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errOutage
	}
	m.keys = map[string]bool{}
	return nil
}

// flakyLedger fails AppendTransaction from the failAt-th call onwards.
type flakyLedger struct {
	repositories.LedgerRepository
	calls  int
	failAt int
}

func (f *flakyLedger) AppendTransaction(ctx context.Context, deviceName string, syncAt time.Time, tx *models.Transaction) error {
	f.calls++
	if f.calls >= f.failAt {
		return errOutage
	}
	return f.LedgerRepository.AppendTransaction(ctx, deviceName, syncAt, tx)
}

// racingLedger reports no duplicates on lookup so the store's constraint has to catch them.
type racingLedger struct {
	repositories.LedgerRepository
}

func (racingLedger) TransactionExists(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error) {
	return false, nil
}

// brokenDevices fails device creation.
type brokenDevices struct {
	repositories.LedgerRepository
}

func (brokenDevices) EnsureDevice(ctx context.Context, ownerID, name string, syncAt time.Time) (*models.Device, error) {
	return nil, errOutage
}

// cancellingLedger cancels the request while its cancelAt-th append is in flight.
type cancellingLedger struct {
	repositories.LedgerRepository
	cancel   context.CancelFunc
	calls    int
	cancelAt int
}

func (c *cancellingLedger) AppendTransaction(ctx context.Context, deviceName string, syncAt time.Time, tx *models.Transaction) error {
	c.calls++
	if c.calls == c.cancelAt {
		c.cancel()
		return ctx.Err()
	}
	return c.LedgerRepository.AppendTransaction(ctx, deviceName, syncAt, tx)
}
