package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/utils"
)

const pgUniqueViolation = "23505"

const transactionColumns = `id, device_id, owner_id, owner_role, sender, amount::text, occurred_at, type, created_at, seq`

type PostgresLedgerRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPostgresLedgerRepository(pool *pgxpool.Pool, loc *time.Location) *PostgresLedgerRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresLedgerRepository{pool: pool, loc: loc}
}

// EnsureDevice returns the named device, creating it with syncAt as its
// last sync time when the owner has never synced from it.
func (r *PostgresLedgerRepository) EnsureDevice(ctx context.Context, ownerID, name string, syncAt time.Time) (*models.Device, error) {
	if err := validateDevice(ownerID, name); err != nil {
		return nil, err
	}

	// the no-op update makes RETURNING yield the existing row on conflict
	query := `INSERT INTO ledger_devices (owner_id, name, last_sync_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (owner_id, name) DO UPDATE SET owner_id = EXCLUDED.owner_id
	          RETURNING id, owner_id, name, last_sync_at, created_at`

	var device models.Device
	err := r.pool.QueryRow(ctx, query, ownerID, name, syncAt).Scan(
		&device.ID,
		&device.OwnerID,
		&device.Name,
		&device.LastSyncTimestamp,
		&device.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure device: %w", err)
	}
	return &device, nil
}

// AppendTransaction upserts the device and inserts the transaction in one
// database transaction. A concurrent writer that already stored the same
// duplicate key makes the insert fail with ErrDuplicate.
func (r *PostgresLedgerRepository) AppendTransaction(ctx context.Context, deviceName string, syncAt time.Time, tx *models.Transaction) error {
	if err := validateTransaction(deviceName, tx); err != nil {
		return err
	}

	dbTx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	deviceQuery := `INSERT INTO ledger_devices (owner_id, name, last_sync_at)
	                VALUES ($1, $2, $3)
	                ON CONFLICT (owner_id, name) DO UPDATE SET last_sync_at = EXCLUDED.last_sync_at
	                RETURNING id`

	if err := dbTx.QueryRow(ctx, deviceQuery, tx.OwnerID, deviceName, syncAt).Scan(&tx.DeviceID); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	insertQuery := `INSERT INTO ledger_transactions (device_id, owner_id, owner_role, sender, amount, occurred_at, type)
	                VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
	                RETURNING id, seq, created_at`

	err = dbTx.QueryRow(ctx, insertQuery,
		tx.DeviceID,
		tx.OwnerID,
		string(tx.OwnerRole),
		tx.Sender,
		tx.Amount.String(),
		tx.Date,
		string(tx.Type),
	).Scan(&tx.ID, &tx.Seq, &tx.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) TouchDevice(ctx context.Context, ownerID, name string, syncAt time.Time) error {
	if err := validateDevice(ownerID, name); err != nil {
		return err
	}

	query := `UPDATE ledger_devices SET last_sync_at = $3 WHERE owner_id = $1 AND name = $2`

	result, err := r.pool.Exec(ctx, query, ownerID, name, syncAt)
	if err != nil {
		return fmt.Errorf("failed to touch device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TransactionExists is a point lookup on the duplicate-key constraint.
func (r *PostgresLedgerRepository) TransactionExists(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error) {
	query := `SELECT EXISTS (
	              SELECT 1 FROM ledger_transactions
	              WHERE owner_id = $1 AND owner_role = $2 AND amount = $3::numeric
	                AND occurred_at = $4 AND type = $5)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, ownerID, string(role), key.Amount.String(), key.Date, string(key.Type)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

func (r *PostgresLedgerRepository) ListDevices(ctx context.Context, ownerID string) ([]*models.Device, error) {
	query := `SELECT id, owner_id, name, last_sync_at, created_at
	          FROM ledger_devices
	          WHERE owner_id = $1
	          ORDER BY created_at ASC, name ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []*models.Device{}
	for rows.Next() {
		var device models.Device
		err := rows.Scan(
			&device.ID,
			&device.OwnerID,
			&device.Name,
			&device.LastSyncTimestamp,
			&device.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// ListDeviceTransactions returns the device log in append order.
func (r *PostgresLedgerRepository) ListDeviceTransactions(ctx context.Context, ownerID, name string) ([]*models.Transaction, error) {
	if err := validateDevice(ownerID, name); err != nil {
		return nil, err
	}

	var deviceID string
	err := r.pool.QueryRow(ctx, `SELECT id::text FROM ledger_devices WHERE owner_id = $1 AND name = $2`, ownerID, name).Scan(&deviceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	query := `SELECT ` + transactionColumns + `
	          FROM ledger_transactions
	          WHERE device_id = $1::uuid
	          ORDER BY seq ASC`

	return r.queryTransactions(ctx, query, deviceID)
}

func (r *PostgresLedgerRepository) ListAllTransactions(ctx context.Context, ownerID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + transactionColumns + `
	          FROM ledger_transactions
	          WHERE owner_id = $1
	          ORDER BY occurred_at DESC, seq ASC
	          LIMIT $2`

	return r.queryTransactions(ctx, query, ownerID, limit)
}

// ListTransactionsInMonth covers the whole calendar month in the repository's zone.
func (r *PostgresLedgerRepository) ListTransactionsInMonth(ctx context.Context, ownerID string, month time.Month, year int) ([]*models.Transaction, error) {
	start, end := utils.MonthBounds(r.loc, year, month)

	query := `SELECT ` + transactionColumns + `
	          FROM ledger_transactions
	          WHERE owner_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	          ORDER BY occurred_at DESC, seq ASC`

	return r.queryTransactions(ctx, query, ownerID, start, end)
}

// DeleteOwner removes every device of the owner; transactions cascade.
func (r *PostgresLedgerRepository) DeleteOwner(ctx context.Context, ownerID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM ledger_devices WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete owner ledger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresLedgerRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		tx     models.Transaction
		role   string
		txType string
		amount string
	)
	err := row.Scan(
		&tx.ID,
		&tx.DeviceID,
		&tx.OwnerID,
		&role,
		&tx.Sender,
		&amount,
		&tx.Date,
		&txType,
		&tx.CreatedAt,
		&tx.Seq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	tx.OwnerRole = models.Role(role)
	tx.Type = models.TransactionType(txType)
	return &tx, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
