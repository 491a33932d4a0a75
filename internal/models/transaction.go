package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionSent     TransactionType = "sent"
	TransactionReceived TransactionType = "received"
)

func (t TransactionType) Valid() bool {
	return t == TransactionSent || t == TransactionReceived
}

// Transaction is immutable once stored.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	DeviceID  uuid.UUID       `json:"device_id"`
	OwnerID   string          `json:"owner_id"`
	OwnerRole Role            `json:"owner_role"`
	Sender    string          `json:"sender"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Type      TransactionType `json:"type"`
	CreatedAt time.Time       `json:"created_at"`

	// Seq is the store-wide insertion order, used to break date ties.
	Seq int64 `json:"-"`
}

// Key returns the logical duplicate key of the transaction within its owner and role.
func (t *Transaction) Key() DedupeKey {
	return DedupeKey{Amount: t.Amount, Date: t.Date, Type: t.Type}
}

// DedupeKey is (amount, date, type). Together with owner and role it is unique per ledger.
type DedupeKey struct {
	Amount decimal.Decimal
	Date   time.Time
	Type   TransactionType
}

// String encodes the key so that numerically equal amounts and equal
// instants always produce the same value.
func (k DedupeKey) String() string {
	return fmt.Sprintf("%s|%d|%s", k.Amount.String(), k.Date.UnixMilli(), k.Type)
}

// ParsedTransaction is a candidate transaction before duplicate checking or storage.
type ParsedTransaction struct {
	Amount decimal.Decimal `json:"amount"`
	Type   TransactionType `json:"type"`
	Date   time.Time       `json:"date"`
	Sender string          `json:"sender,omitempty"`
}

func (p ParsedTransaction) Key() DedupeKey {
	return DedupeKey{Amount: p.Amount, Date: p.Date, Type: p.Type}
}
