package models

import "github.com/shopspring/decimal"

type SenderUsage struct {
	Sender           string          `json:"sender"`
	TransactionCount int             `json:"transactionCount"`
	NetAmount        decimal.Decimal `json:"netAmount"`
}

// SenderStatistics is derived on demand from an owner's full ledger.
type SenderStatistics struct {
	TopUsed        []SenderUsage              `json:"topUsed"`
	LeastUsed      []SenderUsage              `json:"leastUsed"`
	UsageBreakdown map[string]decimal.Decimal `json:"usageBreakdown"`
}
