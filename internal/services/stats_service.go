package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/repositories"
)

const (
	rankedSenders     = 5
	deviceReadWorkers = 4
)

var hundred = decimal.NewFromInt(100)

// StatsService is the aggregation engine over an owner's full ledger.
type StatsService struct {
	ledger repositories.LedgerRepository
}

func NewStatsService(ledger repositories.LedgerRepository) *StatsService {
	return &StatsService{ledger: ledger}
}

func (s *StatsService) SenderStatistics(ctx context.Context, ownerID string) (*models.SenderStatistics, error) {
	txs, err := s.flatten(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return AggregateSenders(txs), nil
}

// flatten reads every device log and concatenates them in device order.
func (s *StatsService) flatten(ctx context.Context, ownerID string) ([]*models.Transaction, error) {
	devices, err := s.ledger.ListDevices(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	logs := make([][]*models.Transaction, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deviceReadWorkers)
	for i, device := range devices {
		g.Go(func() error {
			txs, err := s.ledger.ListDeviceTransactions(gctx, ownerID, device.Name)
			if err != nil {
				return fmt.Errorf("failed to read device %q: %w", device.Name, err)
			}
			logs[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*models.Transaction
	for _, log := range logs {
		all = append(all, log...)
	}
	return all, nil
}

// AggregateSenders groups by sender and ranks by (count desc, sender asc).
// TopUsed holds the first five. LeastUsed holds up to five senders from the
// tail of the ranking that are not already in TopUsed, in (count asc,
// sender asc) order. UsageBreakdown covers every sender.
func AggregateSenders(txs []*models.Transaction) *models.SenderStatistics {
	stats := &models.SenderStatistics{
		TopUsed:        []models.SenderUsage{},
		LeastUsed:      []models.SenderUsage{},
		UsageBreakdown: map[string]decimal.Decimal{},
	}
	if len(txs) == 0 {
		return stats
	}

	groups := map[string]*models.SenderUsage{}
	for _, tx := range txs {
		g, ok := groups[tx.Sender]
		if !ok {
			g = &models.SenderUsage{Sender: tx.Sender, NetAmount: decimal.Zero}
			groups[tx.Sender] = g
		}
		g.TransactionCount++
		if tx.Type == models.TransactionReceived {
			g.NetAmount = g.NetAmount.Add(tx.Amount)
		} else {
			g.NetAmount = g.NetAmount.Sub(tx.Amount)
		}
	}

	ranked := make([]models.SenderUsage, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, *g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TransactionCount != ranked[j].TransactionCount {
			return ranked[i].TransactionCount > ranked[j].TransactionCount
		}
		return ranked[i].Sender < ranked[j].Sender
	})

	topN := min(rankedSenders, len(ranked))
	stats.TopUsed = append(stats.TopUsed, ranked[:topN]...)

	tailStart := max(topN, len(ranked)-rankedSenders)
	stats.LeastUsed = append(stats.LeastUsed, ranked[tailStart:]...)
	sort.Slice(stats.LeastUsed, func(i, j int) bool {
		if stats.LeastUsed[i].TransactionCount != stats.LeastUsed[j].TransactionCount {
			return stats.LeastUsed[i].TransactionCount < stats.LeastUsed[j].TransactionCount
		}
		return stats.LeastUsed[i].Sender < stats.LeastUsed[j].Sender
	})

	total := decimal.NewFromInt(int64(len(txs)))
	for _, g := range ranked {
		share := decimal.NewFromInt(int64(g.TransactionCount)).Mul(hundred).Div(total)
		stats.UsageBreakdown[g.Sender] = share.Round(2)
	}
	return stats
}
