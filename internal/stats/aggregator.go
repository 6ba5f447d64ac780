package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"salescalc/internal/cache"
	"salescalc/internal/domain"
	"salescalc/internal/store"
)

// Aggregator computes dashboard figures from a repository, serving them from
// cache while the entry is fresh.
type Aggregator struct {
	cache    cache.StatsCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAggregator(cacheStore cache.StatsCache, cacheTTL time.Duration) *Aggregator {
	if cacheStore == nil {
		cacheStore = cache.NoopStatsCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 15 * time.Second
	}

	return &Aggregator{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard returns the cached figures when present. Cache read and write
// failures fall through to the repository; repository failures are returned.
func (a *Aggregator) Dashboard(ctx context.Context, repo store.StatsRepository) (*domain.DashboardStats, error) {
	if cached, ok, err := a.cache.Get(ctx, cache.StatsKey); err == nil && ok {
		return cached, nil
	}

	var (
		customers int64
		products  int64
		totals    domain.LedgerTotals
		balances  []decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := repo.CountCustomers(gctx)
		if err != nil {
			return fmt.Errorf("count customers: %w", err)
		}
		customers = n
		return nil
	})
	g.Go(func() error {
		n, err := repo.CountProducts(gctx)
		if err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		products = n
		return nil
	})
	g.Go(func() error {
		t, err := repo.GetLedgerTotals(gctx)
		if err != nil {
			return fmt.Errorf("ledger totals: %w", err)
		}
		totals = t
		return nil
	})
	g.Go(func() error {
		b, err := repo.ListCustomerBalances(gctx)
		if err != nil {
			return fmt.Errorf("customer balances: %w", err)
		}
		balances = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &domain.DashboardStats{
		TotalCustomers:     customers,
		TotalProducts:      products,
		TotalSales:         totals.Sales,
		OutstandingBalance: domain.OutstandingBalance(balances),
		TotalTransactions:  totals.Transactions,
		TotalCredits:       totals.Credits,
		TotalDebits:        totals.Debits,
		GeneratedAt:        a.now(),
	}
	_ = a.cache.Set(ctx, cache.StatsKey, stats, a.cacheTTL)
	return stats, nil
}

// Invalidate drops the cached figures so the next read recomputes them.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	return a.cache.Delete(ctx, cache.StatsKey)
}
