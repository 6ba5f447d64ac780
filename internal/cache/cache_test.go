package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salescalc/internal/domain"
)

func TestNoopStatsCacheAlwaysMisses(t *testing.T) {
	var c StatsCache = NoopStatsCache{}
	ctx := context.Background()

	if err := c.Set(ctx, StatsKey, &domain.DashboardStats{TotalCustomers: 3}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, hit, err := c.Get(ctx, StatsKey); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}
}

func TestRedisStatsCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("SALESCALC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SALESCALC_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisStatsCache(addr, os.Getenv("SALESCALC_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() {
		_ = c.Close()
	})
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := StatsKey + ":test"
	t.Cleanup(func() {
		_ = c.Delete(ctx, key)
	})

	want := &domain.DashboardStats{
		TotalCustomers:     2,
		TotalSales:         decimal.RequireFromString("1029.98"),
		OutstandingBalance: decimal.RequireFromString("12.50"),
	}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, hit, err := c.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if !got.TotalSales.Equal(want.TotalSales) || !got.OutstandingBalance.Equal(want.OutstandingBalance) {
		t.Fatalf("unexpected cached stats %+v", got)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Fatalf("expected miss after delete")
	}
}
