package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salescalc/internal/cache"
	"salescalc/internal/domain"
	"salescalc/internal/stats"
	"salescalc/internal/store"
	"salescalc/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	aggregator := stats.NewAggregator(cache.NoopStatsCache{}, 5*time.Second)
	return New(repo, aggregator, Options{DefaultCartID: "main", AllowOversell: true})
}

func strPtr(v string) *string { return &v }

func TestUpdateCustomerMergesPartialFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateCustomer(ctx, domain.CustomerInput{Name: "Budi", Phone: "0812", Email: "budi@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateCustomer(ctx, created.ID, domain.CustomerUpdate{Phone: strPtr("0813")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Budi" || updated.Email != "budi@example.com" || updated.Phone != "0813" {
		t.Fatalf("expected merge, got %+v", updated)
	}

	if _, err := svc.UpdateCustomer(ctx, "cus-missing", domain.CustomerUpdate{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, domain.ProductInput{Name: "Headset", Price: decimal.RequireFromString("49.90"), Quantity: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	price := decimal.RequireFromString("44.90")
	if _, err := svc.UpdateProduct(ctx, created.ID, domain.ProductUpdate{Price: &price}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Headset" || got.Quantity != 4 || !got.Price.Equal(price) {
		t.Fatalf("unexpected product %+v", got)
	}

	if err := svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetProduct(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestCartAddItemDefaultsAndRejects(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	cart := svc.DefaultCart()

	line, err := cart.AddItem(ctx, "prd-seed-2", 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if line.Quantity != 1 {
		t.Fatalf("expected quantity 0 to mean 1, got %d", line.Quantity)
	}

	var vErr *domain.ValidationError
	if _, err := cart.AddItem(ctx, "prd-seed-2", -1); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := cart.AddItem(ctx, "prd-missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCartQuantityIsBoundedByStorage(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	cart := svc.DefaultCart()

	var vErr *domain.ValidationError
	if _, err := cart.AddItem(ctx, "prd-seed-2", domain.MaxQuantity+1); !errors.As(err, &vErr) || vErr.Field != "quantity" {
		t.Fatalf("expected quantity validation error, got %v", err)
	}

	line, err := cart.AddItem(ctx, "prd-seed-2", domain.MaxQuantity)
	if err != nil {
		t.Fatalf("add max: %v", err)
	}
	if _, err := cart.AddItem(ctx, "prd-seed-2", 1); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error when increment overflows, got %v", err)
	}
	if err := cart.SetQuantity(ctx, line.ID, domain.MaxQuantity+1); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error from set quantity, got %v", err)
	}

	lines, _ := cart.Lines(ctx)
	if len(lines) != 1 || lines[0].Quantity != domain.MaxQuantity {
		t.Fatalf("expected line left at max quantity, got %+v", lines)
	}
}

func TestCartViewUsesLivePrices(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	cart := svc.Cart("till-2")

	if _, err := cart.AddItem(ctx, "prd-seed-2", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := cart.AddItem(ctx, "prd-seed-2", 2); err != nil {
		t.Fatalf("add again: %v", err)
	}

	price := decimal.RequireFromString("10.00")
	if _, err := svc.UpdateProduct(ctx, "prd-seed-2", domain.ProductUpdate{Price: &price}); err != nil {
		t.Fatalf("update price: %v", err)
	}

	view, err := cart.View(ctx)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.CartID != "till-2" || len(view.Lines) != 1 || view.Lines[0].Quantity != 3 {
		t.Fatalf("unexpected view %+v", view)
	}
	if !view.Total.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected total 30 at live price, got %s", view.Total)
	}

	defaultLines, _ := svc.DefaultCart().Lines(ctx)
	if len(defaultLines) != 0 {
		t.Fatalf("expected default cart untouched, got %d lines", len(defaultLines))
	}
}

func TestCheckoutProducesSale(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	p, _ := svc.CreateProduct(ctx, domain.ProductInput{Name: "P", Price: decimal.NewFromInt(10), Quantity: 5})
	q, _ := svc.CreateProduct(ctx, domain.ProductInput{Name: "Q", Price: decimal.NewFromInt(5), Quantity: 5})
	cart := svc.DefaultCart()
	_, _ = cart.AddItem(ctx, p.ID, 2)
	_, _ = cart.AddItem(ctx, q.ID, 1)

	sale, err := cart.Checkout(ctx, domain.CheckoutRequest{CustomerID: "cus-seed-1"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if sale.Type != domain.TxTypeSale || !sale.Amount.Equal(decimal.NewFromInt(25)) || sale.PaymentMethod != domain.PaymentCash {
		t.Fatalf("unexpected sale %+v", sale)
	}
	resp := NewCheckoutResponse(sale)
	if resp.ItemCount != 3 || !resp.Total.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected response %+v", resp)
	}

	total, _ := cart.Total(ctx)
	if !total.IsZero() {
		t.Fatalf("expected empty cart, got total %s", total)
	}
	gotP, _ := svc.GetProduct(ctx, p.ID)
	if gotP.Quantity != 3 {
		t.Fatalf("expected stock 3, got %d", gotP.Quantity)
	}

	statement, err := svc.CustomerStatement(ctx, "cus-seed-1")
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if !statement.Consistent || !statement.ComputedBalance.Equal(decimal.NewFromInt(-25)) {
		t.Fatalf("unexpected statement %+v", statement)
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	cart := svc.DefaultCart()
	_, _ = cart.AddItem(ctx, "prd-seed-1", 1)

	var vErr *domain.ValidationError
	if _, err := cart.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: "barter"}); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	lines, _ := cart.Lines(ctx)
	if len(lines) != 1 {
		t.Fatalf("expected cart untouched, got %d lines", len(lines))
	}
}

func TestCheckoutHonoursOversellSetting(t *testing.T) {
	repo := memory.NewSeeded()
	svc := New(repo, nil, Options{AllowOversell: false})
	ctx := context.Background()
	cart := svc.DefaultCart()
	_, _ = cart.AddItem(ctx, "prd-seed-1", 11)

	if _, err := cart.Checkout(ctx, domain.CheckoutRequest{}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if _, err := svc.Cart("empty").Checkout(ctx, domain.CheckoutRequest{}); !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestRecordTransactionPreconditions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []domain.RecordTransactionRequest{
		{Type: domain.TxTypeCredit, Amount: decimal.Zero},
		{Type: domain.TxTypeDebit, Amount: decimal.NewFromInt(-5)},
		{Type: "refund", Amount: decimal.NewFromInt(5)},
		{Type: domain.TxTypeSale, Amount: decimal.NewFromInt(5), PaymentMethod: "barter"},
		{Type: domain.TxTypeCredit, Amount: decimal.RequireFromString("0.001")},
		{Type: domain.TxTypeDebit, Amount: decimal.RequireFromString("10.005")},
	}
	for _, req := range cases {
		var vErr *domain.ValidationError
		if _, err := svc.RecordTransaction(ctx, req); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}

	_, err := svc.RecordTransaction(ctx, domain.RecordTransactionRequest{Type: domain.TxTypeCredit, Amount: decimal.NewFromInt(5), CustomerID: "cus-missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}
}

func TestLedgerBalanceFold(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, domain.CustomerInput{Name: "Fold"})

	for _, req := range []domain.RecordTransactionRequest{
		{Type: domain.TxTypeCredit, Amount: decimal.NewFromInt(100), CustomerID: c.ID},
		{Type: domain.TxTypeDebit, Amount: decimal.NewFromInt(30), CustomerID: c.ID},
		{Type: domain.TxTypeSale, Amount: decimal.NewFromInt(20), CustomerID: c.ID},
	} {
		if _, err := svc.RecordTransaction(ctx, req); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	statement, err := svc.CustomerStatement(ctx, c.ID)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(statement.Transactions) != 3 || !statement.ComputedBalance.Equal(decimal.NewFromInt(50)) || !statement.Consistent {
		t.Fatalf("unexpected statement %+v", statement)
	}
}

func TestDashboardReflectsWrites(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	before, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	_, _ = svc.CreateCustomer(ctx, domain.CustomerInput{Name: "New"})
	_, _ = svc.RecordTransaction(ctx, domain.RecordTransactionRequest{Type: domain.TxTypeDebit, Amount: decimal.NewFromInt(12), CustomerID: "cus-seed-2"})

	after, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if after.TotalCustomers != before.TotalCustomers+1 {
		t.Fatalf("expected customer count to grow, got %d -> %d", before.TotalCustomers, after.TotalCustomers)
	}
	if !after.OutstandingBalance.Equal(decimal.NewFromInt(12)) || !after.TotalDebits.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected dashboard %+v", after)
	}
}
