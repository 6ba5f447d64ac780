package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}

func TestFoldBalanceCreditDebitSale(t *testing.T) {
	txs := []Transaction{
		{Type: TxTypeCredit, Amount: dec(t, "100")},
		{Type: TxTypeDebit, Amount: dec(t, "30")},
		{Type: TxTypeSale, Amount: dec(t, "20")},
	}
	got := FoldBalance(txs)
	if !got.Equal(dec(t, "50")) {
		t.Fatalf("expected balance 50, got %s", got)
	}
}

func TestFoldBalanceEmptyHistory(t *testing.T) {
	if !FoldBalance(nil).IsZero() {
		t.Fatalf("expected zero balance for empty history")
	}
}

func TestCustomerLabel(t *testing.T) {
	if got := CustomerLabel("", "", false); got != AnonymousCustomerName {
		t.Fatalf("expected anonymous label, got %q", got)
	}
	if got := CustomerLabel("cus-1", "", false); got != UnknownCustomerName {
		t.Fatalf("expected unknown label for deleted customer, got %q", got)
	}
	if got := CustomerLabel("cus-1", "John Doe", true); got != "John Doe" {
		t.Fatalf("expected customer name, got %q", got)
	}
}

func TestOutstandingBalanceOnlyCountsDebtors(t *testing.T) {
	got := OutstandingBalance([]decimal.Decimal{dec(t, "-40.50"), dec(t, "25"), dec(t, "-9.50"), decimal.Zero})
	if !got.Equal(dec(t, "50")) {
		t.Fatalf("expected outstanding 50, got %s", got)
	}
}

func TestRecordTransactionRequestValidate(t *testing.T) {
	var verr *ValidationError

	err := RecordTransactionRequest{Type: TxTypeCredit, Amount: decimal.Zero}.Validate()
	if !errors.As(err, &verr) || verr.Field != "amount" {
		t.Fatalf("expected amount validation error, got %v", err)
	}

	err = RecordTransactionRequest{Type: "refund", Amount: dec(t, "1")}.Validate()
	if !errors.As(err, &verr) || verr.Field != "type" {
		t.Fatalf("expected type validation error, got %v", err)
	}

	err = RecordTransactionRequest{Type: TxTypeDebit, Amount: dec(t, "1"), PaymentMethod: "qris"}.Validate()
	if !errors.As(err, &verr) || verr.Field != "payment_method" {
		t.Fatalf("expected payment method validation error, got %v", err)
	}

	if err := (RecordTransactionRequest{Type: TxTypeSale, Amount: dec(t, "0.01")}).Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestMoneyBeyondStoredScaleIsRejected(t *testing.T) {
	for _, raw := range []string{"0.001", "10.005", "10000000000"} {
		var verr *ValidationError
		err := RecordTransactionRequest{Type: TxTypeCredit, Amount: dec(t, raw)}.Validate()
		if !errors.As(err, &verr) || verr.Field != "amount" {
			t.Fatalf("amount %s: expected amount validation error, got %v", raw, err)
		}
		if err := (ProductInput{Name: "Mouse", Price: dec(t, raw)}).Validate(); err == nil {
			t.Fatalf("price %s: expected product input to be rejected", raw)
		}
		price := dec(t, raw)
		if err := (ProductUpdate{Price: &price}).Validate(); err == nil {
			t.Fatalf("price %s: expected product update to be rejected", raw)
		}
	}

	// Trailing zeros do not change the value.
	if err := (RecordTransactionRequest{Type: TxTypeCredit, Amount: dec(t, "10.500")}).Validate(); err != nil {
		t.Fatalf("expected 10.500 to be accepted, got %v", err)
	}
	if err := (ProductInput{Name: "Mouse", Price: dec(t, "9999999999.99"), Quantity: MaxQuantity}).Validate(); err != nil {
		t.Fatalf("expected upper bounds to be accepted, got %v", err)
	}
}

func TestProductInputValidate(t *testing.T) {
	if err := (ProductInput{Name: " ", Price: dec(t, "1")}).Validate(); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
	if err := (ProductInput{Name: "Mouse", Price: dec(t, "-0.01")}).Validate(); err == nil {
		t.Fatalf("expected negative price to be rejected")
	}
	if err := (ProductInput{Name: "Mouse", Price: decimal.Zero, Quantity: 3}).Validate(); err != nil {
		t.Fatalf("expected free product to be valid, got %v", err)
	}
}

func TestProductUpdateApplyKeepsUnsetFields(t *testing.T) {
	original := Product{ID: "prd-1", Name: "Laptop", Price: dec(t, "999.99"), Quantity: 10, Description: "fast"}
	price := dec(t, "50")
	updated := ProductUpdate{Price: &price}.Apply(original)

	if !updated.Price.Equal(price) {
		t.Fatalf("expected price 50, got %s", updated.Price)
	}
	if updated.Name != original.Name || updated.Quantity != original.Quantity || updated.Description != original.Description {
		t.Fatalf("expected other fields unchanged, got %+v", updated)
	}
}
