package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity bounds stock and cart quantities to what an INTEGER column holds.
const MaxQuantity = math.MaxInt32

// MoneyScale is the number of fractional digits stored for money values.
const MoneyScale = 2

var maxMoney = decimal.New(1, 10)

// IsStorableMoney reports whether d fits a NUMERIC(12,2) column without
// rounding.
func IsStorableMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale)) && d.Abs().LessThan(maxMoney)
}

// ValidationError is returned for caller-level input problems.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (in CustomerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "name required")
	}
	return nil
}

func (u CustomerUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return invalid("name", "name required")
	}
	return nil
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "name required")
	}
	if in.Price.IsNegative() {
		return invalid("price", "price must be numeric and non-negative")
	}
	if !IsStorableMoney(in.Price) {
		return invalid("price", "price must have at most 2 decimal places and fewer than 11 integer digits")
	}
	if in.Quantity < 0 || in.Quantity > MaxQuantity {
		return invalid("quantity", "quantity must be a non-negative integer")
	}
	return nil
}

func (u ProductUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return invalid("name", "name required")
	}
	if u.Price != nil && u.Price.IsNegative() {
		return invalid("price", "price must be numeric and non-negative")
	}
	if u.Price != nil && !IsStorableMoney(*u.Price) {
		return invalid("price", "price must have at most 2 decimal places and fewer than 11 integer digits")
	}
	if u.Quantity != nil && (*u.Quantity < 0 || *u.Quantity > MaxQuantity) {
		return invalid("quantity", "quantity must be a non-negative integer")
	}
	return nil
}

func (r RecordTransactionRequest) Validate() error {
	if !IsValidTxType(r.Type) {
		return invalid("type", "type must be one of sale, credit, debit")
	}
	if !r.Amount.IsPositive() {
		return invalid("amount", "amount must be greater than zero")
	}
	if !IsStorableMoney(r.Amount) {
		return invalid("amount", "amount must have at most 2 decimal places and fewer than 11 integer digits")
	}
	if !IsSupportedPaymentMethod(r.PaymentMethod) {
		return invalid("payment_method", "payment method must be one of cash, card, bank_transfer")
	}
	return nil
}
