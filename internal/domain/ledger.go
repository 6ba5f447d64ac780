package domain

import "github.com/shopspring/decimal"

func IsValidTxType(txType string) bool {
	switch txType {
	case TxTypeSale, TxTypeCredit, TxTypeDebit:
		return true
	default:
		return false
	}
}

// IsSupportedPaymentMethod accepts the empty method, which ledger entries
// recorded by hand are allowed to omit.
func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case "", PaymentCash, PaymentCard, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

// BalanceEffect is the signed change a transaction applies to its customer's
// balance. Credits raise it; sales and debits lower it.
func BalanceEffect(txType string, amount decimal.Decimal) decimal.Decimal {
	switch txType {
	case TxTypeCredit:
		return amount
	case TxTypeSale, TxTypeDebit:
		return amount.Neg()
	default:
		return decimal.Zero
	}
}

func FoldBalance(transactions []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range transactions {
		balance = balance.Add(BalanceEffect(tx.Type, tx.Amount))
	}
	return balance
}

// CustomerLabel resolves the display name shown next to a ledger entry.
func CustomerLabel(customerID string, name string, found bool) string {
	if customerID == "" {
		return AnonymousCustomerName
	}
	if !found || name == "" {
		return UnknownCustomerName
	}
	return name
}

// OutstandingBalance sums what customers with a negative balance owe.
func OutstandingBalance(balances []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		if b.IsNegative() {
			total = total.Add(b.Neg())
		}
	}
	return total
}
