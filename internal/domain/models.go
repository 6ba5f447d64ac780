package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Email     string          `json:"email,omitempty"`
	Address   string          `json:"address,omitempty"`
	Image     string          `json:"image,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Image   string `json:"image"`
}

// CustomerUpdate is a partial update; nil fields keep their stored value.
type CustomerUpdate struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
	Image   *string `json:"image,omitempty"`
}

func (u CustomerUpdate) Apply(c Customer) Customer {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Address != nil {
		c.Address = *u.Address
	}
	if u.Image != nil {
		c.Image = *u.Image
	}
	return c
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductInput struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

type ProductUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Description *string          `json:"description,omitempty"`
	Image       *string          `json:"image,omitempty"`
}

func (u ProductUpdate) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	return p
}

// CartLine references a product weakly; Name, Price and Image are resolved
// from the product at read time, so the price shown is always the live one.
type CartLine struct {
	ID           string          `json:"id"`
	CartID       string          `json:"cart_id"`
	ProductID    string          `json:"product_id"`
	Quantity     int             `json:"quantity"`
	ProductName  string          `json:"product_name"`
	Price        decimal.Decimal `json:"price"`
	ProductImage string          `json:"product_image,omitempty"`
	StockOnHand  int             `json:"stock_on_hand"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartView struct {
	CartID string          `json:"cart_id"`
	Lines  []CartLine      `json:"lines"`
	Total  decimal.Decimal `json:"total"`
}

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type TransactionItem struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

type Transaction struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customer_id,omitempty"`
	CustomerName  string            `json:"customer_name"`
	Type          string            `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	Note          string            `json:"note,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []TransactionItem `json:"items,omitempty"`
}

type RecordTransactionRequest struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerID    string          `json:"customer_id"`
	Note          string          `json:"note"`
	PaymentMethod string          `json:"payment_method"`
}

type CheckoutRequest struct {
	CustomerID    string `json:"customer_id"`
	PaymentMethod string `json:"payment_method"`
	Note          string `json:"note"`
}

// CheckoutOrder is what the service hands to the repository; the repository
// performs every step of it in one storage transaction.
type CheckoutOrder struct {
	TransactionID string
	CartID        string
	CustomerID    string
	PaymentMethod string
	Note          string
	AllowOversell bool
	CreatedAt     time.Time
}

type CheckoutResponse struct {
	TransactionID string          `json:"transaction_id"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"item_count"`
	CustomerID    string          `json:"customer_id,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     string          `json:"created_at"`
}

type CustomerStatement struct {
	Customer        Customer        `json:"customer"`
	Transactions    []Transaction   `json:"transactions"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Consistent      bool            `json:"consistent"`
}

// LedgerTotals is the raw aggregate read from a repository.
type LedgerTotals struct {
	Transactions int64           `json:"total_transactions"`
	Sales        decimal.Decimal `json:"total_sales"`
	Credits      decimal.Decimal `json:"total_credits"`
	Debits       decimal.Decimal `json:"total_debits"`
}

type DashboardStats struct {
	TotalCustomers     int64           `json:"total_customers"`
	TotalProducts      int64           `json:"total_products"`
	TotalSales         decimal.Decimal `json:"total_sales"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	TotalTransactions  int64           `json:"total_transactions"`
	TotalCredits       decimal.Decimal `json:"total_credits"`
	TotalDebits        decimal.Decimal `json:"total_debits"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

const (
	TxTypeSale   = "sale"
	TxTypeCredit = "credit"
	TxTypeDebit  = "debit"
)

const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentBankTransfer = "bank_transfer"
)

const (
	AnonymousCustomerName = "Anonymous"
	UnknownCustomerName   = "Unknown customer"
)
