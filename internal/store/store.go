package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"salescalc/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStorage           = errors.New("storage failure")
)

type CustomerRepository interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

type ProductRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// DeleteProduct also removes cart lines referencing the product.
	DeleteProduct(ctx context.Context, id string) error
}

type CartRepository interface {
	AddCartItem(ctx context.Context, cartID string, productID string, qty int) (*domain.CartLine, error)
	ListCartLines(ctx context.Context, cartID string) ([]domain.CartLine, error)
	SetCartLineQuantity(ctx context.Context, cartID string, lineID string, qty int) error
	RemoveCartLine(ctx context.Context, cartID string, lineID string) error
	ClearCart(ctx context.Context, cartID string) error
}

type LedgerRepository interface {
	// RecordTransaction appends tx and applies its balance effect to the
	// linked customer in the same storage transaction.
	RecordTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	ListCustomerTransactions(ctx context.Context, customerID string) ([]domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	// Checkout converts the cart into a sale atomically.
	Checkout(ctx context.Context, order domain.CheckoutOrder) (*domain.Transaction, error)
}

type StatsRepository interface {
	CountCustomers(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
	GetLedgerTotals(ctx context.Context) (domain.LedgerTotals, error)
	ListCustomerBalances(ctx context.Context) ([]decimal.Decimal, error)
}

type Repository interface {
	CustomerRepository
	ProductRepository
	CartRepository
	LedgerRepository
	StatsRepository
}
