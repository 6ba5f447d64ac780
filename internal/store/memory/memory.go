package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"salescalc/internal/domain"
	"salescalc/internal/store"
	"salescalc/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	customers        map[string]domain.Customer
	products         map[string]domain.Product
	cartLines        map[string]map[string]domain.CartLine
	transactions     []*domain.Transaction
	transactionsByID map[string]*domain.Transaction
}

func New() *Store {
	return &Store{
		customers:        make(map[string]domain.Customer),
		products:         make(map[string]domain.Product),
		cartLines:        make(map[string]map[string]domain.CartLine),
		transactions:     make([]*domain.Transaction, 0, 64),
		transactionsByID: make(map[string]*domain.Transaction),
	}
}

// NewSeeded returns a store holding the demo customers and products. Seed
// rows keep their fixed ids; every later create assigns a fresh one.
func NewSeeded() *Store {
	s := New()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	customers := []domain.Customer{
		{ID: "cus-seed-1", Name: "John Doe", Phone: "+1234567890", Email: "john@example.com", Address: "123 Main St, City"},
		{ID: "cus-seed-2", Name: "Jane Smith", Phone: "+0987654321", Email: "jane@example.com", Address: "456 Oak Ave, Town"},
	}
	for i, c := range customers {
		c.Balance = decimal.Zero
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.customers[c.ID] = c
	}

	products := []domain.Product{
		{ID: "prd-seed-1", Name: "Laptop", Price: decimal.RequireFromString("999.99"), Quantity: 10, Description: "High-performance laptop"},
		{ID: "prd-seed-2", Name: "Mouse", Price: decimal.RequireFromString("29.99"), Quantity: 50, Description: "Wireless optical mouse"},
		{ID: "prd-seed-3", Name: "Keyboard", Price: decimal.RequireFromString("79.99"), Quantity: 25, Description: "Mechanical keyboard"},
	}
	for i, p := range products {
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		s.products[p.ID] = p
	}

	return s
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer.ID = xid.New("cus")
	customer.Balance = decimal.Zero
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	// Balance belongs to the ledger and creation time never moves.
	customer.Balance = existing.Balance
	customer.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = xid.New("prd")
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	for _, lines := range s.cartLines {
		for lineID, line := range lines {
			if line.ProductID == id {
				delete(lines, lineID)
			}
		}
	}
	return nil
}

func (s *Store) AddCartItem(_ context.Context, cartID string, productID string, qty int) (*domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}

	lines, ok := s.cartLines[cartID]
	if !ok {
		lines = make(map[string]domain.CartLine)
		s.cartLines[cartID] = lines
	}

	for id, line := range lines {
		if line.ProductID != productID {
			continue
		}
		if line.Quantity > domain.MaxQuantity-qty {
			return nil, &domain.ValidationError{Field: "quantity", Message: "cart line quantity would exceed 2147483647"}
		}
		line.Quantity += qty
		lines[id] = line
		joined := joinLine(line, product)
		return &joined, nil
	}

	line := domain.CartLine{
		ID:        xid.New("line"),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: time.Now().UTC(),
	}
	lines[line.ID] = line
	joined := joinLine(line, product)
	return &joined, nil
}

func (s *Store) ListCartLines(_ context.Context, cartID string) ([]domain.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cartLinesLocked(cartID), nil
}

func (s *Store) SetCartLineQuantity(_ context.Context, cartID string, lineID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.cartLines[cartID]
	line, exists := lines[lineID]
	if qty <= 0 {
		if exists {
			delete(lines, lineID)
		}
		return nil
	}
	if !exists {
		return store.ErrNotFound
	}
	line.Quantity = qty
	lines[lineID] = line
	return nil
}

func (s *Store) RemoveCartLine(_ context.Context, cartID string, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lines, ok := s.cartLines[cartID]; ok {
		delete(lines, lineID)
	}
	return nil
}

func (s *Store) ClearCart(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cartLines, cartID)
	return nil
}

func (s *Store) RecordTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.CustomerID != "" {
		if _, exists := s.customers[tx.CustomerID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	s.appendTransactionLocked(&tx)
	return s.annotateLocked(&tx), nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listTransactionsLocked(func(*domain.Transaction) bool { return true }), nil
}

func (s *Store) ListCustomerTransactions(_ context.Context, customerID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listTransactionsLocked(func(tx *domain.Transaction) bool {
		return tx.CustomerID == customerID
	}), nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return s.annotateLocked(tx), nil
}

// Checkout validates the whole order before mutating anything, so a failure
// leaves the store exactly as it was.
func (s *Store) Checkout(_ context.Context, order domain.CheckoutOrder) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.cartLinesLocked(order.CartID)
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if order.CustomerID != "" {
		if _, exists := s.customers[order.CustomerID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	if order.TransactionID == "" {
		order.TransactionID = xid.New("tx")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	total := decimal.Zero
	items := make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		if !order.AllowOversell && line.StockOnHand < line.Quantity {
			return nil, store.ErrInsufficientStock
		}
		items = append(items, domain.TransactionItem{
			ID:            xid.New("txi"),
			TransactionID: order.TransactionID,
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			UnitPrice:     line.Price,
		})
		total = total.Add(line.Subtotal())
	}
	if !total.IsPositive() {
		return nil, &domain.ValidationError{Field: "total", Message: "checkout total must be greater than zero"}
	}

	for _, line := range lines {
		product := s.products[line.ProductID]
		product.Quantity -= line.Quantity
		s.products[line.ProductID] = product
	}

	tx := &domain.Transaction{
		ID:            order.TransactionID,
		CustomerID:    order.CustomerID,
		Type:          domain.TxTypeSale,
		Amount:        total,
		Note:          order.Note,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
		Items:         items,
	}
	s.appendTransactionLocked(tx)
	delete(s.cartLines, order.CartID)

	return s.annotateLocked(tx), nil
}

func (s *Store) CountCustomers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.customers)), nil
}

func (s *Store) CountProducts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *Store) GetLedgerTotals(_ context.Context) (domain.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.LedgerTotals{Sales: decimal.Zero, Credits: decimal.Zero, Debits: decimal.Zero}
	for _, tx := range s.transactions {
		totals.Transactions++
		switch tx.Type {
		case domain.TxTypeSale:
			totals.Sales = totals.Sales.Add(tx.Amount)
		case domain.TxTypeCredit:
			totals.Credits = totals.Credits.Add(tx.Amount)
		case domain.TxTypeDebit:
			totals.Debits = totals.Debits.Add(tx.Amount)
		}
	}
	return totals, nil
}

func (s *Store) ListCustomerBalances(_ context.Context) ([]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make([]decimal.Decimal, 0, len(s.customers))
	for _, c := range s.customers {
		balances = append(balances, c.Balance)
	}
	return balances, nil
}

func (s *Store) appendTransactionLocked(tx *domain.Transaction) {
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	stored := cloneTransaction(tx)
	stored.CustomerName = ""
	s.transactions = append(s.transactions, stored)
	s.transactionsByID[stored.ID] = stored

	if tx.CustomerID == "" {
		return
	}
	customer := s.customers[tx.CustomerID]
	customer.Balance = customer.Balance.Add(domain.BalanceEffect(tx.Type, tx.Amount))
	s.customers[tx.CustomerID] = customer
}

func (s *Store) cartLinesLocked(cartID string) []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(s.cartLines[cartID]))
	for _, line := range s.cartLines[cartID] {
		product, exists := s.products[line.ProductID]
		if !exists {
			continue
		}
		lines = append(lines, joinLine(line, product))
	}
	slices.SortFunc(lines, func(a, b domain.CartLine) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return lines
}

func (s *Store) listTransactionsLocked(keep func(*domain.Transaction) bool) []domain.Transaction {
	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if !keep(tx) {
			continue
		}
		annotated := s.annotateLocked(tx)
		annotated.Items = nil
		result = append(result, *annotated)
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return result
}

func (s *Store) annotateLocked(tx *domain.Transaction) *domain.Transaction {
	dup := cloneTransaction(tx)
	customer, found := s.customers[tx.CustomerID]
	dup.CustomerName = domain.CustomerLabel(tx.CustomerID, customer.Name, found)
	return dup
}

func joinLine(line domain.CartLine, product domain.Product) domain.CartLine {
	line.ProductName = product.Name
	line.Price = product.Price
	line.ProductImage = product.Image
	line.StockOnHand = product.Quantity
	return line
}

func newestFirst(aAt time.Time, aID string, bAt time.Time, bID string) int {
	if c := bAt.Compare(aAt); c != 0 {
		return c
	}
	return strings.Compare(bID, aID)
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	if src.Items != nil {
		dupItems := make([]domain.TransactionItem, len(src.Items))
		copy(dupItems, src.Items)
		dup.Items = dupItems
	}
	return &dup
}
