package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"salescalc/internal/domain"
	"salescalc/internal/store"
	"salescalc/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

const customerColumns = `id, name, phone, email, address, image, balance, created_at`

func scanCustomer(row interface{ Scan(...any) error }, c *domain.Customer) error {
	return row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Image, &c.Balance, &c.CreatedAt)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, storageErr("list customers", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, storageErr("list customers", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list customers", err)
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.ID = xid.New("cus")
	customer.Balance = decimal.Zero
	customer.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, image, balance, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address, customer.Image,
		customer.Balance, customer.CreatedAt)
	if err != nil {
		return nil, storageErr("create customer", err)
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id), &c)
	if err != nil {
		return nil, notFoundOr("get customer", err)
	}
	return &c, nil
}

// UpdateCustomer writes the profile fields only; balance moves through the
// ledger.
func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var c domain.Customer
	err := scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5, image = $6
		WHERE id = $1
		RETURNING `+customerColumns,
		customer.ID, customer.Name, customer.Phone, customer.Email, customer.Address, customer.Image), &c)
	if err != nil {
		return nil, notFoundOr("update customer", err)
	}
	return &c, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete customer", err)
	}
	return requireAffected("delete customer", res)
}

const productColumns = `id, name, price, quantity, description, image, created_at`

func scanProduct(row interface{ Scan(...any) error }, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.Description, &p.Image, &p.CreatedAt)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, storageErr("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, storageErr("list products", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list products", err)
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.ID = xid.New("prd")
	product.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, quantity, description, image, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.Name, product.Price, product.Quantity, product.Description, product.Image, product.CreatedAt)
	if err != nil {
		return nil, storageErr("create product", err)
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id), &p)
	if err != nil {
		return nil, notFoundOr("get product", err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var p domain.Product
	err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, quantity = $4, description = $5, image = $6
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Price, product.Quantity, product.Description, product.Image), &p)
	if err != nil {
		return nil, notFoundOr("update product", err)
	}
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storageErr("delete product", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = $1`, id); err != nil {
		return storageErr("delete product cart lines", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete product", err)
	}
	if err := requireAffected("delete product", res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("delete product", err)
	}
	return nil
}

func (s *Store) AddCartItem(ctx context.Context, cartID string, productID string, qty int) (*domain.CartLine, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, storageErr("add cart item", err)
	}
	defer func() { _ = tx.Rollback() }()

	line := domain.CartLine{CartID: cartID, ProductID: productID}
	err = tx.QueryRowContext(ctx, `
		SELECT name, price, image, quantity
		FROM products
		WHERE id = $1
	`, productID).Scan(&line.ProductName, &line.Price, &line.ProductImage, &line.StockOnHand)
	if err != nil {
		return nil, notFoundOr("add cart item", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity, created_at
	`, xid.New("line"), cartID, productID, qty, time.Now().UTC()).Scan(&line.ID, &line.Quantity, &line.CreatedAt)
	if err != nil {
		if isOutOfRange(err) {
			return nil, &domain.ValidationError{Field: "quantity", Message: "cart line quantity would exceed 2147483647"}
		}
		return nil, storageErr("add cart item", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("add cart item", err)
	}
	return &line, nil
}

func (s *Store) ListCartLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	return listCartLines(ctx, s.db, cartID, "")
}

func (s *Store) SetCartLineQuantity(ctx context.Context, cartID string, lineID string, qty int) error {
	if qty <= 0 {
		return s.RemoveCartLine(ctx, cartID, lineID)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $3
		WHERE cart_id = $1 AND id = $2
	`, cartID, lineID, qty)
	if err != nil {
		return storageErr("set cart line quantity", err)
	}
	return requireAffected("set cart line quantity", res)
}

func (s *Store) RemoveCartLine(ctx context.Context, cartID string, lineID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, lineID); err != nil {
		return storageErr("remove cart line", err)
	}
	return nil
}

func (s *Store) ClearCart(ctx context.Context, cartID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return storageErr("clear cart", err)
	}
	return nil
}

func (s *Store) RecordTransaction(ctx context.Context, entry domain.Transaction) (*domain.Transaction, error) {
	if entry.ID == "" {
		entry.ID = xid.New("tx")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, storageErr("record transaction", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	name, err := lockCustomer(ctx, pgTx, entry.CustomerID)
	if err != nil {
		return nil, err
	}
	entry.CustomerName = domain.CustomerLabel(entry.CustomerID, name, true)

	if err := insertTransaction(ctx, pgTx, entry); err != nil {
		return nil, err
	}
	if err := applyBalance(ctx, pgTx, entry); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, storageErr("record transaction", err)
	}
	return &entry, nil
}

const transactionSelect = `
	SELECT t.id, COALESCE(t.customer_id, ''), c.name, t.type, t.amount, t.note, t.payment_method, t.created_at
	FROM transactions t
	LEFT JOIN customers c ON c.id = t.customer_id
`

func scanTransaction(row interface{ Scan(...any) error }, t *domain.Transaction) error {
	var name sql.NullString
	if err := row.Scan(&t.ID, &t.CustomerID, &name, &t.Type, &t.Amount, &t.Note, &t.PaymentMethod, &t.CreatedAt); err != nil {
		return err
	}
	t.CustomerName = domain.CustomerLabel(t.CustomerID, name.String, name.Valid)
	return nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, "list transactions", transactionSelect+`
		ORDER BY t.created_at DESC, t.id DESC
	`)
}

func (s *Store) ListCustomerTransactions(ctx context.Context, customerID string) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, "list customer transactions", transactionSelect+`
		WHERE t.customer_id = $1
		ORDER BY t.created_at DESC, t.id DESC
	`, customerID)
}

func (s *Store) queryTransactions(ctx context.Context, op string, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var t domain.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, storageErr(op, err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return transactions, nil
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := scanTransaction(s.db.QueryRowContext(ctx, transactionSelect+`WHERE t.id = $1`, id), &t); err != nil {
		return nil, notFoundOr("find transaction", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transaction_id, product_id, quantity, unit_price
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, storageErr("find transaction items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.TransactionItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, storageErr("find transaction items", err)
		}
		t.Items = append(t.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("find transaction items", err)
	}
	return &t, nil
}

// Checkout runs every step of the sale in one serializable transaction; any
// error before Commit rolls all of it back.
func (s *Store) Checkout(ctx context.Context, order domain.CheckoutOrder) (*domain.Transaction, error) {
	if order.TransactionID == "" {
		order.TransactionID = xid.New("tx")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, storageErr("checkout", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	lines, err := listCartLines(ctx, pgTx, order.CartID, "FOR UPDATE OF ci, p")
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	name, err := lockCustomer(ctx, pgTx, order.CustomerID)
	if err != nil {
		return nil, err
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

	sale := domain.Transaction{
		ID:            order.TransactionID,
		CustomerID:    order.CustomerID,
		CustomerName:  domain.CustomerLabel(order.CustomerID, name, true),
		Type:          domain.TxTypeSale,
		Amount:        total,
		Note:          order.Note,
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
		Items:         items,
	}
	if err := insertTransaction(ctx, pgTx, sale); err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (id, transaction_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, item.ID, item.TransactionID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, storageErr("checkout items", err)
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1
			WHERE id = $2
		`, item.Quantity, item.ProductID)
		if err != nil {
			return nil, storageErr("checkout stock", err)
		}
	}

	if err := applyBalance(ctx, pgTx, sale); err != nil {
		return nil, err
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, order.CartID); err != nil {
		return nil, storageErr("checkout clear cart", err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, storageErr("checkout", err)
	}
	return &sale, nil
}

func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	return s.count(ctx, "customers")
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	return s.count(ctx, "products")
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, storageErr("count "+table, err)
	}
	return n, nil
}

func (s *Store) GetLedgerTotals(ctx context.Context) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount) FILTER (WHERE type = 'sale'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
		FROM transactions
	`).Scan(&totals.Transactions, &totals.Sales, &totals.Credits, &totals.Debits)
	if err != nil {
		return domain.LedgerTotals{}, storageErr("ledger totals", err)
	}
	return totals, nil
}

func (s *Store) ListCustomerBalances(ctx context.Context) ([]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT balance FROM customers`)
	if err != nil {
		return nil, storageErr("customer balances", err)
	}
	defer rows.Close()

	balances := make([]decimal.Decimal, 0, 64)
	for rows.Next() {
		var b decimal.Decimal
		if err := rows.Scan(&b); err != nil {
			return nil, storageErr("customer balances", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("customer balances", err)
	}
	return balances, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCartLines(ctx context.Context, q queryer, cartID string, lock string) ([]domain.CartLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, p.name, p.price, p.image, p.quantity, ci.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
		`+lock, cartID)
	if err != nil {
		return nil, storageErr("list cart lines", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0, 16)
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.ProductName, &l.Price, &l.ProductImage, &l.StockOnHand, &l.CreatedAt); err != nil {
			return nil, storageErr("list cart lines", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list cart lines", err)
	}
	return lines, nil
}

// lockCustomer returns the customer's name and holds its row until the
// transaction ends. An empty id means an anonymous entry.
func lockCustomer(ctx context.Context, pgTx *sql.Tx, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}
	var name string
	err := pgTx.QueryRowContext(ctx, `
		SELECT name
		FROM customers
		WHERE id = $1
		FOR UPDATE
	`, customerID).Scan(&name)
	if err != nil {
		return "", notFoundOr("lock customer", err)
	}
	return name, nil
}

func insertTransaction(ctx context.Context, pgTx *sql.Tx, t domain.Transaction) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO transactions (id, customer_id, type, amount, note, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, nullIfEmpty(t.CustomerID), t.Type, t.Amount, t.Note, t.PaymentMethod, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s already recorded", store.ErrStorage, t.ID)
		}
		return storageErr("insert transaction", err)
	}
	return nil
}

func applyBalance(ctx context.Context, pgTx *sql.Tx, t domain.Transaction) error {
	if t.CustomerID == "" {
		return nil
	}
	_, err := pgTx.ExecContext(ctx, `
		UPDATE customers
		SET balance = balance + $1
		WHERE id = $2
	`, domain.BalanceEffect(t.Type, t.Amount), t.CustomerID)
	if err != nil {
		return storageErr("apply balance", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrStorage, op, err)
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return storageErr(op, err)
}

func requireAffected(op string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22003"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
