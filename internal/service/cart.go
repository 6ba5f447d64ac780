package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"salescalc/internal/domain"
)

var errQuantityRange = &domain.ValidationError{Field: "quantity", Message: "quantity must be between 1 and 2147483647"}

// Cart is a handle on one cart. Handles are cheap; the lines live in the
// repository keyed by the cart id.
type Cart struct {
	svc *Service
	id  string
}

// Cart returns a handle for cartID, or for the default cart when cartID is
// empty.
func (s *Service) Cart(cartID string) *Cart {
	if cartID == "" {
		cartID = s.defaultCartID
	}
	return &Cart{svc: s, id: cartID}
}

func (s *Service) DefaultCart() *Cart {
	return s.Cart("")
}

func (c *Cart) ID() string {
	return c.id
}

// AddItem adds qty of the product, merging into an existing line. A zero
// quantity adds one unit.
func (c *Cart) AddItem(ctx context.Context, productID string, qty int) (domain.CartLine, error) {
	if productID == "" {
		return domain.CartLine{}, &domain.ValidationError{Field: "product_id", Message: "product_id required"}
	}
	if qty < 0 || qty > domain.MaxQuantity {
		return domain.CartLine{}, errQuantityRange
	}
	if qty == 0 {
		qty = 1
	}

	line, err := c.svc.repo.AddCartItem(ctx, c.id, productID, qty)
	if err != nil {
		return domain.CartLine{}, err
	}
	return *line, nil
}

func (c *Cart) Lines(ctx context.Context) ([]domain.CartLine, error) {
	return c.svc.repo.ListCartLines(ctx, c.id)
}

func (c *Cart) View(ctx context.Context) (domain.CartView, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return domain.CartView{}, err
	}
	return domain.CartView{CartID: c.id, Lines: lines, Total: sumLines(lines)}, nil
}

func (c *Cart) Total(ctx context.Context) (decimal.Decimal, error) {
	lines, err := c.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumLines(lines), nil
}

// SetQuantity overwrites a line's quantity; zero or less removes it.
func (c *Cart) SetQuantity(ctx context.Context, lineID string, qty int) error {
	if qty > domain.MaxQuantity {
		return errQuantityRange
	}
	return c.svc.repo.SetCartLineQuantity(ctx, c.id, lineID, qty)
}

func (c *Cart) Remove(ctx context.Context, lineID string) error {
	return c.svc.repo.RemoveCartLine(ctx, c.id, lineID)
}

func (c *Cart) Clear(ctx context.Context) error {
	return c.svc.repo.ClearCart(ctx, c.id)
}

// Checkout turns the cart into a sale. Stock, the customer's balance and the
// cart itself change together or not at all.
func (c *Cart) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Transaction, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !domain.IsSupportedPaymentMethod(req.PaymentMethod) {
		return domain.Transaction{}, &domain.ValidationError{Field: "payment_method", Message: "payment method must be one of cash, card, bank_transfer"}
	}

	sale, err := c.svc.repo.Checkout(ctx, domain.CheckoutOrder{
		CartID:        c.id,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
		AllowOversell: c.svc.allowOversell,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	c.svc.log.Info("checkout completed",
		"cart_id", c.id,
		"transaction_id", sale.ID,
		"total", sale.Amount.String(),
		"items", len(sale.Items),
	)
	c.svc.invalidateStats(ctx, "checkout")
	return *sale, nil
}

func NewCheckoutResponse(sale domain.Transaction) domain.CheckoutResponse {
	count := 0
	for _, item := range sale.Items {
		count += item.Quantity
	}
	return domain.CheckoutResponse{
		TransactionID: sale.ID,
		Total:         sale.Amount,
		ItemCount:     count,
		CustomerID:    sale.CustomerID,
		PaymentMethod: sale.PaymentMethod,
		CreatedAt:     sale.CreatedAt.Format(time.RFC3339),
	}
}

func sumLines(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
