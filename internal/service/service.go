package service

import (
	"context"
	"log/slog"

	"salescalc/internal/domain"
	"salescalc/internal/logger"
	"salescalc/internal/stats"
	"salescalc/internal/store"
)

type Options struct {
	DefaultCartID string
	AllowOversell bool
	Logger        *slog.Logger
}

type Service struct {
	repo          store.Repository
	stats         *stats.Aggregator
	defaultCartID string
	allowOversell bool
	log           *slog.Logger
}

func New(repo store.Repository, aggregator *stats.Aggregator, opts Options) *Service {
	if opts.DefaultCartID == "" {
		opts.DefaultCartID = "main"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if aggregator == nil {
		aggregator = stats.NewAggregator(nil, 0)
	}

	return &Service{
		repo:          repo,
		stats:         aggregator,
		defaultCartID: opts.DefaultCartID,
		allowOversell: opts.AllowOversell,
		log:           opts.Logger,
	}
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, in domain.CustomerInput) (domain.Customer, error) {
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   in.Email,
		Address: in.Address,
		Image:   in.Image,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	s.invalidateStats(ctx, "customer_create")
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

// UpdateCustomer merges the partial update onto the stored customer.
func (s *Service) UpdateCustomer(ctx context.Context, id string, update domain.CustomerUpdate) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	saved, err := s.repo.UpdateCustomer(ctx, update.Apply(*existing))
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx, "customer_delete")
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:        in.Name,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Description: in.Description,
		Image:       in.Image,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateStats(ctx, "product_create")
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, update domain.ProductUpdate) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	saved, err := s.repo.UpdateProduct(ctx, update.Apply(*existing))
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx, "product_delete")
	return nil
}

// RecordTransaction appends a manual ledger entry. Unlike entity writes, the
// ledger preconditions are enforced here so no caller can skip them.
func (s *Service) RecordTransaction(ctx context.Context, req domain.RecordTransactionRequest) (domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return domain.Transaction{}, err
	}

	recorded, err := s.repo.RecordTransaction(ctx, domain.Transaction{
		CustomerID:    req.CustomerID,
		Type:          req.Type,
		Amount:        req.Amount,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.log.Info("transaction recorded",
		"transaction_id", recorded.ID,
		"type", recorded.Type,
		"amount", recorded.Amount.String(),
		"customer_id", recorded.CustomerID,
	)
	s.invalidateStats(ctx, "transaction_record")
	return *recorded, nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) ListCustomerTransactions(ctx context.Context, customerID string) ([]domain.Transaction, error) {
	return s.repo.ListCustomerTransactions(ctx, customerID)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

// CustomerStatement replays the customer's history and compares the result
// with the stored balance.
func (s *Service) CustomerStatement(ctx context.Context, customerID string) (domain.CustomerStatement, error) {
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.CustomerStatement{}, err
	}
	history, err := s.repo.ListCustomerTransactions(ctx, customerID)
	if err != nil {
		return domain.CustomerStatement{}, err
	}

	computed := domain.FoldBalance(history)
	consistent := computed.Equal(customer.Balance)
	if !consistent {
		s.log.Warn("customer balance drift",
			"customer_id", customerID,
			"stored", customer.Balance.String(),
			"computed", computed.String(),
		)
	}

	return domain.CustomerStatement{
		Customer:        *customer,
		Transactions:    history,
		ComputedBalance: computed,
		Consistent:      consistent,
	}, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	figures, err := s.stats.Dashboard(ctx, s.repo)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return *figures, nil
}

func (s *Service) invalidateStats(ctx context.Context, op string) {
	if err := s.stats.Invalidate(ctx); err != nil {
		s.log.Warn("stats cache invalidation failed", "op", op, "error", err)
	}
}
