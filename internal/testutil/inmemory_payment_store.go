package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/stackbill/stackbill/internal/domain/payment"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemoryPaymentStore implements payment.Repository, including the unique
// constraint over (gateway, gateway_payment_id) that webhook replay
// handling depends on.
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	mu sync.Mutex
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, other *payment.Payment, _ interface{}) bool {
		return other.Gateway == p.Gateway && other.GatewayPaymentID == p.GatewayPaymentID
	}, nil)
	if len(existing) > 0 {
		return ierr.NewError("payment already recorded").
			WithHint("A payment with this gateway payment ID already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	return s.InMemoryStore.Create(ctx, p.ID, copyPayment(p))
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPayment(p), nil
}

func (s *InMemoryPaymentStore) GetByGatewayPaymentID(ctx context.Context, gateway types.PaymentGateway, gatewayPaymentID string) (*payment.Payment, error) {
	payments, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *payment.Payment, _ interface{}) bool {
		return p.Gateway == gateway && p.GatewayPaymentID == gatewayPaymentID
	}, nil)
	if len(payments) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint("No payment for this gateway payment ID").
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(payments[0]), nil
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, p.ID, copyPayment(p))
}

func (s *InMemoryPaymentStore) ListByOrder(ctx context.Context, orderID string) ([]*payment.Payment, error) {
	return s.listWhere(ctx, func(p *payment.Payment) bool { return p.OrderID == orderID })
}

func (s *InMemoryPaymentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	return s.listWhere(ctx, func(p *payment.Payment) bool { return p.InvoiceID == invoiceID })
}

func (s *InMemoryPaymentStore) listWhere(ctx context.Context, match func(*payment.Payment) bool) ([]*payment.Payment, error) {
	payments, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *payment.Payment, _ interface{}) bool {
		return match(p)
	}, func(i, j *payment.Payment) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	})
	return lo.Map(payments, func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	}), nil
}

func copyPayment(p *payment.Payment) *payment.Payment {
	clone := *p
	return &clone
}

// InMemoryPaymentMethodStore implements payment.MethodRepository
type InMemoryPaymentMethodStore struct {
	*InMemoryStore[*payment.PaymentMethod]
	mu sync.Mutex
}

func NewInMemoryPaymentMethodStore() *InMemoryPaymentMethodStore {
	return &InMemoryPaymentMethodStore{
		InMemoryStore: NewInMemoryStore[*payment.PaymentMethod](),
	}
}

func (s *InMemoryPaymentMethodStore) Upsert(ctx context.Context, m *payment.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, other *payment.PaymentMethod, _ interface{}) bool {
		return other.Gateway == m.Gateway && other.GatewayPaymentMethodID == m.GatewayPaymentMethodID
	}, nil)
	if len(existing) > 0 {
		current := existing[0]
		current.MethodType = m.MethodType
		current.Last4 = m.Last4
		current.ExpiryMonth = m.ExpiryMonth
		current.ExpiryYear = m.ExpiryYear
		current.Status = m.Status
		current.UpdatedAt = time.Now().UTC()
		return s.InMemoryStore.Update(ctx, current.ID, current)
	}

	clone := *m
	return s.InMemoryStore.Create(ctx, m.ID, &clone)
}

func (s *InMemoryPaymentMethodStore) Get(ctx context.Context, id string) (*payment.PaymentMethod, error) {
	m, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	clone := *m
	return &clone, nil
}

func (s *InMemoryPaymentMethodStore) GetByGatewayMethodID(ctx context.Context, gateway types.PaymentGateway, gatewayMethodID string) (*payment.PaymentMethod, error) {
	methods, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, m *payment.PaymentMethod, _ interface{}) bool {
		return m.Gateway == gateway && m.GatewayPaymentMethodID == gatewayMethodID && m.Status != types.StatusDeleted
	}, nil)
	if len(methods) == 0 {
		return nil, ierr.NewError("payment method not found").
			WithHint("No payment method for this gateway method ID").
			Mark(ierr.ErrNotFound)
	}
	clone := *methods[0]
	return &clone, nil
}

func (s *InMemoryPaymentMethodStore) Deactivate(ctx context.Context, gateway types.PaymentGateway, gatewayMethodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, m *payment.PaymentMethod, _ interface{}) bool {
		return m.Gateway == gateway && m.GatewayPaymentMethodID == gatewayMethodID && m.Status == types.StatusActive
	}, nil)
	if len(methods) == 0 {
		return ierr.NewError("payment method not found").
			WithHint("No active payment method for this gateway method ID").
			Mark(ierr.ErrNotFound)
	}

	m := methods[0]
	m.Status = types.StatusInactive
	m.IsDefault = false
	m.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, m.ID, m)
}

func (s *InMemoryPaymentMethodStore) SetDefault(ctx context.Context, workspaceID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if target.WorkspaceID != workspaceID || target.Status != types.StatusActive {
		return ierr.NewError("payment method not found").
			WithHint("No active payment method with this ID in the workspace").
			Mark(ierr.ErrNotFound)
	}

	methods, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, m *payment.PaymentMethod, _ interface{}) bool {
		return m.WorkspaceID == workspaceID
	}, nil)
	for _, m := range methods {
		m.IsDefault = m.ID == id
		if err := s.InMemoryStore.Update(ctx, m.ID, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryPaymentMethodStore) GetDefault(ctx context.Context, workspaceID string, gateway types.PaymentGateway) (*payment.PaymentMethod, error) {
	methods, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, m *payment.PaymentMethod, _ interface{}) bool {
		return m.WorkspaceID == workspaceID && m.Gateway == gateway && m.IsDefault && m.Status == types.StatusActive
	}, nil)
	if len(methods) == 0 {
		return nil, ierr.NewError("no default payment method").
			WithHint("The workspace has no default payment method at this gateway").
			Mark(ierr.ErrNotFound)
	}
	clone := *methods[0]
	return &clone, nil
}

func (s *InMemoryPaymentMethodStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]*payment.PaymentMethod, error) {
	methods, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, m *payment.PaymentMethod, _ interface{}) bool {
		return m.WorkspaceID == workspaceID && m.Status == types.StatusActive
	}, func(i, j *payment.PaymentMethod) bool {
		if i.IsDefault != j.IsDefault {
			return i.IsDefault
		}
		return i.CreatedAt.After(j.CreatedAt)
	})
	return lo.Map(methods, func(m *payment.PaymentMethod, _ int) *payment.PaymentMethod {
		clone := *m
		return &clone
	}), nil
}
