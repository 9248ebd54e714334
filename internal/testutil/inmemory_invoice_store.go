package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/stackbill/stackbill/internal/domain/invoice"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	mu        sync.Mutex
	sequences map[string]int64
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
		sequences:     make(map[string]int64),
	}
}

func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.sequences = make(map[string]int64)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Update(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	invoices, err := s.InMemoryStore.List(ctx, filter, invoiceMatches, func(i, j *invoice.Invoice) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if filter != nil && filter.Limit > 0 && len(invoices) > filter.Limit {
		invoices = invoices[:filter.Limit]
	}
	return lo.Map(invoices, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceMatches)
}

func (s *InMemoryInvoiceStore) NextInvoiceNumber(ctx context.Context, workspaceID string, year string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := workspaceID + ":" + year
	s.sequences[key]++
	return fmt.Sprintf("INV-%s-%06d", year, s.sequences[key]), nil
}

func (s *InMemoryInvoiceStore) ListRetryable(ctx context.Context, maxAttempts int, now time.Time) ([]*invoice.Invoice, error) {
	invoices, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return invoiceUnpaid(inv) && inv.ChargeAttempts < maxAttempts && inv.DueDate.Before(now)
	}, func(i, j *invoice.Invoice) bool {
		return i.DueDate.Before(j.DueDate)
	})
	return lo.Map(invoices, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) ListRetriesExhausted(ctx context.Context, maxAttempts int) ([]*invoice.Invoice, error) {
	invoices, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return invoiceUnpaid(inv) && inv.ChargeAttempts >= maxAttempts
	}, func(i, j *invoice.Invoice) bool {
		return i.DueDate.Before(j.DueDate)
	})
	return lo.Map(invoices, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func invoiceUnpaid(inv *invoice.Invoice) bool {
	return inv.InvoiceStatus == types.InvoiceStatusPending || inv.InvoiceStatus == types.InvoiceStatusOverdue
}

func invoiceMatches(_ context.Context, inv *invoice.Invoice, rawFilter interface{}) bool {
	filter, ok := rawFilter.(*types.InvoiceFilter)
	if !ok || filter == nil {
		return true
	}
	if filter.WorkspaceID != "" && inv.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if filter.SubscriptionID != "" && inv.SubscriptionID != filter.SubscriptionID {
		return false
	}
	if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, inv.InvoiceStatus) {
		return false
	}
	if filter.DueBefore != nil && !inv.DueDate.Before(*filter.DueBefore) {
		return false
	}
	if filter.MaxChargeAttempts != nil && inv.ChargeAttempts >= *filter.MaxChargeAttempts {
		return false
	}
	return true
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	clone := *inv
	return &clone
}
