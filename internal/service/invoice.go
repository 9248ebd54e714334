package service

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/dto"
	"github.com/stackbill/stackbill/internal/types"
)

// InvoiceService issues and settles invoices. Numbering is sequential per
// workspace and year, reserved inside the creating transaction.
type InvoiceService interface {
	Get(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	List(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)

	// CreateRenewalInvoice issues the invoice for a subscription's next
	// period. Idempotent per (subscription, period end): a pending invoice
	// for the same period is returned instead of a duplicate.
	CreateRenewalInvoice(ctx context.Context, sub *subscription.Subscription) (*invoice.Invoice, error)

	// SettleWithPayment applies a captured payment to the invoice and
	// records the payment row. Runs inside the caller's transaction.
	SettleWithPayment(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error

	// Void writes off an uncollectible invoice.
	Void(ctx context.Context, id string) error
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) Get(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) List(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &types.InvoiceFilter{}
	}
	if filter.WorkspaceID == "" {
		filter.WorkspaceID = types.GetWorkspaceID(ctx)
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, dto.NewInvoiceResponse(inv))
	}
	return &dto.ListInvoicesResponse{Items: items, Total: total}, nil
}

func (s *invoiceService) CreateRenewalInvoice(ctx context.Context, sub *subscription.Subscription) (*invoice.Invoice, error) {
	// A pending or overdue invoice for this subscription means the period
	// is already being collected; reuse it.
	existing, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		WorkspaceID:    sub.WorkspaceID,
		SubscriptionID: sub.ID,
		Statuses:       []types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusOverdue},
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	now := time.Now().UTC()
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		SubscriptionID: sub.ID,
		Gateway:        sub.Gateway,
		InvoiceStatus:  types.InvoiceStatusPending,
		Currency:       sub.Currency,
		Subtotal:       sub.PlanPrice,
		Discount:       decimal.Zero,
		Tax:            decimal.Zero,
		Total:          sub.PlanPrice,
		AmountPaid:     decimal.Zero,
		IssueDate:      now,
		DueDate:        sub.CurrentPeriodEnd,
		BaseModel:      types.BaseModel{WorkspaceID: sub.WorkspaceID, Status: types.StatusActive, CreatedAt: now, UpdatedAt: now},
	}
	if inv.DueDate.Before(now) {
		inv.DueDate = now
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		number, err := s.InvoiceRepo.NextInvoiceNumber(ctx, sub.WorkspaceID, strconv.Itoa(now.Year()))
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("renewal invoice issued",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", sub.ID,
		"total", inv.Total,
	)
	return inv, nil
}

func (s *invoiceService) SettleWithPayment(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error {
	if inv.IsSettled() {
		return nil
	}

	if p.ID == "" {
		p.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT)
	}
	p.InvoiceID = inv.ID

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		// The same gateway payment already recorded means a replay; the
		// invoice was settled by the first delivery.
		if ierr.IsAlreadyExists(err) {
			return nil
		}
		return err
	}

	paidAt := time.Now().UTC()
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}
	inv.ApplyPayment(p.Amount, paidAt)
	return s.InvoiceRepo.Update(ctx, inv)
}

func (s *invoiceService) Void(ctx context.Context, id string) error {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		return ierr.NewError("cannot void a paid invoice").
			WithHint("Paid invoices cannot be voided").
			Mark(ierr.ErrInvalidOperation)
	}
	inv.InvoiceStatus = types.InvoiceStatusVoid
	return s.InvoiceRepo.Update(ctx, inv)
}
