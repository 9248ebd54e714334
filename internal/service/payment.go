package service

import (
	"context"
	"time"

	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/types"
)

// PaymentService manages payments and stored payment methods. Method rows
// flow in through webhooks (the gateway is the source of truth); the only
// local mutations are the default flag and soft-deactivation.
type PaymentService interface {
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)

	// CreateSetupSession starts a gateway flow to save a payment method.
	CreateSetupSession(ctx context.Context, req *dto.CreateSetupSessionRequest) (*dto.SetupSessionResponse, error)

	ListPaymentMethods(ctx context.Context) (*dto.ListPaymentMethodsResponse, error)
	SetDefaultPaymentMethod(ctx context.Context, methodID string) error

	// DetachPaymentMethod removes the instrument at the gateway; the local
	// row is deactivated by the resulting webhook, and eagerly here as
	// well so the UI does not wait on the webhook.
	DetachPaymentMethod(ctx context.Context, methodID string) error

	// Refund refunds a captured payment, fully when the amount is zero.
	Refund(ctx context.Context, paymentID string, req *dto.RefundRequest) (*payment.Payment, error)
}

type paymentService struct {
	ServiceParams
	referrals ReferralService
}

func NewPaymentService(params ServiceParams, referrals ReferralService) PaymentService {
	return &paymentService{ServiceParams: params, referrals: referrals}
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.PaymentRepo.Get(ctx, id)
}

func (s *paymentService) CreateSetupSession(ctx context.Context, req *dto.CreateSetupSessionRequest) (*dto.SetupSessionResponse, error) {
	gw, err := s.Gateways.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	customerID := ""
	if sub, err := s.SubRepo.GetLatestLive(ctx, types.GetWorkspaceID(ctx)); err == nil {
		customerID = sub.GatewayCustomerID
	}

	url, err := gw.CreateSetupSession(ctx, customerID, req.ReturnURL)
	if err != nil {
		return nil, err
	}
	return &dto.SetupSessionResponse{URL: url}, nil
}

func (s *paymentService) ListPaymentMethods(ctx context.Context) (*dto.ListPaymentMethodsResponse, error) {
	methods, err := s.PaymentMethodRepo.ListByWorkspace(ctx, types.GetWorkspaceID(ctx))
	if err != nil {
		return nil, err
	}
	return &dto.ListPaymentMethodsResponse{Items: methods, Total: len(methods)}, nil
}

func (s *paymentService) SetDefaultPaymentMethod(ctx context.Context, methodID string) error {
	workspaceID := types.GetWorkspaceID(ctx)
	method, err := s.PaymentMethodRepo.Get(ctx, methodID)
	if err != nil {
		return err
	}
	if method.WorkspaceID != workspaceID {
		return ierr.NewError("method belongs to another workspace").
			WithHint("Payment method not found").
			Mark(ierr.ErrNotFound)
	}

	// Keep the gateway's default in step so its own off-session fallbacks
	// pick the same instrument.
	if gw, err := s.Gateways.Get(method.Gateway); err == nil {
		if sub, subErr := s.SubRepo.GetLatestLive(ctx, workspaceID); subErr == nil && sub.GatewayCustomerID != "" {
			if gwErr := gw.SetDefaultPaymentMethod(ctx, sub.GatewayCustomerID, method.GatewayPaymentMethodID); gwErr != nil {
				s.Logger.Errorw("failed to sync default method to gateway", "method_id", methodID, "error", gwErr)
			}
		}
	}

	return s.PaymentMethodRepo.SetDefault(ctx, workspaceID, methodID)
}

func (s *paymentService) DetachPaymentMethod(ctx context.Context, methodID string) error {
	method, err := s.PaymentMethodRepo.Get(ctx, methodID)
	if err != nil {
		return err
	}
	if method.WorkspaceID != types.GetWorkspaceID(ctx) {
		return ierr.NewError("method belongs to another workspace").
			WithHint("Payment method not found").
			Mark(ierr.ErrNotFound)
	}

	gw, err := s.Gateways.Get(method.Gateway)
	if err != nil {
		return err
	}
	if err := gw.DetachPaymentMethod(ctx, method.GatewayPaymentMethodID); err != nil && !ierr.IsNotFound(err) {
		return err
	}

	return s.PaymentMethodRepo.Deactivate(ctx, method.Gateway, method.GatewayPaymentMethodID)
}

func (s *paymentService) Refund(ctx context.Context, paymentID string, req *dto.RefundRequest) (*payment.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus != types.PaymentStatusSucceeded {
		return nil, ierr.NewError("payment not refundable").
			WithHint("Only succeeded payments can be refunded").
			Mark(ierr.ErrInvalidOperation)
	}
	if req.Amount.GreaterThan(p.Amount) {
		return nil, ierr.NewError("refund exceeds payment").
			WithHint("Refund amount cannot exceed the captured amount").
			Mark(ierr.ErrValidation)
	}

	gw, err := s.Gateways.Get(p.Gateway)
	if err != nil {
		return nil, err
	}

	if _, err := gw.Refund(ctx, gateway.RefundParams{
		GatewayPaymentID: p.GatewayPaymentID,
		Amount:           req.Amount,
		Reason:           req.Reason,
	}); err != nil {
		return nil, err
	}

	p.PaymentStatus = types.PaymentStatusRefunded
	p.UpdatedAt = time.Now().UTC()
	if err := s.PaymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	// A refund claws back any commission the payment earned.
	if p.OrderID != "" {
		if err := s.referrals.ReverseCommissionForOrder(ctx, p.OrderID); err != nil {
			s.Logger.Errorw("failed to reverse commission", "order_id", p.OrderID, "error", err)
		}
	}

	s.Logger.Infow("payment refunded",
		"payment_id", p.ID,
		"amount", req.Amount,
		"reason", req.Reason,
	)
	return p, nil
}
