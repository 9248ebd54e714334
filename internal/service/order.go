package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/sku"
	"github.com/stackbill/stackbill/internal/types"
)

// OrderService owns checkout: pricing an order, applying coupons and taxes,
// opening the gateway checkout session, and sweeping abandoned sessions.
// Fulfilment of a paid order lives in the webhook reconciliation engine.
type OrderService interface {
	CreateCheckout(ctx context.Context, req *dto.CreateOrderRequest) (*dto.OrderResponse, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, filter *types.OrderFilter) (*dto.ListOrdersResponse, error)

	// CleanupExpired cancels pending orders older than the TTL whose
	// checkout session was never completed.
	CleanupExpired(ctx context.Context, ttl time.Duration, dryRun bool) (*dto.SweepSummary, error)
}

type orderService struct {
	ServiceParams
	coupons  CouponService
	currency CurrencyService
}

func NewOrderService(params ServiceParams, coupons CouponService, currency CurrencyService) OrderService {
	return &orderService{
		ServiceParams: params,
		coupons:       coupons,
		currency:      currency,
	}
}

func (s *orderService) CreateCheckout(ctx context.Context, req *dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	workspaceID := types.GetWorkspaceID(ctx)
	gw, err := s.Gateways.Get(req.Gateway)
	if err != nil {
		return nil, err
	}

	o := &order.Order{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
		OrderNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_ORDER),
		OrderStatus: types.OrderStatusPending,
		Gateway:     req.Gateway,
		Currency:    req.Currency,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}

	subtotal := decimal.Zero
	items := make([]*order.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		// The SKU's own quantity suffix multiplies the line quantity.
		parsed := sku.Parse(item.SKU)
		for _, p := range parsed.AllItems() {
			if p.Quantity > 1 {
				quantity *= p.Quantity
			}
		}

		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
		subtotal = subtotal.Add(lineTotal)

		items = append(items, &order.OrderItem{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
			OrderID:      o.ID,
			SKU:          item.SKU,
			Name:         item.Name,
			UnitPrice:    item.UnitPrice,
			Quantity:     quantity,
			BillingCycle: item.BillingCycle,
			BaseModel:    types.GetDefaultBaseModel(ctx),
		})
	}
	o.Subtotal = subtotal.Round(2)
	o.Items = items

	// Coupon validation happens before the transaction; the redemption
	// counter bump happens inside it so the usage cap holds.
	var couponID string
	if req.CouponCode != "" {
		result := s.coupons.Validate(ctx, workspaceID, req.CouponCode, o.Subtotal, combinedSKU(req.Items))
		if !result.Valid {
			return nil, ierr.NewError("coupon rejected").
				WithHintf("Coupon is not valid: %s", result.Reason).
				WithReportableDetails(map[string]any{"reason": result.Reason}).
				Mark(ierr.ErrValidation)
		}
		o.CouponCode = result.Coupon.Code
		o.Discount = result.Discount
		couponID = result.Coupon.ID
	}

	taxable := o.Subtotal.Sub(o.Discount)
	tax, err := s.Tax.Calculate(ctx, workspaceID, o.Currency, taxable)
	if err != nil {
		return nil, err
	}
	o.Tax = tax
	o.Total = taxable.Add(tax).Round(2)

	// Capture the display rate at checkout time so later reporting can
	// reproduce what the buyer saw.
	if req.DisplayCurrency != "" && req.DisplayCurrency != o.Currency {
		_, rate, err := s.currency.Convert(ctx, o.Total, req.DisplayCurrency)
		if err != nil {
			return nil, err
		}
		o.DisplayCurrency = req.DisplayCurrency
		o.ExchangeRate = rate
	}

	o.BaseCurrencyTotal = o.Total
	if o.Currency != s.Config.Currency.BaseCurrency {
		rate, err := s.currency.GetRate(ctx, o.Currency)
		if err != nil {
			return nil, err
		}
		if rate.GreaterThan(decimal.Zero) {
			o.BaseCurrencyTotal = o.Total.Div(rate).Round(2)
		}
	}

	session, err := gw.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		OrderID:     o.ID,
		Amount:      o.Total,
		Currency:    o.Currency,
		Description: checkoutDescription(items),
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Metadata: map[string]string{
			"order_number": o.OrderNumber,
			"workspace_id": workspaceID,
		},
	})
	if err != nil {
		return nil, err
	}
	o.GatewaySessionID = session.ID

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.OrderRepo.CreateWithItems(ctx, o, items); err != nil {
			return err
		}
		if couponID != "" {
			return s.coupons.Redeem(ctx, couponID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("checkout created",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"gateway", o.Gateway,
		"total", o.Total,
	)

	return &dto.OrderResponse{Order: o, CheckoutURL: session.URL}, nil
}

func (s *orderService) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.OrderRepo.GetWithItems(ctx, id)
}

func (s *orderService) List(ctx context.Context, filter *types.OrderFilter) (*dto.ListOrdersResponse, error) {
	if filter == nil {
		filter = &types.OrderFilter{}
	}
	if filter.WorkspaceID == "" {
		filter.WorkspaceID = types.GetWorkspaceID(ctx)
	}

	items, err := s.OrderRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.OrderRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.ListOrdersResponse{Items: items, Total: total}, nil
}

func (s *orderService) CleanupExpired(ctx context.Context, ttl time.Duration, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary("cleanup-orders", dryRun)
	cutoff := time.Now().UTC().Add(-ttl)

	stale, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		Statuses:      []types.OrderStatus{types.OrderStatusPending},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return nil, err
	}
	summary.Examined = len(stale)

	for _, o := range stale {
		summary.AffectedIDs = append(summary.AffectedIDs, o.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		o.OrderStatus = types.OrderStatusCancelled
		if err := s.OrderRepo.Update(ctx, o); err != nil {
			// One bad row must not stop the sweep.
			s.Logger.Errorw("failed to cancel expired order", "order_id", o.ID, "error", err)
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	s.Logger.Infow("expired order cleanup finished",
		"examined", summary.Examined,
		"affected", summary.Affected,
		"failed", summary.Failed,
		"dry_run", dryRun,
	)
	return summary, nil
}

func combinedSKU(items []dto.OrderItemRequest) string {
	combined := ""
	for i, item := range items {
		if i > 0 {
			combined += ","
		}
		combined += item.SKU
	}
	return combined
}

func checkoutDescription(items []*order.OrderItem) string {
	if len(items) == 1 {
		return items[0].Name
	}
	return fmt.Sprintf("%s and %d more", items[0].Name, len(items)-1)
}
