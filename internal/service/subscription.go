package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/sku"
	"github.com/stackbill/stackbill/internal/types"
)

// SubscriptionService owns the subscription lifecycle outside of dunning:
// provisioning from paid orders, renewal, cancellation and resume, the
// expiry sweep, and reconciling local state against the gateway.
type SubscriptionService interface {
	Get(ctx context.Context, id string) (*subscription.Subscription, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	GetLatestLive(ctx context.Context, workspaceID string) (*subscription.Subscription, error)

	// ProvisionFromOrder creates subscriptions for the order's recurring
	// items. Called inside the fulfilment transaction; idempotent under
	// replay because fulfilment short-circuits on already-paid orders.
	ProvisionFromOrder(ctx context.Context, o *order.Order) ([]*subscription.Subscription, error)

	// ApplyRenewal extends the subscription one billing cycle from its
	// previous period end and clears dunning state. The anchor never
	// drifts: a webhook processed late still extends from the old period
	// end, not from now.
	ApplyRenewal(ctx context.Context, sub *subscription.Subscription) error

	Cancel(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*subscription.Subscription, error)

	// Resume undoes a pending cancellation, or reactivates a cancelled
	// subscription whose paid period has not elapsed yet.
	Resume(ctx context.Context, id string) (*subscription.Subscription, error)

	// RenewalSweep issues renewal invoices for subscriptions whose period
	// has ended. Charging them is the dunning engine's job.
	RenewalSweep(ctx context.Context, dryRun bool) (*dto.SweepSummary, error)

	// SyncWithGateway reconciles one subscription against the gateway's
	// view, or all live gateway-backed subscriptions when id is empty.
	SyncWithGateway(ctx context.Context, id string, dryRun bool) (*dto.SweepSummary, error)
}

type subscriptionService struct {
	ServiceParams
	invoices InvoiceService
}

func NewSubscriptionService(params ServiceParams, invoices InvoiceService) SubscriptionService {
	return &subscriptionService{ServiceParams: params, invoices: invoices}
}

func (s *subscriptionService) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.SubRepo.Get(ctx, id)
}

func (s *subscriptionService) List(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = &types.SubscriptionFilter{}
	}
	if filter.WorkspaceID == "" {
		filter.WorkspaceID = types.GetWorkspaceID(ctx)
	}

	items, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.ListSubscriptionsResponse{Items: items, Total: total}, nil
}

func (s *subscriptionService) GetLatestLive(ctx context.Context, workspaceID string) (*subscription.Subscription, error) {
	if workspaceID == "" {
		workspaceID = types.GetWorkspaceID(ctx)
	}
	return s.SubRepo.GetLatestLive(ctx, workspaceID)
}

func (s *subscriptionService) ProvisionFromOrder(ctx context.Context, o *order.Order) ([]*subscription.Subscription, error) {
	now := time.Now().UTC()
	var created []*subscription.Subscription

	for _, item := range o.Items {
		if item.BillingCycle == "" {
			continue
		}

		parsed := sku.Parse(item.SKU)
		planCode := item.SKU
		if items := parsed.AllItems(); len(items) > 0 {
			planCode = items[0].SKU
		}

		sub := &subscription.Subscription{
			ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
			PlanCode:           planCode,
			PlanPrice:          item.UnitPrice,
			Currency:           o.Currency,
			Gateway:            o.Gateway,
			SubscriptionStatus: types.SubscriptionStatusActive,
			BillingCycle:       item.BillingCycle,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   item.BillingCycle.NextPeriodEnd(now),
			Version:            1,
			BaseModel: types.BaseModel{
				WorkspaceID: o.WorkspaceID,
				Status:      types.StatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		}
		if err := s.SubRepo.Create(ctx, sub); err != nil {
			return nil, err
		}
		created = append(created, sub)
	}
	return created, nil
}

func (s *subscriptionService) ApplyRenewal(ctx context.Context, sub *subscription.Subscription) error {
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = sub.BillingCycle.NextPeriodEnd(sub.CurrentPeriodEnd)
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.PausedAt = nil
	sub.SuspendedAt = nil

	// A deferred plan change lands at the boundary it was scheduled for.
	if sub.ScheduledPlanCode != "" {
		s.Logger.Infow("applying scheduled plan change",
			"subscription_id", sub.ID,
			"from", sub.PlanCode,
			"to", sub.ScheduledPlanCode,
		)
		sub.PlanCode = sub.ScheduledPlanCode
		sub.PlanPrice = sub.ScheduledPlanPrice
		sub.ScheduledPlanCode = ""
		sub.ScheduledPlanPrice = decimal.Zero
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	if err := s.Entitlements.ExpireCycleBoundBoosts(ctx, sub.WorkspaceID); err != nil {
		s.Logger.Errorw("failed to expire cycle-bound boosts", "workspace_id", sub.WorkspaceID, "error", err)
	}
	s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)
	return nil
}

func (s *subscriptionService) Cancel(ctx context.Context, id string, req *dto.CancelSubscriptionRequest) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus.IsTerminal() {
		return nil, ierr.NewError("subscription already terminal").
			WithHint("Subscription is already cancelled or expired").
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()

	if sub.GatewaySubscriptionID != "" {
		gw, err := s.Gateways.Get(sub.Gateway)
		if err != nil {
			return nil, err
		}
		if err := gw.CancelSubscription(ctx, sub.GatewaySubscriptionID, !req.Immediate); err != nil {
			return nil, err
		}
	}

	if req.Immediate {
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		sub.EndedAt = &now
	} else {
		sub.CancelAtPeriodEnd = true
		sub.CancelledAt = &now
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if req.Immediate {
		if err := s.Entitlements.RevokePackage(ctx, sub.WorkspaceID, sub.PlanCode); err != nil {
			s.Logger.Errorw("failed to revoke entitlements", "subscription_id", sub.ID, "error", err)
		}
		s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)
	}
	s.Notifications.SubscriptionCancelled(ctx, sub.WorkspaceID, sub.ID)

	s.Logger.Infow("subscription cancelled",
		"subscription_id", sub.ID,
		"immediate", req.Immediate,
		"reason", req.Reason,
	)
	return sub, nil
}

func (s *subscriptionService) Resume(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch {
	case sub.CancelAtPeriodEnd && !sub.SubscriptionStatus.IsTerminal():
		sub.CancelAtPeriodEnd = false
		sub.CancelledAt = nil

	case sub.CanResume(now):
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.CancelledAt = nil
		sub.EndedAt = nil

	default:
		return nil, ierr.NewError("subscription not resumable").
			WithHint("The paid period has already elapsed; start a new subscription instead").
			Mark(ierr.ErrInvalidOperation)
	}

	if sub.GatewaySubscriptionID != "" {
		gw, err := s.Gateways.Get(sub.Gateway)
		if err != nil {
			return nil, err
		}
		if err := gw.ResumeSubscription(ctx, sub.GatewaySubscriptionID); err != nil {
			return nil, err
		}
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.Entitlements.GrantPackage(ctx, sub.WorkspaceID, sub.PlanCode); err != nil {
		s.Logger.Errorw("failed to grant entitlements", "subscription_id", sub.ID, "error", err)
	}
	s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)
	return sub, nil
}

func (s *subscriptionService) RenewalSweep(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary("renewal", dryRun)
	now := time.Now().UTC()

	due, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		Statuses:        []types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing},
		PeriodEndBefore: &now,
	})
	if err != nil {
		return nil, err
	}
	summary.Examined = len(due)

	for _, sub := range due {
		// Period over and the customer asked to stop: end it here instead
		// of invoicing another period.
		if sub.CancelAtPeriodEnd {
			summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
			if dryRun {
				summary.Affected++
				continue
			}
			if err := s.endAtBoundary(ctx, sub, now); err != nil {
				s.Logger.Errorw("failed to end subscription at boundary", "subscription_id", sub.ID, "error", err)
				summary.Failed++
				continue
			}
			summary.Affected++
			continue
		}

		summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		if _, err := s.invoices.CreateRenewalInvoice(ctx, sub); err != nil {
			s.Logger.Errorw("failed to issue renewal invoice", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	s.Logger.Infow("renewal sweep finished",
		"examined", summary.Examined,
		"affected", summary.Affected,
		"failed", summary.Failed,
		"dry_run", dryRun,
	)
	return summary, nil
}

func (s *subscriptionService) endAtBoundary(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	sub.EndedAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	if err := s.Entitlements.RevokePackage(ctx, sub.WorkspaceID, sub.PlanCode); err != nil {
		s.Logger.Errorw("failed to revoke entitlements", "subscription_id", sub.ID, "error", err)
	}
	s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)
	return nil
}

func (s *subscriptionService) SyncWithGateway(ctx context.Context, id string, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary("gateway-sync", dryRun)

	var subs []*subscription.Subscription
	if id != "" {
		sub, err := s.SubRepo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	} else {
		var err error
		subs, err = s.SubRepo.List(ctx, &types.SubscriptionFilter{
			Statuses: types.LiveSubscriptionStatuses(),
		})
		if err != nil {
			return nil, err
		}
	}

	for _, sub := range subs {
		if sub.GatewaySubscriptionID == "" {
			continue
		}
		summary.Examined++

		gw, err := s.Gateways.Get(sub.Gateway)
		if err != nil {
			return nil, err
		}

		remote, err := gw.GetSubscription(ctx, sub.GatewaySubscriptionID)
		if err != nil {
			if ierr.IsNotFound(err) && !dryRun {
				// Gone at the gateway means cancelled out-of-band.
				now := time.Now().UTC()
				if endErr := s.endAtBoundary(ctx, sub, now); endErr != nil {
					summary.Failed++
					continue
				}
				summary.Affected++
				summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
				continue
			}
			s.Logger.Errorw("gateway sync fetch failed", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}

		changed := s.applyRemoteState(sub, remote)
		if !changed {
			continue
		}
		summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
		if dryRun {
			summary.Affected++
			continue
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("gateway sync update failed", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	s.Logger.Infow("gateway sync finished",
		"examined", summary.Examined,
		"affected", summary.Affected,
		"failed", summary.Failed,
		"dry_run", dryRun,
	)
	return summary, nil
}

// applyRemoteState folds the gateway's view into the local record,
// reporting whether anything changed.
func (s *subscriptionService) applyRemoteState(sub *subscription.Subscription, remote *gateway.GatewaySubscription) bool {
	changed := false

	if status := mapGatewayStatus(remote.Status); status != "" && status != sub.SubscriptionStatus {
		sub.SubscriptionStatus = status
		changed = true
	}
	if !remote.CurrentPeriodEnd.IsZero() && !remote.CurrentPeriodEnd.Equal(sub.CurrentPeriodEnd) {
		sub.CurrentPeriodStart = remote.CurrentPeriodStart
		sub.CurrentPeriodEnd = remote.CurrentPeriodEnd
		changed = true
	}
	if remote.CancelAtPeriodEnd != sub.CancelAtPeriodEnd {
		sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
		changed = true
	}
	return changed
}

// mapGatewayStatus translates a gateway status string into ours; empty
// means no opinion.
func mapGatewayStatus(status string) types.SubscriptionStatus {
	switch status {
	case "trialing":
		return types.SubscriptionStatusTrialing
	case "active":
		return types.SubscriptionStatusActive
	case "past_due", "unpaid":
		return types.SubscriptionStatusPastDue
	case "paused":
		return types.SubscriptionStatusPaused
	case "canceled", "cancelled":
		return types.SubscriptionStatusCancelled
	case "incomplete", "incomplete_expired":
		return types.SubscriptionStatusIncomplete
	}
	return ""
}

