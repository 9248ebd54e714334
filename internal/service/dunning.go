package service

import (
	"context"
	"time"

	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/idempotency"
	"github.com/stackbill/stackbill/internal/types"
)

// Dunning stage names, in escalation order.
const (
	DunningStageRetry   = "retry"
	DunningStagePause   = "pause"
	DunningStageSuspend = "suspend"
	DunningStageCancel  = "cancel"
	DunningStageExpire  = "expire"
)

// DunningService escalates unpaid invoices through retry, pause, suspend,
// cancel and expire. Each stage is a separate sweep over its own selection
// query so stages can run independently and be dry-run individually; a dry
// run reports exactly what the live run would touch.
//
// Failures are isolated per item: one uncooperative invoice or gateway
// never stops the sweep.
type DunningService interface {
	// RunStage runs one named stage. Unknown stages are an error.
	RunStage(ctx context.Context, stage string, dryRun bool) (*dto.SweepSummary, error)

	// RunAll runs every stage in escalation order.
	RunAll(ctx context.Context, dryRun bool) ([]*dto.SweepSummary, error)
}

type dunningService struct {
	ServiceParams
	invoices      InvoiceService
	subscriptions SubscriptionService
}

func NewDunningService(params ServiceParams, invoices InvoiceService, subscriptions SubscriptionService) DunningService {
	return &dunningService{
		ServiceParams: params,
		invoices:      invoices,
		subscriptions: subscriptions,
	}
}

func (s *dunningService) RunStage(ctx context.Context, stage string, dryRun bool) (*dto.SweepSummary, error) {
	switch stage {
	case DunningStageRetry:
		return s.runRetry(ctx, dryRun)
	case DunningStagePause:
		return s.runPause(ctx, dryRun)
	case DunningStageSuspend:
		return s.runSuspend(ctx, dryRun)
	case DunningStageCancel:
		return s.runCancel(ctx, dryRun)
	case DunningStageExpire:
		return s.runExpire(ctx, dryRun)
	}
	return nil, ierr.NewError("unknown dunning stage").
		WithHintf("Stage must be one of retry, pause, suspend, cancel, expire; got %q", stage).
		Mark(ierr.ErrValidation)
}

func (s *dunningService) RunAll(ctx context.Context, dryRun bool) ([]*dto.SweepSummary, error) {
	stages := []string{DunningStageRetry, DunningStagePause, DunningStageSuspend, DunningStageCancel, DunningStageExpire}
	summaries := make([]*dto.SweepSummary, 0, len(stages))
	for _, stage := range stages {
		summary, err := s.RunStage(ctx, stage, dryRun)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// runRetry charges unpaid invoices against the workspace's default payment
// method, on the configured day offsets after the due date. Gateways that
// cannot charge off-session are skipped: their customers must pay a fresh
// invoice themselves, so retrying is escalation-by-waiting.
func (s *dunningService) runRetry(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary(DunningStageRetry, dryRun)
	now := time.Now().UTC()

	candidates, err := s.InvoiceRepo.ListRetryable(ctx, s.Config.Dunning.MaxAttempts, now)
	if err != nil {
		return nil, err
	}
	summary.Examined = len(candidates)

	for _, inv := range candidates {
		if !s.attemptDue(inv, now) {
			continue
		}

		gw, err := s.Gateways.Get(inv.Gateway)
		if err != nil {
			s.Logger.Errorw("dunning: gateway unavailable", "invoice_id", inv.ID, "error", err)
			summary.Failed++
			continue
		}
		if !gw.SupportsOffSessionCharge() {
			continue
		}

		summary.AffectedIDs = append(summary.AffectedIDs, inv.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		if err := s.chargeInvoice(ctx, gw, inv, now); err != nil {
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	s.logSummary(summary)
	return summary, nil
}

// attemptDue checks whether the invoice's next scheduled attempt has come.
// Attempt N happens RetryScheduleDays[N] days after the due date; attempts
// beyond the schedule reuse the last offset.
func (s *dunningService) attemptDue(inv *invoice.Invoice, now time.Time) bool {
	schedule := s.Config.Dunning.RetryScheduleDays
	if len(schedule) == 0 {
		return true
	}

	idx := inv.ChargeAttempts
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	next := inv.DueDate.AddDate(0, 0, schedule[idx])
	if now.Before(next) {
		return false
	}
	// Never re-attempt inside the same schedule slot.
	return inv.LastAttemptAt == nil || inv.LastAttemptAt.Before(next)
}

func (s *dunningService) chargeInvoice(ctx context.Context, gw gateway.Gateway, inv *invoice.Invoice, now time.Time) error {
	method, err := s.PaymentMethodRepo.GetDefault(ctx, inv.WorkspaceID, inv.Gateway)
	if err != nil {
		if ierr.IsNotFound(err) {
			// Nothing to charge: count the attempt so escalation proceeds.
			return s.recordFailedAttempt(ctx, inv, now, "no default payment method")
		}
		return err
	}

	var sub *subscription.Subscription
	if inv.SubscriptionID != "" {
		if sub, err = s.SubRepo.Get(ctx, inv.SubscriptionID); err != nil {
			return err
		}
	}

	key := s.IdempGen.GenerateKey(idempotency.ScopeDunningCharge, map[string]interface{}{
		"invoice_id": inv.ID,
		"attempt":    inv.ChargeAttempts,
	})

	result, err := gw.ChargePaymentMethod(ctx, gateway.MethodChargeParams{
		Amount:          inv.AmountDue(),
		Currency:        inv.Currency,
		CustomerID:      gatewayCustomerID(sub),
		PaymentMethodID: method.GatewayPaymentMethodID,
		InvoiceID:       inv.ID,
		IdempotencyKey:  key,
		Metadata: map[string]string{
			"invoice_id": inv.ID,
			"kind":       "dunning_retry",
		},
	})

	switch {
	case err == nil:
		return s.applySuccessfulCharge(ctx, inv, sub, result, now)

	case ierr.IsCardDeclined(err), ierr.IsInvalidOperation(err):
		// A definitive decline consumes an attempt.
		return s.recordFailedAttempt(ctx, inv, now, err.Error())

	default:
		// Ambiguous outcome (network, rate limit, gateway 5xx): the charge
		// may or may not have gone through. Leave the attempt counter
		// untouched; the idempotency key makes the next try safe.
		s.Logger.Errorw("dunning: ambiguous charge outcome",
			"invoice_id", inv.ID,
			"attempt", inv.ChargeAttempts,
			"error", err,
		)
		return err
	}
}

func (s *dunningService) applySuccessfulCharge(ctx context.Context, inv *invoice.Invoice, sub *subscription.Subscription, result *gateway.ChargeResult, now time.Time) error {
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		p := &payment.Payment{
			Gateway:          inv.Gateway,
			GatewayPaymentID: result.GatewayPaymentID,
			PaymentStatus:    types.PaymentStatusSucceeded,
			Amount:           inv.AmountDue(),
			Currency:         inv.Currency,
			PaidAt:           &now,
			GatewayResponse:  result.Raw,
			BaseModel: types.BaseModel{
				WorkspaceID: inv.WorkspaceID,
				Status:      types.StatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		}
		if err := s.invoices.SettleWithPayment(ctx, inv, p); err != nil {
			return err
		}
		if sub != nil {
			return s.subscriptions.ApplyRenewal(ctx, sub)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if sub != nil {
		if grantErr := s.Entitlements.GrantPackage(ctx, sub.WorkspaceID, sub.PlanCode); grantErr != nil {
			s.Logger.Errorw("dunning: entitlement grant failed", "subscription_id", sub.ID, "error", grantErr)
		}
		s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)
	}

	s.Logger.Infow("dunning: invoice recovered",
		"invoice_id", inv.ID,
		"payment_id", result.GatewayPaymentID,
	)
	return nil
}

func (s *dunningService) recordFailedAttempt(ctx context.Context, inv *invoice.Invoice, now time.Time, reason string) error {
	inv.ChargeAttempts++
	inv.LastAttemptAt = &now
	inv.InvoiceStatus = types.InvoiceStatusOverdue
	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return err
	}

	// The subscription enters past_due on the first failed attempt.
	if inv.SubscriptionID != "" {
		sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
		if err == nil && sub.SubscriptionStatus == types.SubscriptionStatusActive {
			sub.SubscriptionStatus = types.SubscriptionStatusPastDue
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				s.Logger.Errorw("dunning: failed to mark past_due", "subscription_id", sub.ID, "error", err)
			}
		}
	}

	s.Notifications.PaymentFailed(ctx, inv.WorkspaceID, inv.ID, inv.ChargeAttempts)
	s.Logger.Warnw("dunning: charge attempt failed",
		"invoice_id", inv.ID,
		"attempt", inv.ChargeAttempts,
		"reason", reason,
	)
	return nil
}

// runPause moves subscriptions whose invoice retries are exhausted into the
// paused state. A subscription over the pause-cycle limit skips the grace
// of another pause and is suspended on the next suspend sweep immediately.
func (s *dunningService) runPause(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary(DunningStagePause, dryRun)
	now := time.Now().UTC()

	exhausted, err := s.InvoiceRepo.ListRetriesExhausted(ctx, s.Config.Dunning.MaxAttempts)
	if err != nil {
		return nil, err
	}
	summary.Examined = len(exhausted)

	for _, inv := range exhausted {
		if inv.SubscriptionID == "" {
			continue
		}
		sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
		if err != nil {
			s.Logger.Errorw("dunning: pause lookup failed", "invoice_id", inv.ID, "error", err)
			summary.Failed++
			continue
		}
		if sub.SubscriptionStatus != types.SubscriptionStatusPastDue {
			continue
		}

		summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		sub.SubscriptionStatus = types.SubscriptionStatusPaused
		sub.PausedAt = &now
		sub.PauseCycles++
		if sub.PauseCycles > s.Config.Dunning.MaxPauseCycles {
			// Out of grace: suspend in the same step.
			sub.SuspendedAt = &now
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("dunning: pause update failed", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}

		if sub.SuspendedAt != nil {
			s.revokeForSuspension(ctx, sub)
			s.Notifications.SubscriptionSuspended(ctx, sub.WorkspaceID, sub.ID)
		} else {
			s.Notifications.SubscriptionPaused(ctx, sub.WorkspaceID, sub.ID)
		}
		summary.Affected++
	}

	s.logSummary(summary)
	return summary, nil
}

// runSuspend revokes entitlements for subscriptions paused longer than the
// configured grace window.
func (s *dunningService) runSuspend(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary(DunningStageSuspend, dryRun)
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -s.Config.Dunning.SuspendAfterDays)

	paused, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		Statuses:     []types.SubscriptionStatus{types.SubscriptionStatusPaused},
		PausedBefore: &cutoff,
	})
	if err != nil {
		return nil, err
	}
	summary.Examined = len(paused)

	for _, sub := range paused {
		if sub.SuspendedAt != nil {
			continue
		}

		summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		sub.SuspendedAt = &now
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("dunning: suspend update failed", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}

		s.revokeForSuspension(ctx, sub)
		s.Notifications.SubscriptionSuspended(ctx, sub.WorkspaceID, sub.ID)
		summary.Affected++
	}

	s.logSummary(summary)
	return summary, nil
}

// runCancel terminates subscriptions suspended longer than the cancel
// window and voids their uncollectible invoices.
func (s *dunningService) runCancel(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary(DunningStageCancel, dryRun)
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -(s.Config.Dunning.CancelAfterDays - s.Config.Dunning.SuspendAfterDays))

	suspended, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		Statuses:        []types.SubscriptionStatus{types.SubscriptionStatusPaused},
		SuspendedBefore: &cutoff,
	})
	if err != nil {
		return nil, err
	}
	summary.Examined = len(suspended)

	for _, sub := range suspended {
		summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		if err := s.cancelForDunning(ctx, sub, now); err != nil {
			s.Logger.Errorw("dunning: cancel failed", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}
		summary.Affected++
	}

	s.logSummary(summary)
	return summary, nil
}

func (s *dunningService) cancelForDunning(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	if sub.GatewaySubscriptionID != "" {
		gw, err := s.Gateways.Get(sub.Gateway)
		if err == nil {
			if err := gw.CancelSubscription(ctx, sub.GatewaySubscriptionID, false); err != nil && !ierr.IsNotFound(err) {
				return err
			}
		}
	}

	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.EndedAt = &now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	// Write off whatever was still being collected.
	open, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		WorkspaceID:    sub.WorkspaceID,
		SubscriptionID: sub.ID,
		Statuses:       []types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusOverdue},
	})
	if err == nil {
		for _, inv := range open {
			if voidErr := s.invoices.Void(ctx, inv.ID); voidErr != nil {
				s.Logger.Errorw("dunning: void failed", "invoice_id", inv.ID, "error", voidErr)
			}
		}
	}

	s.Notifications.SubscriptionCancelled(ctx, sub.WorkspaceID, sub.ID)
	return nil
}

// runExpire finalizes cancelled subscriptions whose paid period has
// elapsed. Expired is terminal; a returning customer starts fresh.
func (s *dunningService) runExpire(ctx context.Context, dryRun bool) (*dto.SweepSummary, error) {
	summary := dto.NewSweepSummary(DunningStageExpire, dryRun)
	now := time.Now().UTC()

	cancelled, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
		Statuses:        []types.SubscriptionStatus{types.SubscriptionStatusCancelled},
		PeriodEndBefore: &now,
	})
	if err != nil {
		return nil, err
	}
	summary.Examined = len(cancelled)

	for _, sub := range cancelled {
		summary.AffectedIDs = append(summary.AffectedIDs, sub.ID)
		if dryRun {
			summary.Affected++
			continue
		}

		sub.SubscriptionStatus = types.SubscriptionStatusExpired
		if sub.EndedAt == nil {
			sub.EndedAt = &now
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			s.Logger.Errorw("dunning: expire update failed", "subscription_id", sub.ID, "error", err)
			summary.Failed++
			continue
		}

		if err := s.Entitlements.ExpireCycleBoundBoosts(ctx, sub.WorkspaceID); err != nil {
			s.Logger.Errorw("dunning: boost expiry failed", "workspace_id", sub.WorkspaceID, "error", err)
		}
		s.revokeForSuspension(ctx, sub)
		summary.Affected++
	}

	s.logSummary(summary)
	return summary, nil
}

func (s *dunningService) revokeForSuspension(ctx context.Context, sub *subscription.Subscription) {
	if err := s.Entitlements.RevokePackage(ctx, sub.WorkspaceID, sub.PlanCode); err != nil {
		s.Logger.Errorw("dunning: entitlement revoke failed", "subscription_id", sub.ID, "error", err)
	}
	s.Entitlements.InvalidateCache(ctx, sub.WorkspaceID)
}

func gatewayCustomerID(sub *subscription.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.GatewayCustomerID
}

func (s *dunningService) logSummary(summary *dto.SweepSummary) {
	s.Logger.Infow("dunning stage finished",
		"stage", summary.Stage,
		"examined", summary.Examined,
		"affected", summary.Affected,
		"failed", summary.Failed,
		"dry_run", summary.DryRun,
	)
}
