package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackbill/stackbill/internal/gateway"
	"github.com/stackbill/stackbill/internal/types"
)

// MockGateway is a scriptable gateway.Gateway for tests. Zero value behaves
// like a fully capable gateway that succeeds at everything; individual
// funcs override single operations.
type MockGateway struct {
	mu sync.Mutex

	GatewayType       types.PaymentGateway
	OffSessionCharges bool

	ChargeMethodFunc func(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error)
	ParseFunc        func(payload []byte) gateway.CanonicalEvent
	VerifyFunc       func(payload []byte, signature string) bool
	CheckoutFunc     func(ctx context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error)
	GetSubFunc       func(ctx context.Context, subscriptionID string) (*gateway.GatewaySubscription, error)
	CancelSubFunc    func(ctx context.Context, subscriptionID string, atPeriodEnd bool) error
	RefundFunc       func(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error)

	// MethodCharges records every off-session charge attempted.
	MethodCharges []gateway.MethodChargeParams
	// CancelledSubs records gateway subscription cancellations.
	CancelledSubs []string
	// DetachedMethods records detached payment methods.
	DetachedMethods []string

	charges int
}

func NewMockGateway(gatewayType types.PaymentGateway, offSession bool) *MockGateway {
	return &MockGateway{GatewayType: gatewayType, OffSessionCharges: offSession}
}

func (m *MockGateway) Type() types.PaymentGateway {
	if m.GatewayType == "" {
		return types.PaymentGatewayStripe
	}
	return m.GatewayType
}

func (m *MockGateway) SupportsOffSessionCharge() bool {
	return m.OffSessionCharges
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, params)
	}
	return &gateway.CheckoutSession{
		ID:     "mock_session_" + params.OrderID,
		URL:    "https://checkout.example.com/" + params.OrderID,
		Status: "open",
	}, nil
}

func (m *MockGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	return &gateway.CheckoutSession{ID: sessionID, Status: "complete"}, nil
}

func (m *MockGateway) CreateSetupSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://setup.example.com/" + customerID, nil
}

func (m *MockGateway) Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges++
	return &gateway.ChargeResult{
		GatewayPaymentID: fmt.Sprintf("mock_charge_%d", m.charges),
		Status:           types.PaymentStatusSucceeded,
	}, nil
}

func (m *MockGateway) ChargePaymentMethod(ctx context.Context, params gateway.MethodChargeParams) (*gateway.ChargeResult, error) {
	m.mu.Lock()
	m.MethodCharges = append(m.MethodCharges, params)
	m.charges++
	n := m.charges
	m.mu.Unlock()

	if m.ChargeMethodFunc != nil {
		return m.ChargeMethodFunc(ctx, params)
	}
	return &gateway.ChargeResult{
		GatewayPaymentID: fmt.Sprintf("mock_charge_%d", n),
		Status:           types.PaymentStatusSucceeded,
	}, nil
}

func (m *MockGateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.GatewaySubscription, error) {
	return &gateway.GatewaySubscription{
		ID:         "mock_gwsub_" + params.CustomerID,
		CustomerID: params.CustomerID,
		Status:     "active",
	}, nil
}

func (m *MockGateway) GetSubscription(ctx context.Context, subscriptionID string) (*gateway.GatewaySubscription, error) {
	if m.GetSubFunc != nil {
		return m.GetSubFunc(ctx, subscriptionID)
	}
	return &gateway.GatewaySubscription{
		ID:                 subscriptionID,
		Status:             "active",
		CurrentPeriodStart: time.Now().UTC().AddDate(0, 0, -10),
		CurrentPeriodEnd:   time.Now().UTC().AddDate(0, 0, 20),
	}, nil
}

func (m *MockGateway) UpdateSubscription(ctx context.Context, subscriptionID string, params gateway.SubscriptionParams) (*gateway.GatewaySubscription, error) {
	return &gateway.GatewaySubscription{ID: subscriptionID, Status: "active"}, nil
}

func (m *MockGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	m.mu.Lock()
	m.CancelledSubs = append(m.CancelledSubs, subscriptionID)
	m.mu.Unlock()
	if m.CancelSubFunc != nil {
		return m.CancelSubFunc(ctx, subscriptionID, atPeriodEnd)
	}
	return nil
}

func (m *MockGateway) PauseSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

func (m *MockGateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}

func (m *MockGateway) AttachPaymentMethod(ctx context.Context, customerID, methodID string) error {
	return nil
}

func (m *MockGateway) DetachPaymentMethod(ctx context.Context, methodID string) error {
	m.mu.Lock()
	m.DetachedMethods = append(m.DetachedMethods, methodID)
	m.mu.Unlock()
	return nil
}

func (m *MockGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error {
	return nil
}

func (m *MockGateway) Refund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, params)
	}
	return &gateway.RefundResult{RefundID: "mock_refund_1", Status: "succeeded"}, nil
}

func (m *MockGateway) GetInvoice(ctx context.Context, invoiceID string) (*gateway.GatewayInvoice, error) {
	return &gateway.GatewayInvoice{ID: invoiceID, Status: "paid"}, nil
}

func (m *MockGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(payload, signature)
	}
	return true
}

func (m *MockGateway) ParseWebhookEvent(payload []byte) gateway.CanonicalEvent {
	if m.ParseFunc != nil {
		return m.ParseFunc(payload)
	}
	return gateway.CanonicalEvent{Type: types.WebhookUnknown}
}
