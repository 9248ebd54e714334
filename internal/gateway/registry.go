package gateway

import (
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/types"
)

// Registry holds the configured gateway implementations.
type Registry struct {
	gateways map[types.PaymentGateway]Gateway
}

// NewRegistry creates a registry over the given gateways.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[types.PaymentGateway]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Type()] = g
	}
	return r
}

// Get returns the gateway for the given type.
func (r *Registry) Get(gatewayType types.PaymentGateway) (Gateway, error) {
	g, ok := r.gateways[gatewayType]
	if !ok {
		return nil, ierr.NewError("gateway not configured").
			WithHintf("Payment gateway '%s' is not configured", gatewayType).
			Mark(ierr.ErrConfiguration)
	}
	return g, nil
}

// All returns every configured gateway.
func (r *Registry) All() []Gateway {
	out := make([]Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		out = append(out, g)
	}
	return out
}
