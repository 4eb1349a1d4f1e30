package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/tasklinkhq/tasklink-backend/pkg/stripe"
)

type stripeClientWrapper struct {
	api *stripe.Client
}

// NewStripeClient wraps the provided Stripe client so the payments service can be tested.
func NewStripeClient(client *pkgstripe.Client) CheckoutSessionCreator {
	if client == nil || client.API() == nil {
		return nil
	}
	return &stripeClientWrapper{api: client.API()}
}

func (w *stripeClientWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	return w.api.V1CheckoutSessions.Create(ctx, params)
}
