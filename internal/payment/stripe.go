// Package payment creates payment intents with Stripe.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/example/class-booking/internal/application"
)

// StripeGateway implements application.PaymentGateway with the PaymentIntents API.
type StripeGateway struct {
	client paymentintent.Client
}

// NewStripeGateway returns a gateway authenticated with secretKey.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("payment: stripe secret key is required")
	}
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend)), nil
}

// NewStripeGatewayWithBackend lets callers point the client at another backend.
func NewStripeGatewayWithBackend(secretKey string, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{client: paymentintent.Client{B: backend, Key: secretKey}}
}

// CreatePaymentIntent creates a card payment intent and returns its client secret.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, in application.PaymentIntentParams) (application.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.AmountCents),
		Currency:           stripe.String(in.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.client.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return application.PaymentIntent{}, fmt.Errorf("stripe %s: %s", stripeErr.Type, stripeErr.Msg)
		}
		return application.PaymentIntent{}, fmt.Errorf("stripe: %w", err)
	}
	return application.PaymentIntent{ClientSecret: pi.ClientSecret}, nil
}
