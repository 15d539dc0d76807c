package provider

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

// StripeGateway opens payment attempts as Stripe PaymentIntents.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) CreateIntent(_ context.Context, bookingID string, amount int64, currency string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("booking_id", bookingID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("provider: creating payment intent: %w", err)
	}

	return Intent{
		ProviderRef: pi.ID,
		PayloadText: pi.ClientSecret,
		CheckoutURL: checkoutURL(pi),
	}, nil
}

func checkoutURL(pi *stripe.PaymentIntent) string {
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		return pi.NextAction.RedirectToURL.URL
	}
	return ""
}

// ProviderRefLookup resolves a booking to the provider's reference for
// its in-flight payment. Implemented by the payment repository.
type ProviderRefLookup interface {
	ProviderRefByBookingID(ctx context.Context, bookingID string) (string, error)
}

// StripeChecker implements payment.StatusChecker against the Stripe
// API. The raw intent status string is returned untouched; the payment
// package's normalization table owns the mapping.
type StripeChecker struct {
	lookup ProviderRefLookup
}

func NewStripeChecker(lookup ProviderRefLookup) *StripeChecker {
	return &StripeChecker{lookup: lookup}
}

func (c *StripeChecker) Check(ctx context.Context, bookingID string) (string, error) {
	ref, err := c.lookup.ProviderRefByBookingID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	pi, err := paymentintent.Get(ref, nil)
	if err != nil {
		return "", err
	}
	return string(pi.Status), nil
}
