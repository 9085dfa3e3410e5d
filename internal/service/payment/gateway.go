package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

var (
	ErrDeclined    = errors.New("payment declined")
	ErrUnavailable = errors.New("card payments are not enabled")
	// ErrIdempotencyConflict means the provider already saw the key with
	// different parameters, e.g. a changed amount for the same card.
	ErrIdempotencyConflict = errors.New("payment already in progress with different details")
)

// IdempotencyKey scopes a charge to one appointment and one payment method.
// Retrying with the same card collapses into one charge; a new card after a
// decline gets a fresh key.
func IdempotencyKey(appointmentID, paymentToken string) string {
	sum := sha256.Sum256([]byte(paymentToken))
	return "appointment-" + appointmentID + "-" + hex.EncodeToString(sum[:])[:16]
}

// ChargeRequest describes one card capture. IdempotencyKey makes retries of
// the same logical payment collapse into a single charge at the provider.
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	PaymentToken   string
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

type Charge struct {
	Reference string
	Status    string
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
}

type stripeGateway struct {
	intents *paymentintent.Client
}

// NewStripeGateway charges cards through Stripe PaymentIntents.
func NewStripeGateway(secretKey string) Gateway {
	return &stripeGateway{
		intents: &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}
}

func (g *stripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.PaymentToken == "" {
		return nil, fmt.Errorf("%w: payment_token is required for card payments", ErrDeclined)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount)),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.PaymentToken),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := g.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			switch stripeErr.Type {
			case stripe.ErrorTypeCard:
				return nil, fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
			case stripe.ErrorTypeIdempotency:
				return nil, fmt.Errorf("%w: %s", ErrIdempotencyConflict, stripeErr.Msg)
			}
		}
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return &Charge{Reference: intent.ID, Status: string(intent.Status)}, nil
	default:
		return nil, fmt.Errorf("%w: payment intent %s is %s", ErrDeclined, intent.ID, intent.Status)
	}
}

type disabledGateway struct{}

// NewDisabledGateway rejects every card charge. Cash payments still work.
func NewDisabledGateway() Gateway {
	return disabledGateway{}
}

func (disabledGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	return nil, ErrUnavailable
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
