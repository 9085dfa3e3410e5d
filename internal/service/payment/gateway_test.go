package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4500), toMinorUnits(decimal.RequireFromString("45")))
	assert.Equal(t, int64(1234), toMinorUnits(decimal.RequireFromString("12.34")))
	assert.Equal(t, int64(1), toMinorUnits(decimal.RequireFromString("0.005")))
}

func TestIdempotencyKey(t *testing.T) {
	id := "0b7c4c1e-8a51-4d43-9d0e-3f1f6b1b2a10"
	visa := IdempotencyKey(id, "pm_card_visa")

	assert.Equal(t, visa, IdempotencyKey(id, "pm_card_visa"), "same card retries share a key")
	assert.NotEqual(t, visa, IdempotencyKey(id, "pm_card_mastercard"), "a new card gets a new key")
	assert.NotEqual(t, visa, IdempotencyKey("another-appointment", "pm_card_visa"))
	assert.True(t, strings.HasPrefix(visa, "appointment-"+id+"-"))
	assert.Len(t, visa, len("appointment-"+id+"-")+16)
	assert.NotContains(t, visa, "pm_card_visa")
}

func TestDisabledGatewayRejectsCards(t *testing.T) {
	_, err := NewDisabledGateway().Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStripeGatewayRequiresToken(t *testing.T) {
	_, err := NewStripeGateway("sk_test_x").Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(10), Currency: "eur"})
	assert.ErrorIs(t, err, ErrDeclined)
}
