package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreatePayment(t *testing.T) {
	tests := []struct {
		name    string
		payment CreatePayment
		wantErr bool
	}{
		{
			name:    "Valid payment",
			payment: CreatePayment{Amount: decimal.NewFromInt(100), Currency: "USD", SourceID: "a", DestinationID: "b", IdempotencyKey: "k"},
			wantErr: false,
		},
		{
			name:    "Lowercase currency is accepted",
			payment: CreatePayment{Currency: "ngn"},
			wantErr: false,
		},
		{
			name:    "Missing currency is left to the core",
			payment: CreatePayment{},
			wantErr: false,
		},
		{
			name:    "Currency with digits",
			payment: CreatePayment{Currency: "US1"},
			wantErr: true,
		},
		{
			name:    "Currency too long",
			payment: CreatePayment{Currency: "USDT"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payment.ValidateCreatePayment()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestToPaymentRequest(t *testing.T) {
	body := CreatePayment{
		Amount:         decimal.RequireFromString("12.50"),
		Currency:       "eur",
		SourceID:       "src",
		DestinationID:  "dst",
		IdempotencyKey: "body-key",
	}

	req := body.ToPaymentRequest("header-key")
	assert.Equal(t, "body-key", req.IdempotencyKey)
	assert.Equal(t, "eur", req.Currency)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "src", req.SourceID)
	assert.Equal(t, "dst", req.DestinationID)

	body.IdempotencyKey = ""
	assert.Equal(t, "header-key", body.ToPaymentRequest("header-key").IdempotencyKey)
	assert.Empty(t, body.ToPaymentRequest("").IdempotencyKey)
}
