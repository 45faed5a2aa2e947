/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/payflowhq/payflow/model"
)

// IdempotencyKeyHeader is read when the body carries no idempotencyKey.
const IdempotencyKeyHeader = "Idempotency-Key"

var currencyCode = regexp.MustCompile(`^[A-Za-z]{3}$`)

type CreatePayment struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	SourceID       string          `json:"sourceId"`
	DestinationID  string          `json:"destinationId"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// ValidateCreatePayment only checks shape. Required fields and the amount
// sign are enforced by the core so both entry points agree.
func (p *CreatePayment) ValidateCreatePayment() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Currency, validation.When(p.Currency != "", validation.Match(currencyCode).Error("must be a three letter currency code"))),
		validation.Field(&p.IdempotencyKey, validation.Length(0, 255)),
	)
}

// ToPaymentRequest builds the core request. headerKey is used only when the
// body has no idempotency key.
func (p *CreatePayment) ToPaymentRequest(headerKey string) model.PaymentRequest {
	key := p.IdempotencyKey
	if key == "" {
		key = headerKey
	}
	return model.PaymentRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		SourceID:       p.SourceID,
		DestinationID:  p.DestinationID,
		IdempotencyKey: key,
	}
}
