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
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment. The string values are
// part of the wire format and must not change.
type PaymentStatus string

const (
	StatusInitiated  PaymentStatus = "INITIATED"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusSuccess    PaymentStatus = "SUCCESS"
	StatusFailed     PaymentStatus = "FAILED"
)

// Audit messages appended to PaymentRecord.Logs.
const (
	LogCreated  = "Payment INITIATED. Idempotency Key locked."
	LogReplayed = "Idempotency hit: Request ignored, returning existing record."
	LogSettled  = "Processing complete. Status updated to %s."
)

// IsTerminal reports whether no further transitions are permitted from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Valid reports whether s is one of the declared statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusProcessing, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// PaymentRequest is the client input for a payment. It is never persisted on its own.
type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	SourceID       string          `json:"sourceId"`
	DestinationID  string          `json:"destinationId"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// PaymentRecord is the persisted payment entity.
type PaymentRecord struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	SourceID       string          `json:"sourceId"`
	DestinationID  string          `json:"destinationId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Status         PaymentStatus   `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Logs           []string        `json:"logs"`
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal amount")
	}
	if !amount.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
}

// Validate checks the fields the core relies on. Any failure is returned as a
// *ValidationError.
func (r PaymentRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.By(positiveAmount)),
		validation.Field(&r.Currency, validation.Required),
		validation.Field(&r.SourceID, validation.Required),
		validation.Field(&r.DestinationID, validation.Required),
		validation.Field(&r.IdempotencyKey, validation.Required),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// NewPaymentRecord builds a fresh INITIATED record for req. createdAt and
// updatedAt are both set to now and the creation entry is the first log line.
func NewPaymentRecord(id string, req PaymentRequest, now time.Time) *PaymentRecord {
	now = now.UTC()
	return &PaymentRecord{
		ID:             id,
		Amount:         req.Amount,
		Currency:       req.Currency,
		SourceID:       req.SourceID,
		DestinationID:  req.DestinationID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         StatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
		Logs:           []string{FormatAuditEntry(now, LogCreated)},
	}
}

// AppendLog adds an audit entry and refreshes UpdatedAt.
func (p *PaymentRecord) AppendLog(at time.Time, message string) {
	p.touch(at)
	p.Logs = append(p.Logs, FormatAuditEntry(p.UpdatedAt, message))
}

// touch moves UpdatedAt forward to at, never behind CreatedAt.
func (p *PaymentRecord) touch(at time.Time) {
	at = at.UTC()
	if at.Before(p.CreatedAt) {
		at = p.CreatedAt
	}
	p.UpdatedAt = at
}

// Clone returns a deep copy so callers never share the Logs backing array
// with the store.
func (p *PaymentRecord) Clone() *PaymentRecord {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Logs = make([]string, len(p.Logs))
	copy(clone.Logs, p.Logs)
	return &clone
}
