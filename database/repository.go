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

package database

import (
	"context"
	"errors"

	"github.com/payflowhq/payflow/model"
)

var (
	// ErrPaymentNotFound is returned when no record exists for an id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrNoChange is returned by an UpdatePayment mutator to leave the record untouched.
	ErrNoChange = errors.New("no change")
)

// MutateFunc mutates a working copy of a record inside UpdatePayment.
type MutateFunc func(record *model.PaymentRecord) error

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	payment     // Interface for ledger store operations
	idempotency // Interface for idempotency index operations
	Reset(ctx context.Context) error
}

// payment defines the keyed persistence of payment records.
type payment interface {
	// GetPayment retrieves a payment by ID.
	GetPayment(ctx context.Context, id string) (*model.PaymentRecord, error)
	// GetAllPayments retrieves all payments, newest first.
	GetAllPayments(ctx context.Context) ([]*model.PaymentRecord, error)
	// PutPayment upserts a payment.
	PutPayment(ctx context.Context, record *model.PaymentRecord) error
	// UpdatePayment runs an atomic read-modify-write on one payment.
	UpdatePayment(ctx context.Context, id string, mutate MutateFunc) (*model.PaymentRecord, error)
}

// idempotency maps client idempotency keys to payment ids.
type idempotency interface {
	LookupIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	ReserveIdempotencyKey(ctx context.Context, key, paymentID string) error
	ReleaseIdempotencyKey(ctx context.Context, key, paymentID string) error
}

// IdempotencyIndex is the storage behind the idempotency methods of IDataSource.
type IdempotencyIndex interface {
	// Lookup returns the payment id reserved for key. It never mutates.
	Lookup(ctx context.Context, key string) (string, bool, error)

	// Reserve registers key -> paymentID. Reserving a key that already maps to
	// the same id is a no-op; a different id yields *model.ConflictError.
	Reserve(ctx context.Context, key, paymentID string) error

	// Release removes key only while it still maps to paymentID.
	Release(ctx context.Context, key, paymentID string) error

	// Reset drops every mapping.
	Reset(ctx context.Context) error
}
