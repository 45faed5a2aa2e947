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
package mocks

import (
	"context"

	"github.com/payflowhq/payflow/database"
	"github.com/payflowhq/payflow/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Payment methods

func (m *MockDataSource) GetPayment(ctx context.Context, id string) (*model.PaymentRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*model.PaymentRecord)
	return record, args.Error(1)
}

func (m *MockDataSource) GetAllPayments(ctx context.Context) ([]*model.PaymentRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*model.PaymentRecord), args.Error(1)
}

func (m *MockDataSource) PutPayment(ctx context.Context, record *model.PaymentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDataSource) UpdatePayment(ctx context.Context, id string, mutate database.MutateFunc) (*model.PaymentRecord, error) {
	args := m.Called(ctx, id, mutate)
	record, _ := args.Get(0).(*model.PaymentRecord)
	return record, args.Error(1)
}

// Idempotency methods

func (m *MockDataSource) LookupIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockDataSource) ReserveIdempotencyKey(ctx context.Context, key, paymentID string) error {
	args := m.Called(ctx, key, paymentID)
	return args.Error(0)
}

func (m *MockDataSource) ReleaseIdempotencyKey(ctx context.Context, key, paymentID string) error {
	args := m.Called(ctx, key, paymentID)
	return args.Error(0)
}

func (m *MockDataSource) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
