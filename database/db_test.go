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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/model"
)

func newRecord(id string, createdAt time.Time) *model.PaymentRecord {
	return model.NewPaymentRecord(id, model.PaymentRequest{
		Amount:         decimal.NewFromFloat(gofakeit.Price(1, 1000)),
		Currency:       gofakeit.CurrencyShort(),
		SourceID:       gofakeit.UUID(),
		DestinationID:  gofakeit.UUID(),
		IdempotencyKey: gofakeit.UUID(),
	}, createdAt)
}

func TestPutAndGetPayment(t *testing.T) {
	ctx := context.Background()
	ds := NewDataSource(nil)
	record := newRecord("pay_1", time.Now())

	require.NoError(t, ds.PutPayment(ctx, record))

	got, err := ds.GetPayment(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	// The store keeps its own copy.
	got.Logs = append(got.Logs, "tampered")
	again, err := ds.GetPayment(ctx, "pay_1")
	require.NoError(t, err)
	assert.Len(t, again.Logs, 1)
}

func TestGetPaymentNotFound(t *testing.T) {
	ds := NewDataSource(nil)
	got, err := ds.GetPayment(context.Background(), "pay_missing")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrPaymentNotFound))
}

func TestPutPaymentRequiresID(t *testing.T) {
	ds := NewDataSource(nil)
	assert.Error(t, ds.PutPayment(context.Background(), &model.PaymentRecord{}))
	assert.Error(t, ds.PutPayment(context.Background(), nil))
}

func TestPutPaymentReplaces(t *testing.T) {
	ctx := context.Background()
	ds := NewDataSource(nil)
	record := newRecord("pay_1", time.Now())
	require.NoError(t, ds.PutPayment(ctx, record))

	record.Status = model.StatusFailed
	require.NoError(t, ds.PutPayment(ctx, record))

	got, err := ds.GetPayment(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}

func TestGetAllPaymentsOrdering(t *testing.T) {
	ctx := context.Background()
	ds := NewDataSource(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_old", base)))
	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_new", base.Add(2*time.Minute))))
	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_mid", base.Add(time.Minute))))
	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_b", base.Add(3*time.Minute))))
	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_a", base.Add(3*time.Minute))))

	records, err := ds.GetAllPayments(ctx)
	require.NoError(t, err)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"pay_a", "pay_b", "pay_new", "pay_mid", "pay_old"}, ids)
}

func TestUpdatePayment(t *testing.T) {
	ctx := context.Background()
	ds := NewDataSource(nil)
	record := newRecord("pay_1", time.Now())
	require.NoError(t, ds.PutPayment(ctx, record))

	updated, err := ds.UpdatePayment(ctx, "pay_1", func(r *model.PaymentRecord) error {
		r.AppendLog(time.Now(), model.LogReplayed)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Logs, 2)

	t.Run("no change leaves record untouched", func(t *testing.T) {
		unchanged, err := ds.UpdatePayment(ctx, "pay_1", func(r *model.PaymentRecord) error {
			r.Logs = nil
			return ErrNoChange
		})
		assert.True(t, errors.Is(err, ErrNoChange))
		assert.Len(t, unchanged.Logs, 2)

		stored, err := ds.GetPayment(ctx, "pay_1")
		require.NoError(t, err)
		assert.Len(t, stored.Logs, 2)
	})

	t.Run("mutator error is wrapped and discarded", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ds.UpdatePayment(ctx, "pay_1", func(r *model.PaymentRecord) error {
			r.Status = model.StatusFailed
			return boom
		})
		assert.True(t, errors.Is(err, boom))

		stored, err := ds.GetPayment(ctx, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusInitiated, stored.Status)
	})

	t.Run("missing payment", func(t *testing.T) {
		_, err := ds.UpdatePayment(ctx, "pay_missing", func(r *model.PaymentRecord) error { return nil })
		assert.True(t, errors.Is(err, ErrPaymentNotFound))
	})
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	ds := NewDataSource(nil)
	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_1", time.Now())))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ds.UpdatePayment(ctx, "pay_1", func(r *model.PaymentRecord) error {
				r.AppendLog(time.Now(), fmt.Sprintf("writer %d", i))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := ds.GetPayment(ctx, "pay_1")
	require.NoError(t, err)
	assert.Len(t, stored.Logs, writers+1)
}

func TestResetClearsRecordsAndIndex(t *testing.T) {
	ctx := context.Background()
	ds := NewDataSource(nil)
	require.NoError(t, ds.PutPayment(ctx, newRecord("pay_1", time.Now())))
	require.NoError(t, ds.ReserveIdempotencyKey(ctx, "k1", "pay_1"))

	require.NoError(t, ds.Reset(ctx))

	records, err := ds.GetAllPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, found, err := ds.LookupIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, ds.ReserveIdempotencyKey(ctx, "k1", "pay_2"))
}
