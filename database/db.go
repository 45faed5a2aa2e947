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
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/payflowhq/payflow/model"
)

// Datasource is the in-process ledger store. The map lock only guards the
// map itself; each record carries its own lock so mutations on different
// payments never wait on each other.
type Datasource struct {
	mu       sync.RWMutex
	payments map[string]*entry
	index    IdempotencyIndex
}

type entry struct {
	mu     sync.Mutex
	record *model.PaymentRecord
}

// NewDataSource creates an empty store backed by index. A nil index falls
// back to an in-memory one.
func NewDataSource(index IdempotencyIndex) *Datasource {
	if index == nil {
		index = NewMemoryIndex()
	}
	return &Datasource{
		payments: make(map[string]*entry),
		index:    index,
	}
}

func (d *Datasource) lookupEntry(id string) (*entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.payments[id]
	return e, ok
}

// GetPayment returns a copy of the record or ErrPaymentNotFound.
func (d *Datasource) GetPayment(_ context.Context, id string) (*model.PaymentRecord, error) {
	e, ok := d.lookupEntry(id)
	if !ok {
		return nil, ErrPaymentNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone(), nil
}

// GetAllPayments returns every record sorted by createdAt descending, ties
// broken by id ascending.
func (d *Datasource) GetAllPayments(_ context.Context) ([]*model.PaymentRecord, error) {
	d.mu.RLock()
	records := make([]*model.PaymentRecord, 0, len(d.payments))
	for _, e := range d.payments {
		e.mu.Lock()
		records = append(records, e.record.Clone())
		e.mu.Unlock()
	}
	d.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// PutPayment fully replaces whatever is stored under record.ID.
func (d *Datasource) PutPayment(_ context.Context, record *model.PaymentRecord) error {
	if record == nil || record.ID == "" {
		return errors.New("payment record requires an id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.payments[record.ID]; ok {
		e.mu.Lock()
		e.record = record.Clone()
		e.mu.Unlock()
		return nil
	}
	d.payments[record.ID] = &entry{record: record.Clone()}
	return nil
}

// UpdatePayment hands mutate a working copy of the record while holding the
// record's lock and stores the result. When mutate returns ErrNoChange the
// stored record is left as is and returned alongside ErrNoChange.
func (d *Datasource) UpdatePayment(_ context.Context, id string, mutate MutateFunc) (*model.PaymentRecord, error) {
	e, ok := d.lookupEntry(id)
	if !ok {
		return nil, ErrPaymentNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.record.Clone()
	if err := mutate(working); err != nil {
		if errors.Is(err, ErrNoChange) {
			return e.record.Clone(), err
		}
		return nil, pkgerrors.Wrapf(err, "updating payment %s", id)
	}
	e.record = working
	return working.Clone(), nil
}

func (d *Datasource) LookupIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	return d.index.Lookup(ctx, key)
}

func (d *Datasource) ReserveIdempotencyKey(ctx context.Context, key, paymentID string) error {
	return d.index.Reserve(ctx, key, paymentID)
}

func (d *Datasource) ReleaseIdempotencyKey(ctx context.Context, key, paymentID string) error {
	return d.index.Release(ctx, key, paymentID)
}

// Reset clears every record and the idempotency index with it.
func (d *Datasource) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.index.Reset(ctx); err != nil {
		return pkgerrors.Wrap(err, "resetting idempotency index")
	}
	d.payments = make(map[string]*entry)
	return nil
}
