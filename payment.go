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

package payflow

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/payflowhq/payflow/database"
	"github.com/payflowhq/payflow/internal/notification"
	"github.com/payflowhq/payflow/model"
)

// InitiateResult is the wire shape returned to intake callers.
type InitiateResult struct {
	Payment            *model.PaymentRecord `json:"payment"`
	IsIdempotentReplay bool                 `json:"isIdempotentReplay"`
}

// InitiatePayment creates a payment for req, or returns the payment already
// created for req.IdempotencyKey with replay set to true. Concurrent calls
// with the same key are serialised so exactly one of them creates.
func (p *PayFlow) InitiatePayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentRecord, bool, error) {
	ctx, span := tracer.Start(ctx, "Initiating payment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.idempotency_key", req.IdempotencyKey))

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	p.resetMu.RLock()
	defer p.resetMu.RUnlock()

	release, err := p.locker.Acquire(ctx, req.IdempotencyKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, pkgerrors.Wrapf(err, "locking idempotency key %s", req.IdempotencyKey)
	}
	defer release()

	existingID, found, err := p.datasource.LookupIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	if found {
		record, err := p.replay(ctx, existingID)
		switch {
		case err == nil:
			span.SetAttributes(attribute.String("payment.id", record.ID), attribute.Bool("payment.replay", true))
			p.metrics.Initiated(true)
			return record, true, nil
		case errors.Is(err, database.ErrPaymentNotFound):
			// The index outlived the store (redis index, restarted process).
			logrus.WithFields(logrus.Fields{
				"idempotency_key": req.IdempotencyKey,
				"payment_id":      existingID,
			}).Warn("idempotency key points at a missing payment, creating a new one")
			if err := p.datasource.ReleaseIdempotencyKey(ctx, req.IdempotencyKey, existingID); err != nil {
				return nil, false, err
			}
		default:
			span.RecordError(err)
			return nil, false, err
		}
	}

	record := model.NewPaymentRecord(model.GenerateUUIDWithSuffix("pay"), req, p.clock.Now())
	if err := p.create(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	span.SetAttributes(attribute.String("payment.id", record.ID), attribute.Bool("payment.replay", false))

	logrus.WithFields(logrus.Fields{
		"payment_id":      record.ID,
		"idempotency_key": record.IdempotencyKey,
	}).Info(model.LogCreated)
	p.metrics.Initiated(false)

	p.scheduleSettlement(ctx, record.ID)
	p.emit(ctx, EventPaymentInitiated, record)

	return record, false, nil
}

// create reserves the key then stores the record. A failed put hands the key
// back so nothing half-written is left behind.
func (p *PayFlow) create(ctx context.Context, record *model.PaymentRecord) error {
	if err := p.datasource.ReserveIdempotencyKey(ctx, record.IdempotencyKey, record.ID); err != nil {
		return pkgerrors.Wrap(err, "reserving idempotency key")
	}
	if err := p.datasource.PutPayment(ctx, record); err != nil {
		if releaseErr := p.datasource.ReleaseIdempotencyKey(ctx, record.IdempotencyKey, record.ID); releaseErr != nil {
			logrus.WithField("payment_id", record.ID).Errorf("releasing idempotency key after failed write: %v", releaseErr)
		}
		return pkgerrors.Wrap(err, "storing payment")
	}
	return nil
}

func (p *PayFlow) replay(ctx context.Context, id string) (*model.PaymentRecord, error) {
	record, err := p.datasource.UpdatePayment(ctx, id, func(r *model.PaymentRecord) error {
		r.AppendLog(p.clock.Now(), model.LogReplayed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"payment_id":      record.ID,
		"idempotency_key": record.IdempotencyKey,
		"status":          record.Status,
	}).Info(model.LogReplayed)
	return record, nil
}

func (p *PayFlow) scheduleSettlement(ctx context.Context, id string) {
	// Settlement must not die with the request that created it.
	ctx = context.WithoutCancel(ctx)
	if err := p.scheduler.ScheduleSettlement(ctx, id, p.delay); err != nil {
		notification.NotifyError(pkgerrors.Wrapf(err, "scheduling settlement for %s", id))
	}
}

// GetPayment returns the payment with id, or nil when there is none.
func (p *PayFlow) GetPayment(ctx context.Context, id string) (*model.PaymentRecord, error) {
	record, err := p.datasource.GetPayment(ctx, id)
	if errors.Is(err, database.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListPayments returns every payment, newest first.
func (p *PayFlow) ListPayments(ctx context.Context) ([]*model.PaymentRecord, error) {
	return p.datasource.GetAllPayments(ctx)
}

// ResetAll drops every payment and idempotency mapping. Settlements still
// pending for dropped payments fire later as no-ops.
func (p *PayFlow) ResetAll(ctx context.Context) error {
	p.resetMu.Lock()
	defer p.resetMu.Unlock()
	if err := p.datasource.Reset(ctx); err != nil {
		return err
	}
	logrus.Warn("payflow state reset")
	return nil
}
