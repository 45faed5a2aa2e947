package payflow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/payflowhq/payflow/database"
	"github.com/payflowhq/payflow/internal/notification"
	"github.com/payflowhq/payflow/model"
)

// OutcomeFunc decides the terminal status a payment settles to.
type OutcomeFunc func(record model.PaymentRecord) model.PaymentStatus

// WeightedOutcome settles to SUCCESS with probability successRate and to
// FAILED otherwise. rng may be shared; access is serialised.
func WeightedOutcome(successRate float64, rng *rand.Rand) OutcomeFunc {
	var mu sync.Mutex
	return func(model.PaymentRecord) model.PaymentStatus {
		mu.Lock()
		draw := rng.Float64()
		mu.Unlock()
		if draw < successRate {
			return model.StatusSuccess
		}
		return model.StatusFailed
	}
}

// FixedOutcome always settles to status.
func FixedOutcome(status model.PaymentStatus) OutcomeFunc {
	return func(model.PaymentRecord) model.PaymentStatus {
		return status
	}
}

// SettlePayment moves the payment from INITIATED to the terminal status chosen
// by the outcome func. It does nothing, and returns the stored record, when
// the payment is already past INITIATED. A payment that no longer exists
// yields nil, nil.
func (p *PayFlow) SettlePayment(ctx context.Context, id string) (*model.PaymentRecord, error) {
	record, _, err := p.settle(ctx, id)
	return record, err
}

// settle reports whether this call performed the transition.
func (p *PayFlow) settle(ctx context.Context, id string) (*model.PaymentRecord, bool, error) {
	ctx, span := tracer.Start(ctx, "Settling payment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", id))

	record, err := p.datasource.UpdatePayment(ctx, id, func(r *model.PaymentRecord) error {
		if r.Status != model.StatusInitiated {
			return database.ErrNoChange
		}
		outcome := p.outcome(*r.Clone())
		if !outcome.IsTerminal() {
			return fmt.Errorf("settlement outcome %s is not terminal", outcome)
		}
		return r.Transition(outcome, p.clock.Now())
	})

	switch {
	case errors.Is(err, database.ErrPaymentNotFound):
		logrus.WithField("payment_id", id).Debug("settlement skipped, payment no longer exists")
		return nil, false, nil
	case errors.Is(err, database.ErrNoChange):
		logrus.WithFields(logrus.Fields{"payment_id": id, "status": record.Status}).Debug("settlement skipped, payment already settled")
		return record, false, nil
	case err != nil:
		span.RecordError(err)
		return nil, false, err
	}

	span.SetAttributes(attribute.String("payment.status", string(record.Status)))
	logrus.WithFields(logrus.Fields{
		"payment_id": record.ID,
		"status":     record.Status,
	}).Infof(model.LogSettled, record.Status)
	p.metrics.Settled(string(record.Status), record.UpdatedAt.Sub(record.CreatedAt))
	p.emit(ctx, eventForStatus(record.Status), record)

	return record, true, nil
}

// settleScheduled is what the in-process scheduler fires. There is no caller
// left to return an error to, so failures are reported instead.
func (p *PayFlow) settleScheduled(ctx context.Context, id string) error {
	if _, err := p.SettlePayment(ctx, id); err != nil {
		notification.NotifyError(fmt.Errorf("settling payment %s: %w", id, err))
		return err
	}
	return nil
}
