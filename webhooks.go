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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/payflowhq/payflow/internal/notification"
	"github.com/payflowhq/payflow/internal/request"
	"github.com/payflowhq/payflow/model"
)

const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentSuccess   = "payment.success"
	EventPaymentFailed    = "payment.failed"
)

// NewWebhook is the body POSTed to the configured webhook url.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// WebhookDispatcher hands an event off for delivery without waiting for it.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, hook NewWebhook) error
}

func eventForStatus(status model.PaymentStatus) string {
	switch status {
	case model.StatusInitiated:
		return EventPaymentInitiated
	case model.StatusSuccess:
		return EventPaymentSuccess
	case model.StatusFailed:
		return EventPaymentFailed
	default:
		return "payment.unknown"
	}
}

func (p *PayFlow) emit(ctx context.Context, event string, record *model.PaymentRecord) {
	if p.webhooks == nil {
		return
	}
	if err := p.webhooks.Dispatch(ctx, NewWebhook{Event: event, Payload: record}); err != nil {
		notification.NotifyError(fmt.Errorf("dispatching %s for %s: %w", event, record.ID, err))
	}
}

// WebhookClient delivers events to a single endpoint.
type WebhookClient struct {
	url        string
	headers    map[string]string
	maxElapsed time.Duration
}

func NewWebhookClient(url string, headers map[string]string) *WebhookClient {
	return &WebhookClient{url: url, headers: headers, maxElapsed: time.Minute}
}

// Deliver makes one attempt.
func (c *WebhookClient) Deliver(ctx context.Context, hook NewWebhook) error {
	return request.PostJSON(ctx, c.url, c.headers, hook)
}

// DeliverWithRetry retries transport errors and retryable status codes with
// exponential backoff. Other rejections are final.
func (c *WebhookClient) DeliverWithRetry(ctx context.Context, hook NewWebhook) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.maxElapsed

	return backoff.Retry(func() error {
		err := c.Deliver(ctx, hook)
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// Dispatch delivers in the background. It is the memory backend's dispatcher;
// the redis backend goes through Queue instead.
func (c *WebhookClient) Dispatch(ctx context.Context, hook NewWebhook) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.DeliverWithRetry(ctx, hook); err != nil {
			notification.NotifyError(fmt.Errorf("delivering webhook %s: %w", hook.Event, err))
		}
	}()
	return nil
}

// ProcessWebhook is the asynq handler for queued webhooks. A failed delivery
// is returned so asynq retries it.
func (c *WebhookClient) ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	var hook NewWebhook
	if err := json.Unmarshal(task.Payload(), &hook); err != nil {
		return fmt.Errorf("decoding webhook task: %v: %w", err, asynq.SkipRetry)
	}
	logrus.WithField("event", hook.Event).Debug("processing webhook")
	return c.Deliver(ctx, hook)
}
