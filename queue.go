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

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypeSettlePayment = "payment:settle"
	TypeWebhook       = "payment:webhook"
)

// Queue schedules settlements and webhooks as asynq tasks in Redis.
type Queue struct {
	Client          *asynq.Client
	Inspector       *asynq.Inspector
	settlementQueue string
	webhookQueue    string
	maxRetry        int
}

type settlementPayload struct {
	PaymentID string `json:"payment_id"`
}

func NewQueue(opt asynq.RedisConnOpt, settlementQueue, webhookQueue string, maxRetry int) *Queue {
	return &Queue{
		Client:          asynq.NewClient(opt),
		Inspector:       asynq.NewInspector(opt),
		settlementQueue: settlementQueue,
		webhookQueue:    webhookQueue,
		maxRetry:        maxRetry,
	}
}

// Queues returns the queue weights for the asynq server. Settlements win over
// webhooks when both are waiting.
func (q *Queue) Queues() map[string]int {
	return map[string]int{
		q.settlementQueue: 3,
		q.webhookQueue:    1,
	}
}

// ScheduleSettlement enqueues a settlement task whose id is the payment id, so
// a second schedule for the same payment is absorbed by asynq.
func (q *Queue) ScheduleSettlement(ctx context.Context, paymentID string, delay time.Duration) error {
	payload, err := json.Marshal(settlementPayload{PaymentID: paymentID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeSettlePayment, payload,
		asynq.TaskID(paymentID),
		asynq.Queue(q.settlementQueue),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(q.maxRetry),
	)

	info, err := q.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logrus.WithField("payment_id", paymentID).Debug("settlement already scheduled")
		return nil
	}
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"payment_id": paymentID, "process_at": info.NextProcessAt}).Debug("settlement scheduled")
	return nil
}

// Dispatch queues hook for delivery by WebhookClient.ProcessWebhook.
func (q *Queue) Dispatch(ctx context.Context, hook NewWebhook) error {
	payload, err := json.Marshal(hook)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeWebhook, payload, asynq.Queue(q.webhookQueue), asynq.MaxRetry(q.maxRetry))
	_, err = q.Client.EnqueueContext(ctx, task)
	return err
}

// GetScheduledSettlement returns the pending settlement task for paymentID,
// or nil when there is none.
func (q *Queue) GetScheduledSettlement(paymentID string) (*asynq.TaskInfo, error) {
	info, err := q.Inspector.GetTaskInfo(q.settlementQueue, paymentID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (q *Queue) Close() error {
	return errors.Join(q.Client.Close(), q.Inspector.Close())
}

// ProcessSettlement is the asynq handler for TypeSettlePayment tasks.
func (p *PayFlow) ProcessSettlement(ctx context.Context, task *asynq.Task) error {
	var payload settlementPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.PaymentID == "" {
		return fmt.Errorf("invalid settlement payload %q: %w", task.Payload(), asynq.SkipRetry)
	}
	if _, err := p.SettlePayment(ctx, payload.PaymentID); err != nil {
		return err
	}
	return nil
}

// RegisterHandlers routes queued tasks to the core and webhook client.
func RegisterHandlers(mux *asynq.ServeMux, p *PayFlow, hooks *WebhookClient) {
	mux.HandleFunc(TypeSettlePayment, p.ProcessSettlement)
	if hooks != nil {
		mux.HandleFunc(TypeWebhook, hooks.ProcessWebhook)
	}
}
