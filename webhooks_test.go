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
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/model"
)

const hookURL = "https://hooks.example.com/payflow"

type receivedHooks struct {
	mu     sync.Mutex
	events []string
}

func (r *receivedHooks) responder(status int) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		var hook struct {
			Event string               `json:"event"`
			Data  *model.PaymentRecord `json:"data"`
		}
		if err := json.NewDecoder(req.Body).Decode(&hook); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.events = append(r.events, hook.Event)
		r.mu.Unlock()
		return httpmock.NewStringResponse(status, ""), nil
	}
}

func (r *receivedHooks) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestEventForStatus(t *testing.T) {
	assert.Equal(t, EventPaymentInitiated, eventForStatus(model.StatusInitiated))
	assert.Equal(t, EventPaymentSuccess, eventForStatus(model.StatusSuccess))
	assert.Equal(t, EventPaymentFailed, eventForStatus(model.StatusFailed))
	assert.Equal(t, "payment.unknown", eventForStatus(model.StatusProcessing))
}

func TestPayFlowEmitsWebhooks(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	hooks := &receivedHooks{}
	httpmock.RegisterResponder(http.MethodPost, hookURL, hooks.responder(http.StatusOK))

	p, clock := newTestPayFlow(t, WithWebhooks(NewWebhookClient(hookURL, nil)))
	record, _, err := p.InitiatePayment(context.Background(), paymentRequest("hooks"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(hooks.list()) == 1 }, time.Second, 5*time.Millisecond)

	// Replays are not announced.
	_, _, err = p.InitiatePayment(context.Background(), paymentRequest("hooks"))
	require.NoError(t, err)

	clock.Advance(testDelay)
	clock.BlockUntilReady()
	waitForStatus(t, p, record.ID)
	assert.Eventually(t, func() bool { return len(hooks.list()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{EventPaymentInitiated, EventPaymentSuccess}, hooks.list())
}

func TestWebhookClientDeliverHeaders(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer token", req.Header.Get("Authorization"))
		return httpmock.NewStringResponse(http.StatusAccepted, ""), nil
	})

	client := NewWebhookClient(hookURL, map[string]string{"Authorization": "Bearer token"})
	require.NoError(t, client.Deliver(context.Background(), NewWebhook{Event: EventPaymentSuccess}))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestWebhookClientRetriesTransientFailures(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	hooks := &receivedHooks{}
	busy, ok := hooks.responder(http.StatusServiceUnavailable), hooks.responder(http.StatusOK)
	attempts := 0
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts <= 2 {
			return busy(req)
		}
		return ok(req)
	})

	client := NewWebhookClient(hookURL, nil)
	client.maxElapsed = 5 * time.Second
	err := client.DeliverWithRetry(context.Background(), NewWebhook{Event: EventPaymentFailed})
	require.NoError(t, err)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestWebhookClientStopsOnRejection(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusBadRequest, "nope"))

	client := NewWebhookClient(hookURL, nil)
	err := client.DeliverWithRetry(context.Background(), NewWebhook{Event: EventPaymentFailed})
	assert.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessWebhook(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	hooks := &receivedHooks{}
	httpmock.RegisterResponder(http.MethodPost, hookURL, hooks.responder(http.StatusOK))

	client := NewWebhookClient(hookURL, nil)
	payload, err := json.Marshal(NewWebhook{Event: EventPaymentSuccess, Payload: &model.PaymentRecord{ID: "pay_1"}})
	require.NoError(t, err)

	require.NoError(t, client.ProcessWebhook(context.Background(), asynq.NewTask(TypeWebhook, payload)))
	assert.Equal(t, []string{EventPaymentSuccess}, hooks.list())

	err = client.ProcessWebhook(context.Background(), asynq.NewTask(TypeWebhook, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
