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
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel"

	"github.com/payflowhq/payflow/config"
	"github.com/payflowhq/payflow/database"
	redlock "github.com/payflowhq/payflow/internal/lock"
	"github.com/payflowhq/payflow/internal/metrics"
)

const (
	DefaultSettlementDelay = 1500 * time.Millisecond
	DefaultSuccessRate     = 0.8
)

var tracer = otel.Tracer("payflow")

// PayFlow is the payment intake core. It owns no global state: the store,
// lock, scheduler and outcome source are all injected.
type PayFlow struct {
	datasource database.IDataSource
	locker     redlock.KeyLocker
	scheduler  SettlementScheduler
	webhooks   WebhookDispatcher
	outcome    OutcomeFunc
	clock      clockz.Clock
	metrics    *metrics.Metrics
	delay      time.Duration

	// resetMu is held shared by intake and exclusively by ResetAll.
	resetMu sync.RWMutex
}

type Option func(*PayFlow)

func WithClock(clock clockz.Clock) Option {
	return func(p *PayFlow) { p.clock = clock }
}

func WithOutcome(outcome OutcomeFunc) Option {
	return func(p *PayFlow) { p.outcome = outcome }
}

// WithScheduler replaces the in-process timer scheduler, typically with a
// *Queue. The caller is then responsible for routing fired settlements to
// ProcessSettlement.
func WithScheduler(scheduler SettlementScheduler) Option {
	return func(p *PayFlow) { p.scheduler = scheduler }
}

func WithLocker(locker redlock.KeyLocker) Option {
	return func(p *PayFlow) { p.locker = locker }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *PayFlow) { p.metrics = m }
}

func WithSettlementDelay(delay time.Duration) Option {
	return func(p *PayFlow) { p.delay = delay }
}

func WithWebhooks(dispatcher WebhookDispatcher) Option {
	return func(p *PayFlow) { p.webhooks = dispatcher }
}

// WithConfig applies the settlement section of a loaded configuration.
func WithConfig(cnf *config.Configuration) Option {
	return func(p *PayFlow) {
		if cnf == nil {
			return
		}
		if cnf.Settlement.DelayMs > 0 {
			p.delay = cnf.SettlementDelay()
		}
		if cnf.Settlement.SuccessRate != nil {
			p.outcome = WeightedOutcome(*cnf.Settlement.SuccessRate, rand.New(rand.NewSource(time.Now().UnixNano())))
		}
	}
}

// NewPayFlow builds a core over db. Anything not set through opts falls back
// to an in-process default: keyed mutex, real clock, timer scheduler and an
// 80/20 weighted outcome.
func NewPayFlow(db database.IDataSource, opts ...Option) (*PayFlow, error) {
	if db == nil {
		return nil, errors.New("payflow requires a datasource")
	}
	p := &PayFlow{
		datasource: db,
		delay:      DefaultSettlementDelay,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.delay < 0 {
		return nil, errors.New("settlement delay cannot be negative")
	}
	if p.clock == nil {
		p.clock = clockz.RealClock
	}
	if p.locker == nil {
		p.locker = redlock.NewKeyedMutex()
	}
	if p.outcome == nil {
		p.outcome = WeightedOutcome(DefaultSuccessRate, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	if p.scheduler == nil {
		p.scheduler = NewTimerScheduler(p.clock, p.settleScheduled)
	}
	return p, nil
}

// Close stops the in-process scheduler, abandoning pending settlements.
func (p *PayFlow) Close() {
	if s, ok := p.scheduler.(interface{ Stop() }); ok {
		s.Stop()
	}
}
