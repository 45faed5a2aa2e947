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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/payflowhq/payflow/model"
)

// MinRecoveryThreshold keeps a manual recovery from racing settlements that
// are merely on schedule.
const MinRecoveryThreshold = 10 * time.Second

// SettlementRecoveryProcessor settles payments that stayed INITIATED well past
// their settlement delay, which happens when scheduling failed or a queued
// task was lost.
type SettlementRecoveryProcessor struct {
	payflow        *PayFlow
	maxWorkers     int
	pollInterval   time.Duration
	stuckThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewSettlementRecoveryProcessor(p *PayFlow, pollInterval time.Duration) *SettlementRecoveryProcessor {
	threshold := 4 * p.delay
	if threshold < MinRecoveryThreshold {
		threshold = MinRecoveryThreshold
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &SettlementRecoveryProcessor{
		payflow:        p,
		maxWorkers:     10,
		pollInterval:   pollInterval,
		stuckThreshold: threshold,
		stopCh:         make(chan struct{}),
	}
}

func (r *SettlementRecoveryProcessor) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	// The ticker is registered before returning so that a fake clock advanced
	// right after Start still fires it.
	ticker := r.payflow.clock.NewTicker(r.pollInterval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, ticker)
	}()

	logrus.Info("Settlement recovery processor started")
}

func (r *SettlementRecoveryProcessor) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	logrus.Info("Settlement recovery processor stopped")
}

func (r *SettlementRecoveryProcessor) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *SettlementRecoveryProcessor) run(ctx context.Context, ticker clockz.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C():
			r.recoverWithThreshold(ctx, r.stuckThreshold)
		}
	}
}

// RecoverStuckSettlements settles every INITIATED payment older than
// threshold and returns how many this call moved to a terminal status.
// Payments settled concurrently by their own timer are not counted.
func (p *PayFlow) RecoverStuckSettlements(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < MinRecoveryThreshold {
		threshold = MinRecoveryThreshold
	}
	processor := NewSettlementRecoveryProcessor(p, 0)
	return processor.recoverWithThreshold(ctx, threshold), nil
}

func (r *SettlementRecoveryProcessor) stuckPayments(ctx context.Context, threshold time.Duration) ([]*model.PaymentRecord, error) {
	records, err := r.payflow.datasource.GetAllPayments(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := r.payflow.clock.Now().Add(-threshold)
	stuck := make([]*model.PaymentRecord, 0)
	for _, record := range records {
		if record.Status == model.StatusInitiated && !record.CreatedAt.After(cutoff) {
			stuck = append(stuck, record)
		}
	}
	return stuck, nil
}

func (r *SettlementRecoveryProcessor) recoverWithThreshold(ctx context.Context, threshold time.Duration) int {
	stuck, err := r.stuckPayments(ctx, threshold)
	if err != nil {
		logrus.Errorf("failed to get stuck payments: %v", err)
		return 0
	}
	if len(stuck) == 0 {
		return 0
	}

	logrus.Infof("Recovering %d stuck payments with %d workers (threshold=%v)", len(stuck), r.maxWorkers, threshold)

	var (
		sem       = make(chan struct{}, r.maxWorkers)
		batchWg   sync.WaitGroup
		mu        sync.Mutex
		recovered int
	)
	for _, record := range stuck {
		sem <- struct{}{}
		batchWg.Add(1)
		go func(id string) {
			defer batchWg.Done()
			defer func() { <-sem }()
			_, transitioned, err := r.payflow.settle(ctx, id)
			if err != nil {
				logrus.Errorf("failed to recover payment %s: %v", id, err)
				return
			}
			if transitioned {
				mu.Lock()
				recovered++
				mu.Unlock()
			}
		}(record.ID)
	}

	batchWg.Wait()
	return recovered
}
