package payflow

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// SettlementScheduler arranges for a payment to be settled once, after delay.
type SettlementScheduler interface {
	ScheduleSettlement(ctx context.Context, paymentID string, delay time.Duration) error
}

// SettleHandler is invoked when a scheduled settlement fires.
type SettleHandler func(ctx context.Context, paymentID string) error

// TimerScheduler runs each settlement on its own timer inside this process.
// Pending settlements are lost when the process exits.
type TimerScheduler struct {
	clock   clockz.Clock
	handler SettleHandler
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewTimerScheduler(clock clockz.Clock, handler SettleHandler) *TimerScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerScheduler{
		clock:   clock,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ScheduleSettlement never blocks on the settlement itself. The timer is
// armed before it returns.
func (s *TimerScheduler) ScheduleSettlement(_ context.Context, paymentID string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return context.Canceled
	}
	timer := s.clock.After(delay)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-timer:
			_ = s.handler(s.ctx, paymentID)
		case <-s.ctx.Done():
		}
	}()
	return nil
}

// Stop abandons pending settlements and waits for running ones to return.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
