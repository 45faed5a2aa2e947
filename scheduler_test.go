package payflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zoobzio/clockz"
)

type firedSettlements struct {
	mu  sync.Mutex
	ids []string
}

func (f *firedSettlements) handle(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func (f *firedSettlements) fired() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func TestTimerSchedulerFiresAfterDelay(t *testing.T) {
	clock := clockz.NewFakeClock()
	fired := &firedSettlements{}
	s := NewTimerScheduler(clock, fired.handle)
	defer s.Stop()

	assert.NoError(t, s.ScheduleSettlement(context.Background(), "pay_1", time.Second))
	assert.NoError(t, s.ScheduleSettlement(context.Background(), "pay_2", 2*time.Second))

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	assert.Eventually(t, func() bool { return len(fired.fired()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"pay_1"}, fired.fired())

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	assert.Eventually(t, func() bool { return len(fired.fired()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"pay_1", "pay_2"}, fired.fired())
}

func TestTimerSchedulerIgnoresCallerCancellation(t *testing.T) {
	clock := clockz.NewFakeClock()
	fired := &firedSettlements{}
	s := NewTimerScheduler(clock, fired.handle)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, s.ScheduleSettlement(ctx, "pay_1", time.Second))
	cancel()

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	assert.Eventually(t, func() bool { return len(fired.fired()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTimerSchedulerStop(t *testing.T) {
	clock := clockz.NewFakeClock()
	fired := &firedSettlements{}
	s := NewTimerScheduler(clock, fired.handle)

	assert.NoError(t, s.ScheduleSettlement(context.Background(), "pay_1", time.Second))
	s.Stop()

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fired.fired())

	assert.ErrorIs(t, s.ScheduleSettlement(context.Background(), "pay_2", time.Second), context.Canceled)
}
