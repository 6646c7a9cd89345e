package textmate

import (
	"context"
	"testing"
	"time"
)

func waitRan(t *testing.T, ran <-chan struct{}) {
	t.Helper()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled fn never ran")
	}
}

func TestTimeoutScheduler(t *testing.T) {
	ran := make(chan struct{})
	TimeoutScheduler{Delay: time.Millisecond}.ScheduleIdle(
		context.Background(), time.Second, func() { close(ran) })
	waitRan(t, ran)
}

func TestTimeoutSchedulerHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := make(chan struct{})
	TimeoutScheduler{Delay: 10 * time.Millisecond}.ScheduleIdle(
		ctx, time.Second, func() { close(ran) })
	select {
	case <-ran:
		t.Fatal("fn ran after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSignalSchedulerIdleTick(t *testing.T) {
	idle := make(chan struct{}, 1)
	ran := make(chan struct{})
	SignalScheduler{Idle: idle}.ScheduleIdle(
		context.Background(), time.Minute, func() { close(ran) })
	idle <- struct{}{}
	waitRan(t, ran)
}

func TestSignalSchedulerTimeout(t *testing.T) {
	ran := make(chan struct{})
	SignalScheduler{Idle: make(chan struct{})}.ScheduleIdle(
		context.Background(), time.Millisecond, func() { close(ran) })
	waitRan(t, ran)
}
