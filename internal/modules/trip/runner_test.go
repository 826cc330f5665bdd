// README: Sweep runner tests (single flight, distributed lock, shutdown).
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released int
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.released++
		l.mu.Unlock()
	}, true, nil
}

func TestSweepOnceSingleFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan bool)
	go func() {
		done <- f.svc.sweepOnce(ctx, sweepDelay, func(context.Context, time.Time) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	if f.svc.sweepOnce(ctx, sweepDelay, func(context.Context, time.Time) error { return nil }) {
		t.Fatalf("second sweep of the same kind ran while the first was in flight")
	}
	// other kinds are independent
	if !f.svc.sweepOnce(ctx, sweepAutoTransition, func(context.Context, time.Time) error { return nil }) {
		t.Fatalf("sweep of another kind was blocked")
	}
	close(release)
	if !<-done {
		t.Fatalf("first sweep reported not run")
	}
	if !f.svc.sweepOnce(ctx, sweepDelay, func(context.Context, time.Time) error { return nil }) {
		t.Fatalf("sweep did not run after the previous one finished")
	}
}

func TestSweepOnceHonoursLock(t *testing.T) {
	f := newFixture(t)
	lock := &fakeLock{held: map[string]bool{"busops:sweep:" + sweepDelay: true}}
	f.svc.lock = lock
	ran := false
	sweep := func(context.Context, time.Time) error { ran = true; return nil }

	if f.svc.sweepOnce(context.Background(), sweepDelay, sweep) || ran {
		t.Fatalf("sweep ran while another replica held the lock")
	}

	delete(lock.held, "busops:sweep:"+sweepDelay)
	if !f.svc.sweepOnce(context.Background(), sweepDelay, sweep) || !ran {
		t.Fatalf("sweep did not run with a free lock")
	}
	if lock.released != 1 || lock.held["busops:sweep:"+sweepDelay] {
		t.Fatalf("lock not released after sweep")
	}

	lock.err = errors.New("redis down")
	if f.svc.sweepOnce(context.Background(), sweepDelay, sweep) {
		t.Fatalf("sweep ran without confirming the lock")
	}
}

func TestSweepOnceUsesClockAndBoundsDuration(t *testing.T) {
	f := newFixture(t)
	var gotNow time.Time
	var deadline bool
	f.svc.sweepOnce(context.Background(), sweepAutoTransition, func(ctx context.Context, now time.Time) error {
		gotNow = now
		_, deadline = ctx.Deadline()
		return nil
	})
	if !gotNow.Equal(baseTime) {
		t.Fatalf("sweep got now=%v, want injected clock", gotNow)
	}
	if !deadline {
		t.Fatalf("sweep context has no deadline")
	}
}

func TestRunnersStopOnCancel(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.SweepInterval = 5 * time.Millisecond
	f.svc.cfg.DelayInterval = 5 * time.Millisecond
	f.seedTrip(t, StatusScheduled, baseTime.Add(10*time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); f.svc.RunAutoTransitions(ctx) }()
	go func() { defer wg.Done(); f.svc.RunDelayMonitor(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, _ := f.store.List(context.Background(), Filter{Statuses: []Status{StatusBoarding}})
		if len(entries) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("runner never moved the trip to boarding")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	stopped := make(chan struct{})
	go func() { wg.Wait(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("runners did not stop after cancel")
	}
}
