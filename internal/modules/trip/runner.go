// README: Periodic sweep runners for auto transitions and delay detection.
package trip

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	sweepAutoTransition = "auto_transition"
	sweepDelay          = "delay_check"
	defaultSweepTTL     = 50 * time.Second
)

// SweepLock grants at most one holder per key across processes.
type SweepLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type singleFlight struct {
	mu      sync.Mutex
	running map[string]bool
}

func newSingleFlight() *singleFlight {
	return &singleFlight{running: make(map[string]bool)}
}

func (f *singleFlight) begin(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[kind] {
		return false
	}
	f.running[kind] = true
	return true
}

func (f *singleFlight) end(kind string) {
	f.mu.Lock()
	delete(f.running, kind)
	f.mu.Unlock()
}

func (s *Service) RunAutoTransitions(ctx context.Context) {
	s.runEvery(ctx, sweepAutoTransition, s.cfg.SweepInterval, func(ctx context.Context, now time.Time) error {
		n, err := s.RunAutoTransitionSweep(ctx, now)
		if n > 0 {
			log.Printf("[TRIP] action=auto_transition_sweep moved=%d", n)
		}
		return err
	})
}

func (s *Service) RunDelayMonitor(ctx context.Context) {
	s.runEvery(ctx, sweepDelay, s.cfg.DelayInterval, func(ctx context.Context, now time.Time) error {
		delayed, err := s.CheckDelays(ctx, now)
		if len(delayed) > 0 {
			log.Printf("[TRIP] action=delay_sweep delayed=%d", len(delayed))
		}
		return err
	})
}

func (s *Service) runEvery(ctx context.Context, kind string, every time.Duration, sweep func(context.Context, time.Time) error) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx, kind, sweep)
		}
	}
}

// sweepOnce runs one sweep of kind unless another is in flight here or, with
// a SweepLock, on another replica. It reports whether the sweep ran.
func (s *Service) sweepOnce(ctx context.Context, kind string, sweep func(context.Context, time.Time) error) bool {
	if !s.sweeps.begin(kind) {
		log.Printf("[TRIP] action=sweep kind=%s skipped=in_flight", kind)
		return false
	}
	defer s.sweeps.end(kind)

	ttl := s.cfg.SweepLockTTL
	if ttl <= 0 {
		ttl = defaultSweepTTL
	}
	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, "busops:sweep:"+kind, ttl)
		if err != nil {
			log.Printf("[TRIP] action=sweep kind=%s err=%v", kind, err)
			return false
		}
		if !ok {
			return false
		}
		defer release()
	}

	// bound the sweep by the lock lifetime so a slow run cannot outlive it
	sctx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	if err := sweep(sctx, s.clock.Now()); err != nil {
		log.Printf("[TRIP] action=sweep kind=%s err=%v", kind, err)
	}
	return true
}
