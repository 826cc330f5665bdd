// README: Shared fixtures for trip tests (fixed clock, recording dispatcher, seeding).
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"busops/internal/config"
	"busops/internal/modules/notification"
	"busops/internal/types"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type delivery struct {
	userID types.ID
	role   string
	p      notification.Payload
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []delivery
}

func (r *recordingDispatcher) Send(_ context.Context, userID types.ID, p notification.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, delivery{userID: userID, p: p})
	return nil
}

func (r *recordingDispatcher) SendToRole(_ context.Context, role string, p notification.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, delivery{role: role, p: p})
	return nil
}

func (r *recordingDispatcher) toUsers(typ notification.Type) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, d := range r.sent {
		if d.role == "" && d.p.Type == typ {
			out = append(out, d)
		}
	}
	return out
}

func (r *recordingDispatcher) toRole(role string) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, d := range r.sent {
		if d.role == role {
			out = append(out, d)
		}
	}
	return out
}

type fixture struct {
	store  *MemoryStore
	svc    *Service
	clock  *fixedClock
	notify *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewMemoryStore(),
		clock:  &fixedClock{now: baseTime},
		notify: &recordingDispatcher{},
	}
	f.svc = NewService(f.store, f.notify, config.TripConfig{
		SweepLockTTL:   time.Second,
		OperationsRole: "operations",
	}, WithClock(f.clock))
	return f
}

func (f *fixture) seedTrip(t *testing.T, status Status, departure time.Time) *Trip {
	t.Helper()
	tr := &Trip{
		ID:                 types.NewID(),
		Status:             status,
		ScheduledDeparture: departure,
		ScheduledArrival:   departure.Add(3 * time.Hour),
		CreatedAt:          baseTime,
		UpdatedAt:          baseTime,
	}
	if err := f.store.CreateTrip(context.Background(), tr); err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	return tr
}

func (f *fixture) seedBooking(t *testing.T, tripID types.ID, status BookingStatus, pay PaymentStatus) *Booking {
	t.Helper()
	b := &Booking{
		ID:            types.NewID(),
		TripID:        tripID,
		PassengerID:   types.NewID(),
		SeatID:        "A1",
		Status:        status,
		PaymentStatus: pay,
		TotalAmount:   types.Money{Amount: 2500, Currency: "USD"},
	}
	if err := f.store.CreateBooking(context.Background(), b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func (f *fixture) status(t *testing.T, id types.ID) Status {
	t.Helper()
	tr, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	return tr.Status
}

func (f *fixture) logs(t *testing.T, id types.ID, typ EventType) []*Log {
	t.Helper()
	all, err := f.store.Logs(context.Background(), id)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	var out []*Log
	for _, l := range all {
		if l.EventType == typ {
			out = append(out, l)
		}
	}
	return out
}

// faultyStore injects store failures around a real store.
type faultyStore struct {
	Store
	failGet           error
	failList          map[Status]error
	failUpdate        map[types.ID]bool
	failCancelBooking types.ID
}

func (s *faultyStore) Get(ctx context.Context, id types.ID) (*Trip, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.Store.Get(ctx, id)
}

func (s *faultyStore) List(ctx context.Context, f Filter) ([]*Trip, error) {
	for _, st := range f.Statuses {
		if err := s.failList[st]; err != nil {
			return nil, err
		}
	}
	return s.Store.List(ctx, f)
}

func (s *faultyStore) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	if s.failUpdate[u.TripID] {
		return false, errors.New("write failed")
	}
	return s.Store.UpdateStatus(ctx, u)
}

func (s *faultyStore) CancelBooking(ctx context.Context, id types.ID) (bool, error) {
	if id != "" && id == s.failCancelBooking {
		return false, errors.New("booking write failed")
	}
	return s.Store.CancelBooking(ctx, id)
}

func (s *faultyStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.Store.InTx(ctx, func(tx Store) error {
		c := *s
		c.Store = tx
		return fn(&c)
	})
}
