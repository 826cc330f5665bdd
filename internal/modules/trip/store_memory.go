// README: In-memory trip store for local runs and tests; transactions are serialised.
package trip

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"busops/internal/types"
)

type MemoryStore struct {
	// txMu serialises InTx against every other operation on the root store.
	txMu sync.RWMutex
	data *memData
	root bool
}

type memData struct {
	mu       sync.Mutex
	trips    map[types.ID]*Trip
	bookings map[types.ID]*Booking
	order    []types.ID
	logs     map[types.ID][]*Log
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: true,
		data: &memData{
			trips:    make(map[types.ID]*Trip),
			bookings: make(map[types.ID]*Booking),
			logs:     make(map[types.ID][]*Log),
		},
	}
}

func (s *MemoryStore) lock() func() {
	if s.root {
		s.txMu.RLock()
		s.data.mu.Lock()
		return func() {
			s.data.mu.Unlock()
			s.txMu.RUnlock()
		}
	}
	s.data.mu.Lock()
	return s.data.mu.Unlock
}

func (s *MemoryStore) CreateTrip(_ context.Context, t *Trip) error {
	defer s.lock()()
	if _, ok := s.data.trips[t.ID]; ok {
		return errors.New("trip already exists")
	}
	s.data.trips[t.ID] = cloneTrip(t)
	return nil
}

func (s *MemoryStore) CreateBooking(_ context.Context, b *Booking) error {
	defer s.lock()()
	if _, ok := s.data.bookings[b.ID]; ok {
		return errors.New("booking already exists")
	}
	cp := *b
	s.data.bookings[b.ID] = &cp
	s.data.order = append(s.data.order, b.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	defer s.lock()()
	t, ok := s.data.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTrip(t), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Trip, error) {
	defer s.lock()()
	var out []*Trip
	for _, t := range s.data.trips {
		if f.Match(t) {
			out = append(out, cloneTrip(t))
		}
	}
	sortTrips(out, f.Field)
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, u StatusUpdate) (bool, error) {
	defer s.lock()()
	t, ok := s.data.trips[u.TripID]
	if !ok || t.Status != u.From || t.StatusVersion != u.Version {
		return false, nil
	}
	u.apply(t)
	return true, nil
}

func (s *MemoryStore) BulkUpdateStatus(_ context.Context, f Filter, to Status, at time.Time) ([]*Trip, error) {
	if len(f.Statuses) != 1 {
		return nil, errors.New("bulk update needs exactly one source status")
	}
	defer s.lock()()
	var out []*Trip
	for _, t := range s.data.trips {
		if !f.Match(t) {
			continue
		}
		t.Status = to
		t.StatusVersion++
		t.UpdatedAt = at
		out = append(out, cloneTrip(t))
	}
	sortTrips(out, f.Field)
	return out, nil
}

func (s *MemoryStore) Bookings(_ context.Context, tripID types.ID) ([]*Booking, error) {
	defer s.lock()()
	var out []*Booking
	for _, id := range s.data.order {
		b := s.data.bookings[id]
		if b.TripID == tripID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) CancelBooking(_ context.Context, bookingID types.ID) (bool, error) {
	defer s.lock()()
	b, ok := s.data.bookings[bookingID]
	if !ok || b.Status != BookingConfirmed {
		return false, nil
	}
	b.Status = BookingCancelled
	b.PaymentStatus = PaymentRefundPending
	return true, nil
}

func (s *MemoryStore) AppendLog(_ context.Context, l *Log) error {
	defer s.lock()()
	cp := *l
	s.data.logs[l.TripID] = append(s.data.logs[l.TripID], &cp)
	return nil
}

func (s *MemoryStore) Logs(_ context.Context, tripID types.ID) ([]*Log, error) {
	defer s.lock()()
	src := s.data.logs[tripID]
	out := make([]*Log, len(src))
	for i, l := range src {
		cp := *l
		out[i] = &cp
	}
	// stable keeps insertion order for equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// InTx runs fn on a private copy and publishes it only when fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	if !s.root {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &MemoryStore{data: s.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.data.mu.Lock()
	s.data.replace(tx.data)
	s.data.mu.Unlock()
	return nil
}

func (d *memData) clone() *memData {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &memData{
		trips:    make(map[types.ID]*Trip, len(d.trips)),
		bookings: make(map[types.ID]*Booking, len(d.bookings)),
		order:    append([]types.ID(nil), d.order...),
		logs:     make(map[types.ID][]*Log, len(d.logs)),
	}
	for id, t := range d.trips {
		c.trips[id] = cloneTrip(t)
	}
	for id, b := range d.bookings {
		cp := *b
		c.bookings[id] = &cp
	}
	for id, ls := range d.logs {
		c.logs[id] = append([]*Log(nil), ls...)
	}
	return c
}

func (d *memData) replace(o *memData) {
	d.trips = o.trips
	d.bookings = o.bookings
	d.order = o.order
	d.logs = o.logs
}

func sortTrips(ts []*Trip, field TimeField) {
	key := func(t *Trip) time.Time {
		if field == FieldArrival {
			return t.ScheduledArrival
		}
		return t.ScheduledDeparture
	}
	sort.Slice(ts, func(i, j int) bool {
		ki, kj := key(ts[i]), key(ts[j])
		if !ki.Equal(kj) {
			return ki.Before(kj)
		}
		return ts[i].ID < ts[j].ID
	})
}

func cloneTrip(t *Trip) *Trip {
	cp := *t
	if t.Stats != nil {
		st := *t.Stats
		cp.Stats = &st
	}
	return &cp
}

func timePtr(t time.Time) *time.Time { return &t }

func floatPtr(f float64) *float64 { return &f }
