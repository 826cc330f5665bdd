// README: Automatic transition sweep tests (boarding window, overdue phases, isolation).
package trip

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"busops/internal/modules/notification"
	"busops/internal/types"
)

func TestSweepBoardingWindow(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		want   Status
	}{
		{"inside window", 20 * time.Minute, StatusBoarding},
		{"window edge inclusive", 30 * time.Minute, StatusBoarding},
		{"beyond window", 40 * time.Minute, StatusScheduled},
		{"departing now", 0, StatusScheduled},
		{"already past", -5 * time.Minute, StatusScheduled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tr := f.seedTrip(t, StatusScheduled, baseTime.Add(tc.offset))

			n, err := f.svc.RunAutoTransitionSweep(context.Background(), baseTime)
			if err != nil {
				t.Fatalf("sweep: %v", err)
			}
			if got := f.status(t, tr.ID); got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
			wantN := 0
			if tc.want == StatusBoarding {
				wantN = 1
			}
			if n != wantN {
				t.Fatalf("count = %d, want %d", n, wantN)
			}
		})
	}
}

func TestSweepBoardingLogsAndNotifies(t *testing.T) {
	f := newFixture(t)
	tr := f.seedTrip(t, StatusScheduled, baseTime.Add(20*time.Minute))
	f.seedBooking(t, tr.ID, BookingConfirmed, PaymentPaid)
	f.seedBooking(t, tr.ID, BookingConfirmed, PaymentPaid)
	f.seedBooking(t, tr.ID, BookingNoShow, PaymentPaid)

	if _, err := f.svc.RunAutoTransitionSweep(context.Background(), baseTime); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	logs := f.logs(t, tr.ID, EventStatusChange)
	if len(logs) != 1 || logs[0].Description != "SCHEDULED → BOARDING: Auto-transition" {
		t.Fatalf("unexpected logs %+v", logs)
	}
	sent := f.notify.toUsers(notification.TypeTripStatus)
	if len(sent) != 2 {
		t.Fatalf("expected 2 boarding notifications, got %d", len(sent))
	}
	if sent[0].p.Data["status"] != string(StatusBoarding) {
		t.Fatalf("unexpected payload %+v", sent[0].p)
	}
}

func TestSweepBoardingSkipsConcurrentlyCancelled(t *testing.T) {
	f := newFixture(t)
	tr := f.seedTrip(t, StatusScheduled, baseTime.Add(10*time.Minute))
	if _, err := f.svc.CancelTrip(context.Background(), CancelCommand{TripID: tr.ID, Reason: "weather", ActorID: "ops"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	n, err := f.svc.RunAutoTransitionSweep(context.Background(), baseTime)
	if err != nil || n != 0 {
		t.Fatalf("sweep moved %d trips, err %v", n, err)
	}
	if got := f.status(t, tr.ID); got != StatusCancelled {
		t.Fatalf("sweep overwrote cancellation: %s", got)
	}
}

func TestSweepAdvancesOverdueTrips(t *testing.T) {
	f := newFixture(t)
	departed := f.seedTrip(t, StatusDeparted, baseTime.Add(-10*time.Minute))
	notYet := f.seedTrip(t, StatusDeparted, baseTime.Add(10*time.Minute))
	transit := f.seedTrip(t, StatusInTransit, baseTime.Add(-4*time.Hour)) // arrival at -1h
	stillGoing := f.seedTrip(t, StatusInTransit, baseTime.Add(-time.Hour)) // arrival at +2h

	n, err := f.svc.RunAutoTransitionSweep(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	want := map[types.ID]Status{
		departed.ID:   StatusInTransit,
		notYet.ID:     StatusDeparted,
		transit.ID:    StatusArrived,
		stillGoing.ID: StatusInTransit,
	}
	for id, st := range want {
		if got := f.status(t, id); got != st {
			t.Errorf("trip %s: status %s, want %s", id, got, st)
		}
	}
	for _, l := range f.logs(t, departed.ID, EventStatusChange) {
		if !strings.HasSuffix(l.Description, "Auto-transition") {
			t.Fatalf("auto transition reason missing: %q", l.Description)
		}
	}
}

// A trip overdue for both departure and arrival reaches ARRIVED in one sweep
// and counts once.
func TestSweepChainsOverduePhases(t *testing.T) {
	f := newFixture(t)
	tr := f.seedTrip(t, StatusDeparted, baseTime.Add(-5*time.Hour))

	n, err := f.svc.RunAutoTransitionSweep(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// DEPARTED -> IN_TRANSIT, then IN_TRANSIT -> ARRIVED in phase three
	if n != 1 || f.status(t, tr.ID) != StatusArrived {
		t.Fatalf("n=%d status=%s", n, f.status(t, tr.ID))
	}
	if logs := f.logs(t, tr.ID, EventStatusChange); len(logs) != 2 {
		t.Fatalf("expected one log per transition, got %d", len(logs))
	}
}

func TestSweepIsolatesPerTripFailures(t *testing.T) {
	mem := NewMemoryStore()
	clock := &fixedClock{now: baseTime}
	bad := &Trip{ID: "bad", Status: StatusDeparted, ScheduledDeparture: baseTime.Add(-time.Hour), ScheduledArrival: baseTime.Add(time.Hour)}
	good := &Trip{ID: "good", Status: StatusDeparted, ScheduledDeparture: baseTime.Add(-time.Hour), ScheduledArrival: baseTime.Add(time.Hour)}
	for _, tr := range []*Trip{bad, good} {
		if err := mem.CreateTrip(context.Background(), tr); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	store := &faultyStore{Store: mem, failUpdate: map[types.ID]bool{"bad": true}}
	svc := NewService(store, &recordingDispatcher{}, newFixture(t).svc.cfg, WithClock(clock))

	n, err := svc.RunAutoTransitionSweep(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("per-trip failures must not surface as sweep errors: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if tr, _ := mem.Get(context.Background(), "good"); tr.Status != StatusInTransit {
		t.Fatalf("good trip not advanced: %s", tr.Status)
	}
	if tr, _ := mem.Get(context.Background(), "bad"); tr.Status != StatusDeparted {
		t.Fatalf("failed trip changed: %s", tr.Status)
	}
}

func TestSweepPhaseFailureDoesNotStopOtherPhases(t *testing.T) {
	mem := NewMemoryStore()
	boarding := &Trip{ID: "b", Status: StatusScheduled, ScheduledDeparture: baseTime.Add(15 * time.Minute), ScheduledArrival: baseTime.Add(time.Hour)}
	arriving := &Trip{ID: "a", Status: StatusInTransit, ScheduledDeparture: baseTime.Add(-3 * time.Hour), ScheduledArrival: baseTime.Add(-time.Minute)}
	for _, tr := range []*Trip{boarding, arriving} {
		if err := mem.CreateTrip(context.Background(), tr); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	listErr := errors.New("scan failed")
	store := &faultyStore{Store: mem, failList: map[Status]error{StatusDeparted: listErr}}
	svc := NewService(store, &recordingDispatcher{}, newFixture(t).svc.cfg, WithClock(&fixedClock{now: baseTime}))

	n, err := svc.RunAutoTransitionSweep(context.Background(), baseTime)
	if !errors.Is(err, listErr) || !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected joined phase error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2 from the healthy phases", n)
	}
}
