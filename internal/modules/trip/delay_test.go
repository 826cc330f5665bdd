// README: Delay detector tests.
package trip

import (
	"context"
	"strings"
	"testing"
	"time"

	"busops/internal/modules/notification"
)

func TestCheckDelaysReportsAndNotifies(t *testing.T) {
	f := newFixture(t)
	tr := f.seedTrip(t, StatusScheduled, baseTime.Add(-45*time.Minute))
	f.seedBooking(t, tr.ID, BookingConfirmed, PaymentPaid)
	f.seedBooking(t, tr.ID, BookingConfirmed, PaymentPaid)
	f.seedBooking(t, tr.ID, BookingConfirmed, PaymentRefundPending)

	delayed, err := f.svc.CheckDelays(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("check delays: %v", err)
	}
	if len(delayed) != 1 || delayed[0].Trip.ID != tr.ID || delayed[0].DelayMinutes != 45 {
		t.Fatalf("unexpected result %+v", delayed)
	}

	logs := f.logs(t, tr.ID, EventDelay)
	if len(logs) != 1 || !strings.Contains(logs[0].Description, "45") {
		t.Fatalf("expected one DELAY log mentioning 45, got %+v", logs)
	}
	if n := len(f.notify.toUsers(notification.TypeTripDelay)); n != 2 {
		t.Fatalf("expected 2 passenger delay notifications, got %d", n)
	}
	ops := f.notify.toRole("operations")
	if len(ops) != 1 || ops[0].p.Type != notification.TypeOpsDelay {
		t.Fatalf("expected exactly one operations notification, got %+v", ops)
	}
	if got := f.status(t, tr.ID); got != StatusScheduled {
		t.Fatalf("delay check changed status to %s", got)
	}
}

func TestCheckDelaysSelection(t *testing.T) {
	f := newFixture(t)
	boarding := f.seedTrip(t, StatusBoarding, baseTime.Add(-90*time.Second))
	f.seedTrip(t, StatusDeparted, baseTime.Add(-time.Hour))
	f.seedTrip(t, StatusScheduled, baseTime.Add(time.Minute))
	f.seedTrip(t, StatusScheduled, baseTime)
	f.seedTrip(t, StatusCancelled, baseTime.Add(-time.Hour))

	delayed, err := f.svc.CheckDelays(context.Background(), baseTime)
	if err != nil {
		t.Fatalf("check delays: %v", err)
	}
	if len(delayed) != 1 || delayed[0].Trip.ID != boarding.ID {
		t.Fatalf("unexpected selection %+v", delayed)
	}
	if delayed[0].DelayMinutes != 1 {
		t.Fatalf("delay minutes should floor, got %d", delayed[0].DelayMinutes)
	}
	if n := len(f.notify.toRole("operations")); n != 1 {
		t.Fatalf("expected one ops notification per delayed trip, got %d", n)
	}
}

func TestDelayMinutes(t *testing.T) {
	cases := []struct {
		late time.Duration
		want int
	}{
		{0, 0},
		{59 * time.Second, 0},
		{time.Minute, 1},
		{45*time.Minute + 59*time.Second, 45},
		{-time.Minute, 0},
	}
	for _, tc := range cases {
		if got := DelayMinutes(baseTime, baseTime.Add(tc.late)); got != tc.want {
			t.Errorf("DelayMinutes(+%v) = %d, want %d", tc.late, got, tc.want)
		}
	}
}
