// README: Trip store contract consumed by the lifecycle engine.
package trip

import (
	"context"
	"time"

	"busops/internal/types"
)

type TimeField string

const (
	FieldDeparture TimeField = "scheduled_departure"
	FieldArrival   TimeField = "scheduled_arrival"
)

// Filter selects trips by status and a window over one scheduled timestamp.
// After is exclusive, Until inclusive, Before exclusive; nil bounds are open.
type Filter struct {
	Statuses []Status
	Field    TimeField
	After    *time.Time
	Until    *time.Time
	Before   *time.Time
}

func (f Filter) Match(t *Trip) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	v := t.ScheduledDeparture
	if f.Field == FieldArrival {
		v = t.ScheduledArrival
	}
	if f.After != nil && !v.After(*f.After) {
		return false
	}
	if f.Until != nil && v.After(*f.Until) {
		return false
	}
	if f.Before != nil && !v.Before(*f.Before) {
		return false
	}
	return true
}

// StatusUpdate is a compare-and-swap on (status, status_version). Optional
// fields are written only when non-nil.
type StatusUpdate struct {
	TripID             types.ID
	From               Status
	To                 Status
	Version            int
	At                 time.Time
	ActualDeparture    *time.Time
	ActualArrival      *time.Time
	EndOdometer        *float64
	EndFuel            *float64
	Stats              *Stats
	CompletionNotes    *string
	CancellationReason *string
	CancelledAt        *time.Time
	CancelledBy        *types.ID
}

// apply mirrors the store-side write onto an in-memory copy.
func (u StatusUpdate) apply(t *Trip) {
	t.Status = u.To
	t.StatusVersion++
	t.UpdatedAt = u.At
	if u.ActualDeparture != nil {
		t.ActualDeparture = timePtr(*u.ActualDeparture)
	}
	if u.ActualArrival != nil {
		t.ActualArrival = timePtr(*u.ActualArrival)
	}
	if u.EndOdometer != nil {
		t.EndOdometer = floatPtr(*u.EndOdometer)
	}
	if u.EndFuel != nil {
		t.EndFuel = floatPtr(*u.EndFuel)
	}
	if u.Stats != nil {
		st := *u.Stats
		t.Stats = &st
	}
	if u.CompletionNotes != nil {
		n := *u.CompletionNotes
		t.CompletionNotes = &n
	}
	if u.CancellationReason != nil {
		r := *u.CancellationReason
		t.CancellationReason = &r
	}
	if u.CancelledAt != nil {
		t.CancelledAt = timePtr(*u.CancelledAt)
	}
	if u.CancelledBy != nil {
		id := *u.CancelledBy
		t.CancelledBy = &id
	}
}

type Store interface {
	Get(ctx context.Context, id types.ID) (*Trip, error)
	List(ctx context.Context, f Filter) ([]*Trip, error)
	// UpdateStatus reports false when the trip no longer matches u.From/u.Version.
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	// BulkUpdateStatus moves every trip matching f to `to` in one statement.
	// f must name exactly one status; the guard is evaluated at write time.
	// It returns the updated trips.
	BulkUpdateStatus(ctx context.Context, f Filter, to Status, at time.Time) ([]*Trip, error)
	Bookings(ctx context.Context, tripID types.ID) ([]*Booking, error)
	// CancelBooking moves a CONFIRMED booking to CANCELLED/REFUND_PENDING and
	// reports false when the booking was not CONFIRMED.
	CancelBooking(ctx context.Context, bookingID types.ID) (bool, error)
	AppendLog(ctx context.Context, l *Log) error
	Logs(ctx context.Context, tripID types.ID) ([]*Log, error)
	// InTx runs fn against a transactional view of the store.
	InTx(ctx context.Context, fn func(Store) error) error
}
