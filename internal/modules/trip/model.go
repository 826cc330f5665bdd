// README: Trip aggregate, booking view, audit log and the lifecycle transition table.
package trip

import (
	"time"

	"busops/internal/types"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusBoarding  Status = "BOARDING"
	StatusDeparted  Status = "DEPARTED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusArrived   Status = "ARRIVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingNoShow    BookingStatus = "NO_SHOW"
)

type PaymentStatus string

const (
	PaymentPaid          PaymentStatus = "PAID"
	PaymentRefundPending PaymentStatus = "REFUND_PENDING"
	PaymentRefunded      PaymentStatus = "REFUNDED"
)

type EventType string

const (
	EventStatusChange  EventType = "STATUS_CHANGE"
	EventDelay         EventType = "DELAY"
	EventTripCompleted EventType = "TRIP_COMPLETED"
	EventTripCancelled EventType = "TRIP_CANCELLED"
)

type Trip struct {
	ID                 types.ID
	RouteID            *types.ID
	BusID              *types.ID
	DriverID           *types.ID
	Status             Status
	StatusVersion      int
	ScheduledDeparture time.Time
	ScheduledArrival   time.Time
	ActualDeparture    *time.Time
	ActualArrival      *time.Time
	StartOdometer      *float64
	StartFuel          *float64
	EndOdometer        *float64
	EndFuel            *float64
	Stats              *Stats
	CompletionNotes    *string
	CancellationReason *string
	CancelledAt        *time.Time
	CancelledBy        *types.ID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Booking struct {
	ID            types.ID
	TripID        types.ID
	PassengerID   types.ID
	SeatID        string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	CheckedIn     bool
	TotalAmount   types.Money
}

// ConfirmedPaid reports whether the booking is in the population that
// receives passenger-facing trip notifications.
func (b *Booking) ConfirmedPaid() bool {
	return b.Status == BookingConfirmed && b.PaymentStatus == PaymentPaid
}

type Log struct {
	ID          types.ID
	TripID      types.ID
	EventType   EventType
	Description string
	ActorID     *types.ID
	Timestamp   time.Time
}

// Stats summarises a finished trip. Populated only on completion.
type Stats struct {
	TotalPassengers     int         `json:"totalPassengers"`
	CheckedInPassengers int         `json:"checkedInPassengers"`
	NoShows             int         `json:"noShows"`
	TotalRevenue        types.Money `json:"totalRevenue"`
	DistanceTraveled    float64     `json:"distanceTraveled"`
	FuelUsed            float64     `json:"fuelUsed"`
}

type TimelineEntry struct {
	Time        time.Time `json:"time"`
	Event       EventType `json:"event"`
	Description string    `json:"description"`
}

// allowedTransitions is the lifecycle graph. It is never handed out; use
// CanTransition or NextStatuses.
var allowedTransitions = map[Status][]Status{
	StatusDraft:     {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusBoarding, StatusCancelled},
	StatusBoarding:  {StatusDeparted, StatusCancelled},
	StatusDeparted:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusArrived, StatusCancelled},
	StatusArrived:   {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the legal successors of s.
func NextStatuses(s Status) []Status {
	next := allowedTransitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}
