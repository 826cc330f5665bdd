// README: Lifecycle service: guarded status changes, audit log, state-entry notifications.
package trip

import (
	"context"
	"fmt"
	"log"
	"time"

	"busops/internal/config"
	"busops/internal/modules/notification"
	"busops/internal/types"
)

type Service struct {
	store  Store
	notify notification.Dispatcher
	cfg    config.TripConfig
	clock  Clock
	lock   SweepLock
	sweeps *singleFlight
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithSweepLock makes the periodic runners coordinate across replicas.
func WithSweepLock(l SweepLock) Option {
	return func(s *Service) { s.lock = l }
}

func NewService(store Store, notify notification.Dispatcher, cfg config.TripConfig, opts ...Option) *Service {
	if notify == nil {
		notify = notification.LogDispatcher{}
	}
	if cfg.OperationsRole == "" {
		cfg.OperationsRole = "operations"
	}
	s := &Service{
		store:  store,
		notify: notify,
		cfg:    cfg,
		clock:  SystemClock{},
		sweeps: newSingleFlight(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ChangeStatusCommand struct {
	TripID  types.ID
	Status  Status
	ActorID *types.ID
	Reason  string
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, persistErr("get trip", err)
	}
	return t, nil
}

// ChangeStatus applies one validated transition. A move to CANCELLED through
// this path records the cancellation fields but leaves bookings to CancelTrip.
// COMPLETED is only reachable through CompleteTrip, which writes the closing
// readings and stats.
func (s *Service) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*Trip, error) {
	if !cmd.Status.Valid() {
		return nil, &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", cmd.Status)}
	}
	var updated *Trip
	err := s.store.InTx(ctx, func(tx Store) error {
		t, err := tx.Get(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if cmd.Status == StatusCompleted && CanTransition(t.Status, cmd.Status) {
			return &ValidationError{Field: "status", Msg: "trips are completed through CompleteTrip with final readings"}
		}
		var mutate func(*StatusUpdate)
		if cmd.Status == StatusCancelled {
			reason := cmd.Reason
			mutate = func(u *StatusUpdate) {
				u.CancellationReason = &reason
				u.CancelledAt = timePtr(u.At)
				u.CancelledBy = cmd.ActorID
			}
		}
		updated, err = s.transition(ctx, tx, t, cmd.Status, cmd.ActorID, cmd.Reason, mutate)
		return err
	})
	if err != nil {
		return nil, persistErr("change status", err)
	}
	log.Printf("[TRIP] action=change_status trip_id=%s status=%s", updated.ID, updated.Status)
	s.announce(ctx, updated)
	return updated, nil
}

// transition performs the guarded write and its STATUS_CHANGE log on tx and
// returns the trip as it now stands. mutate may add optional columns.
func (s *Service) transition(ctx context.Context, tx Store, t *Trip, to Status, actorID *types.ID, reason string, mutate func(*StatusUpdate)) (*Trip, error) {
	if !CanTransition(t.Status, to) {
		return nil, &TransitionError{TripID: t.ID, From: t.Status, To: to}
	}
	now := s.clock.Now()
	u := StatusUpdate{
		TripID:  t.ID,
		From:    t.Status,
		To:      to,
		Version: t.StatusVersion,
		At:      now,
	}
	if to == StatusDeparted && t.ActualDeparture == nil {
		u.ActualDeparture = timePtr(now)
	}
	if mutate != nil {
		mutate(&u)
	}
	ok, err := tx.UpdateStatus(ctx, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &TransitionError{TripID: t.ID, From: t.Status, To: to, Lost: true}
	}
	if err := tx.AppendLog(ctx, statusLog(t.ID, t.Status, to, actorID, reason, now)); err != nil {
		return nil, err
	}
	out := cloneTrip(t)
	u.apply(out)
	return out, nil
}

func statusLog(tripID types.ID, from, to Status, actorID *types.ID, reason string, at time.Time) *Log {
	desc := withReason(fmt.Sprintf("%s → %s", from, to), reason)
	return &Log{
		ID:          types.NewID(),
		TripID:      tripID,
		EventType:   EventStatusChange,
		Description: desc,
		ActorID:     actorID,
		Timestamp:   at,
	}
}

type stateMessage struct {
	title   string
	message string
}

var stateMessages = map[Status]stateMessage{
	StatusBoarding:  {"Boarding started", "Boarding has started for your trip. Please proceed to the boarding point."},
	StatusDeparted:  {"Bus departed", "Your bus has departed."},
	StatusInTransit: {"On the way", "Your trip is on its way."},
	StatusArrived:   {"Arrived", "Your bus has arrived at its destination."},
	StatusCompleted: {"Trip completed", "Your trip is complete. Thank you for travelling with us."},
}

// announce sends the state-entry message to every confirmed and paid
// passenger. Failures are logged and never reach the caller.
func (s *Service) announce(ctx context.Context, t *Trip) {
	msg, ok := stateMessages[t.Status]
	if !ok {
		return
	}
	p := notification.Payload{
		Type:    notification.TypeTripStatus,
		Title:   msg.title,
		Message: msg.message,
		Data:    map[string]any{"tripId": string(t.ID), "status": string(t.Status)},
	}
	s.notifyPassengers(ctx, t.ID, p)
}

func (s *Service) notifyPassengers(ctx context.Context, tripID types.ID, p notification.Payload) int {
	bookings, err := s.store.Bookings(ctx, tripID)
	if err != nil {
		log.Printf("[TRIP] action=notify_passengers trip_id=%s type=%s err=%v", tripID, p.Type, err)
		return 0
	}
	n := 0
	for _, b := range bookings {
		if !b.ConfirmedPaid() {
			continue
		}
		s.send(ctx, b.PassengerID, p)
		n++
	}
	return n
}

func (s *Service) send(ctx context.Context, userID types.ID, p notification.Payload) {
	if err := s.notify.Send(ctx, userID, p); err != nil {
		log.Printf("[TRIP] action=notify user_id=%s type=%s err=%v", userID, p.Type, err)
	}
}

func (s *Service) sendToRole(ctx context.Context, role string, p notification.Payload) {
	if err := s.notify.SendToRole(ctx, role, p); err != nil {
		log.Printf("[TRIP] action=notify_role role=%s type=%s err=%v", role, p.Type, err)
	}
}
