// README: Trip cancellation with booking cascade and passenger notifications.
package trip

import (
	"context"
	"log"

	"busops/internal/modules/notification"
	"busops/internal/types"
)

type CancelCommand struct {
	TripID  types.ID
	Reason  string
	ActorID types.ID
}

// notCancellable holds the statuses CancelTrip refuses: a trip underway or
// finished stays as it is.
var notCancellable = map[Status]bool{
	StatusDeparted:  true,
	StatusInTransit: true,
	StatusArrived:   true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// CancelTrip cancels the trip and every CONFIRMED booking on it in one
// transaction. Bookings already cancelled are skipped, so a retry after a
// partial failure converges without re-notifying anyone.
func (s *Service) CancelTrip(ctx context.Context, cmd CancelCommand) (*Trip, error) {
	var (
		updated   *Trip
		cancelled []*Booking
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		cancelled = nil
		t, err := tx.Get(ctx, cmd.TripID)
		if err != nil {
			return err
		}
		if notCancellable[t.Status] {
			return &TransitionError{TripID: t.ID, From: t.Status, To: StatusCancelled}
		}
		bookings, err := tx.Bookings(ctx, t.ID)
		if err != nil {
			return err
		}

		reason := cmd.Reason
		actor := cmd.ActorID
		updated, err = s.transition(ctx, tx, t, StatusCancelled, &actor, reason, func(u *StatusUpdate) {
			u.CancellationReason = &reason
			u.CancelledAt = timePtr(u.At)
			u.CancelledBy = &actor
		})
		if err != nil {
			return err
		}

		for _, b := range bookings {
			if b.Status != BookingConfirmed {
				continue
			}
			ok, err := tx.CancelBooking(ctx, b.ID)
			if err != nil {
				return err
			}
			if ok {
				cancelled = append(cancelled, b)
			}
		}

		return tx.AppendLog(ctx, &Log{
			ID:          types.NewID(),
			TripID:      t.ID,
			EventType:   EventTripCancelled,
			Description: withReason("Trip cancelled", reason),
			ActorID:     &actor,
			Timestamp:   updated.UpdatedAt,
		})
	})
	if err != nil {
		return nil, persistErr("cancel trip", err)
	}

	log.Printf("[TRIP] action=cancel trip_id=%s bookings_cancelled=%d", updated.ID, len(cancelled))
	for _, b := range cancelled {
		s.send(ctx, b.PassengerID, notification.Payload{
			Type:    notification.TypeTripCancelled,
			Title:   "Trip cancelled",
			Message: withReason("Your trip has been cancelled", cmd.Reason) + ". You will receive a full refund.",
			Data: map[string]any{
				"tripId":    string(updated.ID),
				"bookingId": string(b.ID),
				"reason":    cmd.Reason,
				"refund":    "full",
			},
		})
	}
	return updated, nil
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + ": " + reason
}
