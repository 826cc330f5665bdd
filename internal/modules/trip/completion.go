// README: Trip completion: closing readings, statistics, final transition.
package trip

import (
	"context"
	"encoding/json"
	"log"

	"busops/internal/types"
)

type CompletionData struct {
	FinalOdometer *float64
	FinalFuel     *float64
	Notes         string
	ActorID       *types.ID
}

type CompletionResult struct {
	Trip  *Trip
	Stats Stats
}

func (d CompletionData) validate() error {
	if d.FinalOdometer == nil {
		return &ValidationError{Field: "finalOdometer", Msg: "required"}
	}
	if d.FinalFuel == nil {
		return &ValidationError{Field: "finalFuel", Msg: "required"}
	}
	return nil
}

// CompleteTrip closes an ARRIVED trip. Status, readings, statistics and both
// log entries commit together.
func (s *Service) CompleteTrip(ctx context.Context, tripID types.ID, data CompletionData) (*CompletionResult, error) {
	var res CompletionResult
	err := s.store.InTx(ctx, func(tx Store) error {
		t, err := tx.Get(ctx, tripID)
		if err != nil {
			return err
		}
		if t.Status != StatusArrived {
			return &TransitionError{TripID: t.ID, From: t.Status, To: StatusCompleted}
		}
		if err := data.validate(); err != nil {
			return err
		}
		bookings, err := tx.Bookings(ctx, tripID)
		if err != nil {
			return err
		}
		stats := ComputeStats(t, bookings, *data.FinalOdometer, *data.FinalFuel)

		updated, err := s.transition(ctx, tx, t, StatusCompleted, data.ActorID, "", func(u *StatusUpdate) {
			u.ActualArrival = timePtr(u.At)
			u.EndOdometer = data.FinalOdometer
			u.EndFuel = data.FinalFuel
			u.Stats = &stats
			if data.Notes != "" {
				notes := data.Notes
				u.CompletionNotes = &notes
			}
		})
		if err != nil {
			return err
		}

		desc, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		if err := tx.AppendLog(ctx, &Log{
			ID:          types.NewID(),
			TripID:      tripID,
			EventType:   EventTripCompleted,
			Description: string(desc),
			ActorID:     data.ActorID,
			Timestamp:   updated.UpdatedAt,
		}); err != nil {
			return err
		}
		res = CompletionResult{Trip: updated, Stats: stats}
		return nil
	})
	if err != nil {
		return nil, persistErr("complete trip", err)
	}
	log.Printf("[TRIP] action=complete trip_id=%s passengers=%d distance=%.1f", tripID, res.Stats.TotalPassengers, res.Stats.DistanceTraveled)
	s.announce(ctx, res.Trip)
	return &res, nil
}

// ComputeStats summarises bookings and readings for a finished trip. Revenue
// is kept in the currency of the first paid booking; paid bookings in another
// currency are logged and left out of the total.
func ComputeStats(t *Trip, bookings []*Booking, finalOdometer, finalFuel float64) Stats {
	var st Stats
	for _, b := range bookings {
		switch b.Status {
		case BookingConfirmed:
			st.TotalPassengers++
		case BookingNoShow:
			st.NoShows++
		}
		if b.CheckedIn {
			st.CheckedInPassengers++
		}
		if b.PaymentStatus == PaymentPaid {
			if !st.TotalRevenue.SameCurrency(b.TotalAmount) {
				log.Printf("[TRIP] action=compute_stats trip_id=%s booking_id=%s skipped=currency have=%s got=%s",
					t.ID, b.ID, st.TotalRevenue.Currency, b.TotalAmount.Currency)
				continue
			}
			st.TotalRevenue = st.TotalRevenue.Add(b.TotalAmount)
		}
	}
	var startOdo, startFuel float64
	if t.StartOdometer != nil {
		startOdo = *t.StartOdometer
	}
	if t.StartFuel != nil {
		startFuel = *t.StartFuel
	}
	st.DistanceTraveled = finalOdometer - startOdo
	st.FuelUsed = startFuel - finalFuel
	return st
}
