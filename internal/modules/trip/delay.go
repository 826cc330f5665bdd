// README: Delay detection for trips that have not left by their scheduled departure.
package trip

import (
	"context"
	"fmt"
	"log"
	"time"

	"busops/internal/modules/notification"
	"busops/internal/types"
)

type DelayedTrip struct {
	Trip         *Trip
	DelayMinutes int
}

// CheckDelays logs and announces every SCHEDULED or BOARDING trip past its
// departure time. It never changes trip status.
func (s *Service) CheckDelays(ctx context.Context, now time.Time) ([]DelayedTrip, error) {
	trips, err := s.store.List(ctx, Filter{
		Statuses: []Status{StatusScheduled, StatusBoarding},
		Field:    FieldDeparture,
		Before:   &now,
	})
	if err != nil {
		return nil, persistErr("list delayed trips", err)
	}

	out := make([]DelayedTrip, 0, len(trips))
	for _, t := range trips {
		mins := DelayMinutes(t.ScheduledDeparture, now)
		if err := s.store.AppendLog(ctx, &Log{
			ID:          types.NewID(),
			TripID:      t.ID,
			EventType:   EventDelay,
			Description: fmt.Sprintf("Trip delayed by %d minutes", mins),
			Timestamp:   s.clock.Now(),
		}); err != nil {
			log.Printf("[TRIP] action=check_delay trip_id=%s err=%v", t.ID, err)
			continue
		}

		data := map[string]any{"tripId": string(t.ID), "delayMinutes": mins}
		s.notifyPassengers(ctx, t.ID, notification.Payload{
			Type:    notification.TypeTripDelay,
			Title:   "Trip delayed",
			Message: fmt.Sprintf("Your trip is delayed by %d minutes. We apologise for the inconvenience.", mins),
			Data:    data,
		})
		s.sendToRole(ctx, s.cfg.OperationsRole, notification.Payload{
			Type:    notification.TypeOpsDelay,
			Title:   "Trip delayed",
			Message: fmt.Sprintf("Trip %s is %d minutes late (status %s).", t.ID, mins, t.Status),
			Data:    data,
		})
		log.Printf("[TRIP] action=check_delay trip_id=%s delay_minutes=%d", t.ID, mins)
		out = append(out, DelayedTrip{Trip: t, DelayMinutes: mins})
	}
	return out, nil
}

// DelayMinutes is the whole number of minutes now is past scheduled.
func DelayMinutes(scheduled, now time.Time) int {
	if !now.After(scheduled) {
		return 0
	}
	return int(now.Sub(scheduled) / time.Minute)
}
