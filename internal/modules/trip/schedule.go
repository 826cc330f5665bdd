// README: Automatic time-based transitions (boarding window, in-transit, arrival).
package trip

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"busops/internal/types"
)

const (
	BoardingWindow       = 30 * time.Minute
	autoTransitionReason = "Auto-transition"
)

// RunAutoTransitionSweep moves every trip whose schedule says it is due. It
// returns how many distinct trips moved plus the joined errors of any phase
// whose query failed. A trip overdue for both arrival phases moves twice but
// counts once. Failures on a single trip are logged and skipped.
func (s *Service) RunAutoTransitionSweep(ctx context.Context, now time.Time) (int, error) {
	var errs []error
	moved := make(map[types.ID]struct{})

	ids, err := s.openBoarding(ctx, now)
	for _, id := range ids {
		moved[id] = struct{}{}
	}
	if err != nil {
		log.Printf("[TRIP] action=auto_transition phase=boarding err=%v", err)
		errs = append(errs, err)
	}

	phases := []struct {
		from, to Status
		field    TimeField
	}{
		{StatusDeparted, StatusInTransit, FieldDeparture},
		{StatusInTransit, StatusArrived, FieldArrival},
	}
	for _, ph := range phases {
		ids, err := s.advanceOverdue(ctx, ph.from, ph.to, ph.field, now)
		for _, id := range ids {
			moved[id] = struct{}{}
		}
		if err != nil {
			log.Printf("[TRIP] action=auto_transition phase=%s err=%v", ph.to, err)
			errs = append(errs, err)
		}
	}
	return len(moved), errors.Join(errs...)
}

// openBoarding is a single guarded bulk write: only rows still SCHEDULED at
// write time move, so a concurrent cancellation is never overwritten.
func (s *Service) openBoarding(ctx context.Context, now time.Time) ([]types.ID, error) {
	until := now.Add(BoardingWindow)
	f := Filter{
		Statuses: []Status{StatusScheduled},
		Field:    FieldDeparture,
		After:    &now,
		Until:    &until,
	}
	var moved []*Trip
	err := s.store.InTx(ctx, func(tx Store) error {
		at := s.clock.Now()
		trips, err := tx.BulkUpdateStatus(ctx, f, StatusBoarding, at)
		if err != nil {
			return err
		}
		for _, t := range trips {
			if err := tx.AppendLog(ctx, statusLog(t.ID, StatusScheduled, StatusBoarding, nil, autoTransitionReason, at)); err != nil {
				return err
			}
		}
		moved = trips
		return nil
	})
	if err != nil {
		return nil, persistErr("open boarding", err)
	}
	ids := make([]types.ID, 0, len(moved))
	for _, t := range moved {
		log.Printf("[TRIP] action=auto_transition trip_id=%s status=%s", t.ID, t.Status)
		s.announce(ctx, t)
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (s *Service) advanceOverdue(ctx context.Context, from, to Status, field TimeField, now time.Time) ([]types.ID, error) {
	trips, err := s.store.List(ctx, Filter{
		Statuses: []Status{from},
		Field:    field,
		Before:   &now,
	})
	if err != nil {
		return nil, persistErr(fmt.Sprintf("list %s trips", from), err)
	}
	var ids []types.ID
	for _, t := range trips {
		if ctx.Err() != nil {
			return ids, ctx.Err()
		}
		if _, err := s.ChangeStatus(ctx, ChangeStatusCommand{
			TripID: t.ID,
			Status: to,
			Reason: autoTransitionReason,
		}); err != nil {
			log.Printf("[TRIP] action=auto_transition trip_id=%s from=%s to=%s err=%v", t.ID, from, to, err)
			continue
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}
