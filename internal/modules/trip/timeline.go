// README: Read-only trip timeline built from the audit log.
package trip

import (
	"context"

	"busops/internal/types"
)

func (s *Service) GetTripTimeline(ctx context.Context, tripID types.ID) ([]TimelineEntry, error) {
	if _, err := s.store.Get(ctx, tripID); err != nil {
		return nil, persistErr("get trip", err)
	}
	logs, err := s.store.Logs(ctx, tripID)
	if err != nil {
		return nil, persistErr("list trip logs", err)
	}
	out := make([]TimelineEntry, len(logs))
	for i, l := range logs {
		out[i] = TimelineEntry{Time: l.Timestamp, Event: l.EventType, Description: l.Description}
	}
	return out, nil
}
