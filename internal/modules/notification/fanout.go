// README: Fanout delivers one notification to every configured sink.
package notification

import (
	"context"
	"errors"
	"log"

	"busops/internal/types"
)

type namedSink struct {
	name string
	d    Dispatcher
}

type Fanout struct {
	sinks []namedSink
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers a sink. Not safe to call once dispatching has started.
func (f *Fanout) Add(name string, d Dispatcher) *Fanout {
	f.sinks = append(f.sinks, namedSink{name: name, d: d})
	return f
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Send(ctx context.Context, userID types.ID, p Payload) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.d.Send(ctx, userID, p); err != nil {
			log.Printf("[NOTIFY] action=send sink=%s user_id=%s type=%s err=%v", s.name, userID, p.Type, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) SendToRole(ctx context.Context, role string, p Payload) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.d.SendToRole(ctx, role, p); err != nil {
			log.Printf("[NOTIFY] action=send_role sink=%s role=%s type=%s err=%v", s.name, role, p.Type, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
