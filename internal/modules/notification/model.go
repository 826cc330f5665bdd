// README: Notification contract shared by the trip engine and the delivery sinks.
package notification

import (
	"context"
	"log"
	"time"

	"busops/internal/types"
)

type Type string

const (
	TypeTripStatus    Type = "trip_status"
	TypeTripDelay     Type = "trip_delay"
	TypeTripCancelled Type = "trip_cancelled"
	TypeOpsDelay      Type = "ops_trip_delay"
)

type Payload struct {
	Type    Type           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Dispatcher delivers notifications. Implementations own channel formats and
// retries; callers treat delivery as best-effort.
type Dispatcher interface {
	Send(ctx context.Context, userID types.ID, p Payload) error
	SendToRole(ctx context.Context, role string, p Payload) error
}

// Envelope is the wire form used by the stream sinks (kafka, redis, websocket).
type Envelope struct {
	UserID  types.ID       `json:"user_id,omitempty"`
	Role    string         `json:"role,omitempty"`
	Type    Type           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

func newEnvelope(userID types.ID, role string, p Payload) Envelope {
	return Envelope{
		UserID:  userID,
		Role:    role,
		Type:    p.Type,
		Title:   p.Title,
		Message: p.Message,
		Data:    p.Data,
		SentAt:  time.Now().UTC(),
	}
}

// LogDispatcher writes notifications to the process log. Used in development
// and as the default sink.
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, userID types.ID, p Payload) error {
	log.Printf("[NOTIFY] action=send user_id=%s type=%s title=%q", userID, p.Type, p.Title)
	return nil
}

func (LogDispatcher) SendToRole(_ context.Context, role string, p Payload) error {
	log.Printf("[NOTIFY] action=send_role role=%s type=%s title=%q", role, p.Type, p.Title)
	return nil
}
