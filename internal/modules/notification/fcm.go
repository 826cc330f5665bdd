// README: Firebase Cloud Messaging sink: per-user device tokens and role topics.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"

	"busops/internal/types"
)

// TokenSource resolves a user's registered device tokens.
type TokenSource interface {
	Tokens(ctx context.Context, userID types.ID) ([]string, error)
	Remove(ctx context.Context, userID types.ID, tokens ...string) error
}

type fcmClient interface {
	SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

type FCMDispatcher struct {
	client fcmClient
	tokens TokenSource
}

func NewFCMDispatcher(client *messaging.Client, tokens TokenSource) *FCMDispatcher {
	return &FCMDispatcher{client: client, tokens: tokens}
}

// RoleTopic is the FCM topic staff devices subscribe to for a role.
func RoleTopic(role string) string {
	return "role_" + role
}

func (d *FCMDispatcher) Send(ctx context.Context, userID types.ID, p Payload) error {
	tokens, err := d.tokens.Tokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading device tokens for %s: %w", userID, err)
	}
	if len(tokens) == 0 {
		return nil
	}

	resp, err := d.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Data:         stringData(p),
		Notification: &messaging.Notification{Title: p.Title, Body: p.Message},
		Android:      &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return fmt.Errorf("sending FCM to user %s: %w", userID, err)
	}

	var stale []string
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if messaging.IsUnregistered(r.Error) {
			stale = append(stale, tokens[i])
			continue
		}
		log.Printf("[NOTIFY] action=fcm_send user_id=%s err=%v", userID, r.Error)
	}
	if len(stale) > 0 {
		if err := d.tokens.Remove(ctx, userID, stale...); err != nil {
			log.Printf("[NOTIFY] action=fcm_prune user_id=%s err=%v", userID, err)
		}
	}
	return nil
}

func (d *FCMDispatcher) SendToRole(ctx context.Context, role string, p Payload) error {
	id, err := d.client.Send(ctx, &messaging.Message{
		Topic:        RoleTopic(role),
		Data:         stringData(p),
		Notification: &messaging.Notification{Title: p.Title, Body: p.Message},
	})
	if err != nil {
		return fmt.Errorf("sending FCM to role %s: %w", role, err)
	}
	log.Printf("[NOTIFY] action=fcm_topic role=%s message_id=%s", role, id)
	return nil
}

// stringData flattens the payload into FCM's string-only data map.
func stringData(p Payload) map[string]string {
	out := map[string]string{"type": string(p.Type)}
	for k, v := range p.Data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case fmt.Stringer:
			out[k] = val.String()
		case int, int64, float64, bool:
			out[k] = fmt.Sprintf("%v", val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
