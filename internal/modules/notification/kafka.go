// README: Kafka sink; each notification becomes one keyed message on the topic.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"busops/internal/types"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaDispatcher struct {
	w messageWriter
}

func NewKafkaDispatcher(w *kafka.Writer) *KafkaDispatcher {
	return &KafkaDispatcher{w: w}
}

func (d *KafkaDispatcher) Send(ctx context.Context, userID types.ID, p Payload) error {
	return d.write(ctx, "user:"+string(userID), newEnvelope(userID, "", p))
}

func (d *KafkaDispatcher) SendToRole(ctx context.Context, role string, p Payload) error {
	return d.write(ctx, "role:"+role, newEnvelope("", role, p))
}

func (d *KafkaDispatcher) write(ctx context.Context, key string, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := d.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
		},
	}); err != nil {
		return fmt.Errorf("kafka write %s: %w", key, err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.w.Close()
}
