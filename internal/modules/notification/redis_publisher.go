// README: Publishes notification envelopes on a Redis pub/sub channel.
package notification

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"busops/internal/types"
)

type RedisPublisher struct {
	redis   *redis.Client
	channel string
}

func NewRedisPublisher(r *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{redis: r, channel: channel}
}

func (p *RedisPublisher) Send(ctx context.Context, userID types.ID, pl Payload) error {
	return p.publish(ctx, newEnvelope(userID, "", pl))
}

func (p *RedisPublisher) SendToRole(ctx context.Context, role string, pl Payload) error {
	return p.publish(ctx, newEnvelope("", role, pl))
}

func (p *RedisPublisher) publish(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, p.channel, b).Err()
}
