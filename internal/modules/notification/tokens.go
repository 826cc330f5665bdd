// README: Redis-backed registry of FCM device tokens per user.
package notification

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"busops/internal/types"
)

const tokenKeyPrefix = "busops:fcm_tokens:"

var ErrEmptyToken = errors.New("empty device token")

type TokenRegistry struct {
	redis *redis.Client
}

func NewTokenRegistry(r *redis.Client) *TokenRegistry {
	return &TokenRegistry{redis: r}
}

func tokenKey(userID types.ID) string {
	return tokenKeyPrefix + string(userID)
}

func (r *TokenRegistry) Register(ctx context.Context, userID types.ID, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	return r.redis.SAdd(ctx, tokenKey(userID), token).Err()
}

func (r *TokenRegistry) Remove(ctx context.Context, userID types.ID, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	members := make([]any, len(tokens))
	for i, t := range tokens {
		members[i] = t
	}
	return r.redis.SRem(ctx, tokenKey(userID), members...).Err()
}

func (r *TokenRegistry) Tokens(ctx context.Context, userID types.ID) ([]string, error) {
	return r.redis.SMembers(ctx, tokenKey(userID)).Result()
}
