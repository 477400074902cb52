package state

import (
	"context"

	"golang-stock-alerts/internal/alerting/corridor"
	"golang-stock-alerts/pkg/logger"
	redisPkg "golang-stock-alerts/pkg/redis"
)

const redisStateKey = "stock_alerts:corridor_state"

// RedisStore keeps the alert state in a Redis hash, one field per ticker.
// Useful when several hosts share the same watch list.
type RedisStore struct {
	client *redisPkg.Client
	log    *logger.Logger
}

// NewRedisStore creates a Redis-backed state store.
func NewRedisStore(client *redisPkg.Client, log *logger.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

// Load reads the state hash. Connection errors degrade to an empty mapping.
func (s *RedisStore) Load(ctx context.Context) (map[string]corridor.Direction, error) {
	raw, err := s.client.HGetAll(ctx, redisStateKey).Result()
	if err != nil {
		s.log.Warn("Could not read state from redis, assuming empty state", logger.ErrorField(err))
		return map[string]corridor.Direction{}, nil
	}
	st := make(map[string]corridor.Direction, len(raw))
	for ticker, dir := range raw {
		st[ticker] = corridor.ParseDirection(dir)
	}
	return st, nil
}

// Save writes the full mapping into the hash.
func (s *RedisStore) Save(ctx context.Context, st map[string]corridor.Direction) error {
	if len(st) == 0 {
		return s.client.Del(ctx, redisStateKey).Err()
	}
	fields := make(map[string]interface{}, len(st))
	for ticker, dir := range st {
		fields[ticker] = string(dir)
	}
	return s.client.HSet(ctx, redisStateKey, fields).Err()
}
