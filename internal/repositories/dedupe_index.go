package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prudhvinik1/smsledger/internal/models"
)

const (
	dedupeKeyPattern = "ledger:dedupe:%s:%s"
	dedupeTTL        = 30 * 24 * time.Hour // Index sets expire if the owner stops syncing
)

// RedisDedupeIndex caches stored duplicate keys as one Redis set per owner and role.
type RedisDedupeIndex struct {
	client *redis.Client
}

func NewRedisDedupeIndex(client *redis.Client) *RedisDedupeIndex {
	return &RedisDedupeIndex{client: client}
}

func (r *RedisDedupeIndex) Contains(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) (bool, error) {
	found, err := r.client.SIsMember(ctx, dedupeSetKey(ownerID, role), key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dedupe index: %w", err)
	}
	return found, nil
}

// Add records the key and refreshes the set's TTL in one round trip.
func (r *RedisDedupeIndex) Add(ctx context.Context, ownerID string, role models.Role, key models.DedupeKey) error {
	setKey := dedupeSetKey(ownerID, role)

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, setKey, key.String())
	pipe.Expire(ctx, setKey, dedupeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add to dedupe index: %w", err)
	}
	return nil
}

// Forget drops every role set of the owner.
func (r *RedisDedupeIndex) Forget(ctx context.Context, ownerID string) error {
	keys := []string{
		dedupeSetKey(ownerID, models.RoleNormal),
		dedupeSetKey(ownerID, models.RoleBusiness),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete dedupe index: %w", err)
	}
	return nil
}

// Helper: build Redis key for an owner+role set
func dedupeSetKey(ownerID string, role models.Role) string {
	return fmt.Sprintf(dedupeKeyPattern, ownerID, role)
}
