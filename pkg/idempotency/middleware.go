package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers rendered responses so a retried request can be answered
// without running the action again.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(action, sender, messageID string) string {
	return fmt.Sprintf("idem:action:%s:%s:%s", action, sender, messageID)
}

// Recall returns the stored response for key, if any.
func (s *Store) Recall(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("recall %s: %w", key, err)
	}
	return b, true, nil
}

// Remember stores body under key unless another request stored one first.
func (s *Store) Remember(ctx context.Context, key string, body []byte) error {
	if err := s.rdb.SetNX(ctx, key, body, s.ttl).Err(); err != nil {
		return fmt.Errorf("remember %s: %w", key, err)
	}
	return nil
}
