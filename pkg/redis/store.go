package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a byte-value store that namespaces every key with a prefix.
type Store struct {
	db     redis.UniversalClient
	prefix string
}

// NewStore wraps client. All keys are stored as prefix+key.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{db: client, prefix: prefix}
}

// Get returns ErrKeyNotFound when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores val under key. A zero ttl keeps the key until deleted.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.db.Set(ctx, s.prefix+key, val, ttl).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Del(ctx, s.prefix+key).Err()
}
