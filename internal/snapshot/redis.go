package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces snapshot keys in a shared Redis.
const DefaultRedisPrefix = "pulse:snapshot:"

// RedisStore keeps every key as a Redis SET named prefix+key.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// Compile-time interface check.
var (
	_ Store  = (*RedisStore)(nil)
	_ Lister = (*RedisStore)(nil)
)

// RedisOptions configures OpenRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("snapshot: redis ping %s: %w", opts.Addr, err)
	}
	return NewRedisStore(client, opts.Prefix, logger), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, key string) Set {
	if err := ValidateKey(key); err != nil {
		r.logger.Warn("snapshot: load rejected", "key", key, "error", err)
		return NewSet()
	}

	members, err := r.client.SMembers(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("snapshot: redis read failed, using empty set", "key", key, "error", err)
		}
		return NewSet()
	}
	return NewSet(members...)
}

// Save implements Store. DEL and SADD run in one MULTI/EXEC transaction.
func (r *RedisStore) Save(ctx context.Context, key string, s Set) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	name := r.prefix + key
	members := make([]any, 0, s.Len())
	for _, m := range s.Sorted() {
		members = append(members, m)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, name)
		if len(members) > 0 {
			pipe.SAdd(ctx, name, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("snapshot: redis save %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys (without prefix) in ascending order.
func (r *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(r.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
