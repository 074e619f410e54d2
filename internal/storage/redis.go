package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every key written by the Redis tier.
const DefaultRedisNamespace = "hexagram"

// Redis is a durable tier backed by a Redis server, for installations that
// keep client state on a shared host instead of a local file.
type Redis struct {
	client    redis.UniversalClient
	namespace string
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addrs      []string
	Password   string
	UseCluster bool
	Namespace  string
}

// NewRedis connects to a single node, or to a cluster when UseCluster is set
// and more than one address is given.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if len(opts.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	var rdb redis.UniversalClient
	if opts.UseCluster && len(opts.Addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    opts.Addrs,
			Password: opts.Password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     opts.Addrs[0],
			Password: opts.Password,
			DB:       0,
		})
	}

	return NewRedisFromClient(rdb, opts.Namespace), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient, namespace string) *Redis {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	return &Redis{client: client, namespace: namespace}
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) SetItem(ctx context.Context, key, value string) error {
	// No TTL: the durable tier keeps values until removed.
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("remove item %q: %w", key, err)
	}
	return nil
}

func (r *Redis) key(key string) string {
	return r.namespace + ":" + key
}
