package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gobeaver/ciam-kit/cache/driver"
)

// RedisCache implements cache using Redis
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// Config holds Redis specific configuration
type Config struct {
	URL      string
	Host     string
	Port     string
	Password string
	Database int
	UseTLS   bool

	MaxRetries   int
	PoolSize     int
	MinIdleConns int

	KeyPrefix string
	Namespace string
}

// New connects to Redis and verifies the connection with a PING.
func New(cfg Config) (*RedisCache, error) {
	opts := &redis.UniversalOptions{
		Addrs:    []string{buildAddr(cfg)},
		Password: cfg.Password,
		DB:       cfg.Database,
	}

	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opts.Addrs = []string{parsed.Addr}
		opts.Password = parsed.Password
		opts.DB = parsed.DB
		opts.TLSConfig = parsed.TLSConfig
	}

	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.UseTLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		keyPrefix: driver.JoinPrefix(cfg.Namespace, cfg.KeyPrefix),
	}, nil
}

// NewFromClient wraps an existing client; the cache takes ownership of it.
func NewFromClient(client redis.UniversalClient, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// Get retrieves a value by key
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := rc.client.Get(ctx, rc.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, driver.ErrKeyNotFound
	}
	return val, err
}

// Set stores a value with optional TTL
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return rc.client.Set(ctx, rc.keyPrefix+key, value, ttl).Err()
}

// Take uses GETDEL so concurrent consumers cannot both read the value.
func (rc *RedisCache) Take(ctx context.Context, key string) ([]byte, error) {
	val, err := rc.client.GetDel(ctx, rc.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, driver.ErrKeyNotFound
	}
	return val, err
}

// Delete removes a key
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.keyPrefix+key).Err()
}

// Exists checks if a key exists
func (rc *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.client.Exists(ctx, rc.keyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Ping checks if Redis is reachable
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func buildAddr(cfg Config) string {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	return net.JoinHostPort(host, port)
}
