package cache

import (
	"github.com/gobeaver/ciam-kit/cache/driver/memory"
	"github.com/gobeaver/ciam-kit/cache/driver/redis"
)

func memoryRegister(cfg Config) (Cache, error) {
	return memory.New(memory.Config{
		MaxKeys:         cfg.MaxKeys,
		DefaultTTL:      cfg.DefaultTTL,
		CleanupInterval: cfg.CleanupInterval,
		KeyPrefix:       cfg.KeyPrefix,
		Namespace:       cfg.Namespace,
	})
}

func redisRegister(cfg Config) (Cache, error) {
	rc, err := redis.New(redis.Config{
		URL:          cfg.URL,
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		Database:     cfg.Database,
		UseTLS:       cfg.UseTLS,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		KeyPrefix:    cfg.KeyPrefix,
		Namespace:    cfg.Namespace,
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}
