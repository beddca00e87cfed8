package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobeaver/ciam-kit/config"
)

// Config holds cache configuration
type Config struct {
	// Driver specifies cache backend: "memory" or "redis"
	Driver string `env:"CACHE_DRIVER,default:memory"`

	// Redis connection; URL overrides host/port/password/database
	URL      string `env:"CACHE_URL"`
	Host     string `env:"CACHE_HOST,default:localhost"`
	Port     string `env:"CACHE_PORT,default:6379"`
	Password string `env:"CACHE_PASSWORD"`
	Database int    `env:"CACHE_DATABASE,default:0"`
	UseTLS   bool   `env:"CACHE_USE_TLS,default:false"`

	// Redis pool
	MaxRetries   int `env:"CACHE_MAX_RETRIES,default:3"`
	PoolSize     int `env:"CACHE_POOL_SIZE,default:10"`
	MinIdleConns int `env:"CACHE_MIN_IDLE_CONNS,default:2"`

	// Memory backend limits
	MaxKeys         int           `env:"CACHE_MAX_KEYS,default:0"`
	DefaultTTL      time.Duration `env:"CACHE_DEFAULT_TTL,default:0s"`
	CleanupInterval time.Duration `env:"CACHE_CLEANUP_INTERVAL,default:1m"`

	// Key isolation
	KeyPrefix string `env:"CACHE_KEY_PREFIX"`
	Namespace string `env:"CACHE_NAMESPACE"`
}

// GetConfig loads configuration from environment variables
func GetConfig(opts ...config.LoadOptions) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("failed to load cache config: %w", err)
	}

	cfg.Driver = strings.ToLower(cfg.Driver)

	return cfg, nil
}
