package cache

import (
	"errors"
	"fmt"

	"github.com/gobeaver/ciam-kit/cache/driver"
	"github.com/gobeaver/ciam-kit/config"
)

// Common errors
var (
	ErrInvalidDriver = errors.New("invalid cache driver")
	ErrKeyNotFound   = driver.ErrKeyNotFound
)

// Builder provides a way to create cache instances with custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// New creates a new cache instance using the builder's prefix
func (b *Builder) New() (Cache, error) {
	cfg, err := GetConfig(config.LoadOptions{Prefix: b.prefix})
	if err != nil {
		return nil, err
	}
	return New(*cfg)
}

// New creates a new cache instance with given config
func New(cfg Config) (Cache, error) {
	if cfg.Driver == "" {
		cfg.Driver = "memory"
	}

	switch cfg.Driver {
	case "memory", "builtin":
		return memoryRegister(cfg)
	case "redis":
		return redisRegister(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDriver, cfg.Driver)
	}
}

// NewMemory returns an in-memory cache with default settings.
func NewMemory() Cache {
	c, _ := memoryRegister(Config{})
	return c
}
