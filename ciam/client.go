package ciam

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gobeaver/ciam-kit/cache"
	"github.com/gobeaver/ciam-kit/config"
)

// Global instance management
var (
	defaultClient *Client
	defaultOnce   sync.Once
	defaultErr    error
)

// HTTPClient interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a single CIAM tenant on behalf of one application.
// It is safe for concurrent use.
type Client struct {
	creds    Credentials
	config   Config
	verifier string

	http    HTTPClient
	logger  zerolog.Logger
	cache   cache.Cache
	metrics MetricsCollector
	now     func() time.Time

	ownsCache bool
	tokens    tokenStore
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger. Lines carry component=ciam.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCache sets the cache holding flows and discovery documents.
// The client does not close caches passed this way.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) {
		c.cache = cc
		c.ownsCache = false
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCodeVerifier replaces the generated per-client code verifier, e.g. to
// resume an authorization started by an earlier process.
func WithCodeVerifier(v string) Option {
	return func(c *Client) { c.verifier = v }
}

// WithClock overrides time.Now for issuance and expiry calculations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client from credentials and configuration.
func New(creds Credentials, cfg Config, opts ...Option) (*Client, error) {
	cfg.applyDefaults()
	if err := validateConfig(creds, cfg); err != nil {
		return nil, err
	}

	verifier, err := NewCodeVerifier()
	if err != nil {
		return nil, err
	}

	c := &Client{
		creds:    creds,
		config:   cfg,
		verifier: verifier,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
		logger:   zerolog.Nop(),
		metrics:  nopMetrics{},
		now:      time.Now,
	}
	if cfg.Debug {
		c.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		c.cache = cache.NewMemory()
		c.ownsCache = true
	}
	c.logger = c.logger.With().Str("component", "ciam").Logger()

	return c, nil
}

// Close releases the cache if the client created it.
func (c *Client) Close() error {
	if c.ownsCache {
		return c.cache.Close()
	}
	return nil
}

// Credentials returns the client's credentials.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// CodeVerifier returns the per-client PKCE verifier used by AuthURL,
// RegisterURL and Exchange. It stays the same for the client's lifetime;
// use BeginFlow for a verifier per authorization.
func (c *Client) CodeVerifier() string {
	return c.verifier
}

// TokenState returns a snapshot of the current token state.
func (c *Client) TokenState() TokenState {
	return c.tokens.load()
}

// SetToken restores a token persisted by the caller. A zero issuedAt means now.
func (c *Client) SetToken(token Token, issuedAt time.Time) {
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}
	c.tokens.store(TokenState{Token: token, IssuedAt: issuedAt})
}

// Init initializes the global client from BEAVER_ prefixed environment variables.
func Init(opts ...Option) error {
	defaultOnce.Do(func() {
		defaultClient, defaultErr = fromEnv("BEAVER_", opts)
	})
	return defaultErr
}

// CIAM returns the global client, or nil before a successful Init.
func CIAM() *Client {
	return defaultClient
}

// Default returns the global client or ErrNotInitialized.
func Default() (*Client, error) {
	if defaultClient == nil {
		if defaultErr != nil {
			return nil, errors.Join(ErrNotInitialized, defaultErr)
		}
		return nil, ErrNotInitialized
	}
	return defaultClient, nil
}

// Reset clears the global instance (for testing)
func Reset() {
	if defaultClient != nil {
		_ = defaultClient.Close()
	}
	defaultClient = nil
	defaultOnce = sync.Once{}
	defaultErr = nil
}

// Builder pattern for custom prefixes
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// New creates a client from environment variables using the builder's prefix
func (b *Builder) New(opts ...Option) (*Client, error) {
	return fromEnv(b.prefix, opts)
}

func fromEnv(prefix string, opts []Option) (*Client, error) {
	load := config.LoadOptions{Prefix: prefix}

	creds, err := GetCredentials(load)
	if err != nil {
		return nil, err
	}
	cfg, err := GetConfig(load)
	if err != nil {
		return nil, err
	}
	cacheCfg, err := cache.GetConfig(load)
	if err != nil {
		return nil, err
	}
	cc, err := cache.New(*cacheCfg)
	if err != nil {
		return nil, err
	}

	// caller options may still replace the cache; ownership is settled after
	all := append([]Option{WithCache(cc)}, opts...)
	client, err := New(*creds, *cfg, all...)
	if err != nil {
		_ = cc.Close()
		return nil, err
	}
	if client.cache == cc {
		client.ownsCache = true
	} else {
		_ = cc.Close()
	}
	return client, nil
}

// ping is used by HealthCheck for the cache backend.
func (c *Client) ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}
