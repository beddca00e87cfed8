package ciam

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gobeaver/ciam-kit/config"
)

// AuthType selects how the authorization code grant is performed.
type AuthType string

const (
	// AuthTypePKCE sends an S256 code challenge and the matching verifier.
	AuthTypePKCE AuthType = "OIDC_PKCE"
	// AuthTypeNormal is the plain authorization code grant.
	AuthTypeNormal AuthType = "NORMAL"
)

func (a AuthType) normalize() AuthType {
	switch strings.ToUpper(string(a)) {
	case "", "PKCE", string(AuthTypePKCE):
		return AuthTypePKCE
	case string(AuthTypeNormal):
		return AuthTypeNormal
	default:
		return a
	}
}

// Credentials identify the application to the CIAM service.
type Credentials struct {
	// ClientID is the application's client id
	ClientID string `env:"CIAM_CLIENT_ID,required"`

	// TokenURI is the absolute URL of the token endpoint
	TokenURI string `env:"CIAM_TOKEN_URI,required"`
}

// Config defines the client configuration
type Config struct {
	// Scopes requested at authorization; joined with spaces on the wire
	Scopes []string `env:"CIAM_SCOPES,default:openid"`

	// UserDomain is the base URL of the CIAM tenant, e.g. https://tenant.example.com
	UserDomain string `env:"CIAM_USER_DOMAIN,required"`

	// RedirectURI is the callback URL after authentication
	RedirectURI string `env:"CIAM_REDIRECT_URI,required"`

	// LogoutRedirectURL is where the portal sends the user after logout
	LogoutRedirectURL string `env:"CIAM_LOGOUT_REDIRECT_URL"`

	// AuthType is OIDC_PKCE (alias PKCE) or NORMAL
	AuthType AuthType `env:"CIAM_AUTH_TYPE,default:OIDC_PKCE"`

	// HTTPTimeout is the timeout for HTTP requests
	HTTPTimeout time.Duration `env:"CIAM_HTTP_TIMEOUT,default:30s"`

	// AutoRefresh refreshes the access token before an authenticated call
	// when it expires within RefreshThreshold
	AutoRefresh      bool          `env:"CIAM_AUTO_REFRESH,default:false"`
	RefreshThreshold time.Duration `env:"CIAM_REFRESH_THRESHOLD,default:1m"`

	// DiscoveryCacheTTL caches JWKS and provider metadata when positive
	DiscoveryCacheTTL time.Duration `env:"CIAM_DISCOVERY_CACHE_TTL,default:0s"`

	// FlowTimeout is how long a started flow can be exchanged
	FlowTimeout time.Duration `env:"CIAM_FLOW_TIMEOUT,default:10m"`

	// Issuer, when set, must match the iss claim of verified ID tokens
	Issuer string `env:"CIAM_ISSUER"`

	// Debug enables debug logging
	Debug bool `env:"CIAM_DEBUG,default:false"`
}

// GetConfig returns config loaded from environment with optional LoadOptions
func GetConfig(opts ...config.LoadOptions) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("failed to load ciam config: %w", err)
	}
	return cfg, nil
}

// GetCredentials returns credentials loaded from environment with optional LoadOptions
func GetCredentials(opts ...config.LoadOptions) (*Credentials, error) {
	creds := &Credentials{}
	if err := config.Load(creds, opts...); err != nil {
		return nil, fmt.Errorf("failed to load ciam credentials: %w", err)
	}
	return creds, nil
}

// applyDefaults fills zero values for configs built in code rather than from env.
func (c *Config) applyDefaults() {
	c.AuthType = c.AuthType.normalize()
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"openid"}
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = time.Minute
	}
	if c.FlowTimeout <= 0 {
		c.FlowTimeout = 10 * time.Minute
	}
	c.UserDomain = strings.TrimRight(c.UserDomain, "/")
}

// validateConfig checks configuration validity
func validateConfig(creds Credentials, cfg Config) error {
	if creds.ClientID == "" {
		return fmt.Errorf("%w: client_id required", ErrInvalidConfig)
	}
	if creds.TokenURI == "" {
		return fmt.Errorf("%w: token_uri required", ErrInvalidConfig)
	}
	if u, err := url.Parse(creds.TokenURI); err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: token_uri must be an absolute URL: %q", ErrInvalidConfig, creds.TokenURI)
	}
	if cfg.UserDomain == "" {
		return fmt.Errorf("%w: user_domain required", ErrInvalidConfig)
	}
	if u, err := url.Parse(cfg.UserDomain); err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: user_domain must be an absolute URL: %q", ErrInvalidConfig, cfg.UserDomain)
	}
	if cfg.RedirectURI == "" {
		return fmt.Errorf("%w: redirect_uri required", ErrInvalidConfig)
	}

	switch cfg.AuthType {
	case AuthTypePKCE, AuthTypeNormal:
	default:
		return fmt.Errorf("%w: unknown auth type: %s", ErrInvalidConfig, cfg.AuthType)
	}

	return nil
}
