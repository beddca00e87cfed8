package ciam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gobeaver/ciam-kit/cache"
)

const (
	pathUserInfo  = "/userinfo"
	pathJWKS      = "/oauth2/jwks"
	pathDiscovery = "/.well-known/openid-configuration"
	pathRevoke    = "/oauth2/revoke"

	cacheKeyJWKS      = "jwks"
	cacheKeyDiscovery = "openid-configuration"
)

// UserInfo fetches the signed-in user's profile.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	return Send[UserInfo](ctx, c, Request{Method: http.MethodGet, Path: pathUserInfo})
}

// JWKS fetches the tenant's signing keys.
func (c *Client) JWKS(ctx context.Context) (*JWKS, error) {
	return discover[JWKS](ctx, c, cacheKeyJWKS, pathJWKS)
}

// ProviderMetadata fetches the OpenID provider configuration.
func (c *Client) ProviderMetadata(ctx context.Context) (*ProviderMetadata, error) {
	return discover[ProviderMetadata](ctx, c, cacheKeyDiscovery, pathDiscovery)
}

// Revoke revokes the stored refresh token. With no token the request is
// still sent with an empty token parameter. Only HTTP 200 succeeds; the token
// that was sent is then marked revoked unless a newer one was stored meanwhile.
func (c *Client) Revoke(ctx context.Context) error {
	st, gen := c.tokens.snapshot()
	query := url.Values{
		"client_id": {c.creds.ClientID},
		"token":     {st.Token.RefreshToken},
	}

	start := time.Now()
	op := http.MethodGet + " " + pathRevoke
	resp, err := c.execute(ctx, Request{
		Method:    http.MethodGet,
		Path:      pathRevoke,
		Query:     query,
		Anonymous: true,
	})
	if err == nil && resp.status != http.StatusOK {
		body := resp.body
		if resp.readErr != nil {
			body = nil
		}
		err = parseAuthError(resp.status, body)
	}

	c.metrics.RecordAPIRequest(op, err == nil, time.Since(start))
	if err != nil {
		c.metrics.RecordError(op, errorType(err))
		return err
	}

	if !c.tokens.revokeIf(gen) {
		c.logger.Debug().Msg("token revoked; state changed during the call and was kept")
		return nil
	}
	c.logger.Debug().Msg("token revoked")
	return nil
}

// discover fetches an anonymous discovery document, going through the cache
// when DiscoveryCacheTTL is positive.
func discover[T any](ctx context.Context, c *Client, key, path string) (*T, error) {
	ttl := c.config.DiscoveryCacheTTL
	if ttl > 0 {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var out T
			if err := json.Unmarshal(data, &out); err == nil {
				return &out, nil
			}
			_ = c.cache.Delete(ctx, key)
		} else if !errors.Is(err, cache.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("discovery cache read failed")
		}
	}

	out, err := Send[T](ctx, c, Request{Method: http.MethodGet, Path: path, Anonymous: true})
	if err != nil {
		return nil, err
	}

	if ttl > 0 {
		if data, err := json.Marshal(out); err == nil {
			if err := c.cache.Set(ctx, key, data, ttl); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("discovery cache write failed")
			}
		}
	}
	return out, nil
}
