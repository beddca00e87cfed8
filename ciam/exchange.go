package ciam

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// Exchange trades an authorization code for tokens using the per-client
// code verifier. Only HTTP 200 succeeds; on any failure the token state is
// left untouched.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	return c.exchange(ctx, code, c.verifier)
}

func (c *Client) exchange(ctx context.Context, code, verifier string) (*Token, error) {
	form := url.Values{
		"client_id":    {c.creds.ClientID},
		"code":         {code},
		"redirect_uri": {c.config.RedirectURI},
		"grant_type":   {"authorization_code"},
	}
	if c.config.AuthType == AuthTypePKCE {
		form.Set("code_verifier", verifier)
	}

	issuedAt := c.now()
	start := time.Now()
	tok, err := c.requestToken(ctx, form)
	c.metrics.RecordTokenExchange(err == nil, time.Since(start))
	if err != nil {
		c.metrics.RecordError("token_exchange", errorType(err))
		c.logger.Warn().Err(err).Msg("authorization code exchange failed")
		return nil, err
	}

	c.tokens.store(TokenState{Token: *tok, IssuedAt: issuedAt})
	c.logger.Debug().Int("expires_in", tok.ExpiresIn).Msg("authorization code exchanged")

	out := *tok
	return &out, nil
}

// Refresh obtains a new access token. An empty refreshToken uses the stored
// one. Concurrent calls for the same refresh token share a single request.
// When the response omits refresh_token the one used is kept. A token stored
// while the refresh was in flight (by Exchange or SetToken) is not replaced.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		refreshToken = c.tokens.load().Token.RefreshToken
	}
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	v, err, shared := c.refreshes.Do(refreshToken, func() (interface{}, error) {
		form := url.Values{
			"client_id":     {c.creds.ClientID},
			"refresh_token": {refreshToken},
			"grant_type":    {"refresh_token"},
		}

		_, gen := c.tokens.snapshot()
		issuedAt := c.now()
		start := time.Now()
		tok, err := c.requestToken(ctx, form)
		c.metrics.RecordTokenRefresh(err == nil, time.Since(start))
		if err != nil {
			c.metrics.RecordError("token_refresh", errorType(err))
			return nil, err
		}
		if tok.RefreshToken == "" {
			tok.RefreshToken = refreshToken
		}

		if !c.tokens.storeIf(gen, TokenState{Token: *tok, IssuedAt: issuedAt}) {
			c.logger.Debug().Msg("newer token stored during refresh; refreshed token not kept")
		}
		return tok, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Bool("shared", shared).Msg("token refresh failed")
		return nil, err
	}

	c.logger.Debug().Bool("shared", shared).Msg("access token refreshed")
	out := *v.(*Token)
	return &out, nil
}

// requestToken posts form to the token endpoint.
func (c *Client) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	resp, err := c.execute(ctx, Request{
		Method: http.MethodPost,
		Path:   c.creds.TokenURI,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		},
		Body:      []byte(form.Encode()),
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		body := resp.body
		if resp.readErr != nil {
			body = nil
		}
		return nil, parseAuthError(resp.status, body)
	}

	tok, err := decodeResponse[Token](resp)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, &DecodeError{Type: "ciam.Token", Body: resp.body, Err: errors.New("missing access_token")}
	}
	return tok, nil
}
