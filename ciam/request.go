package ciam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one call to the CIAM service.
type Request struct {
	Method string
	// Path is resolved against Config.UserDomain unless it is an absolute URL.
	Path  string
	Query url.Values
	// Headers override the defaults (Authorization, Content-Type).
	Headers map[string]string
	Body    []byte
	// Anonymous skips the bearer token.
	Anonymous bool
}

type response struct {
	status  int
	body    []byte
	readErr error
}

// Send executes req and decodes a successful response into T. A 204 decodes
// as the empty object. Non-2xx responses return *AuthError.
func Send[T any](ctx context.Context, c *Client, req Request) (*T, error) {
	start := time.Now()
	op := req.Method + " " + req.Path

	resp, err := c.execute(ctx, req)
	var out *T
	if err == nil {
		out, err = decodeResponse[T](resp)
	}

	c.metrics.RecordAPIRequest(op, err == nil, time.Since(start))
	if err != nil {
		c.metrics.RecordError(op, errorType(err))
		return nil, err
	}
	return out, nil
}

// execute performs a single HTTP call. It never retries.
func (c *Client) execute(ctx context.Context, req Request) (*response, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	if !req.Anonymous {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		headers["Authorization"] = "Bearer " + token
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("method", req.Method).
			Str("path", httpReq.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		return nil, fmt.Errorf("ciam: %s %s: %w", req.Method, httpReq.URL.Path, err)
	}
	defer httpResp.Body.Close()

	data, readErr := io.ReadAll(httpResp.Body)

	event := c.logger.Debug()
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		event = c.logger.Warn()
	}
	event.Str("method", req.Method).
		Str("path", httpReq.URL.Path).
		Int("status", httpResp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	return &response{status: httpResp.StatusCode, body: data, readErr: readErr}, nil
}

func decodeResponse[T any](resp *response) (*T, error) {
	body := resp.body
	if resp.readErr != nil {
		body = nil
	}

	switch {
	case resp.status == http.StatusNoContent:
		body = []byte("{}")
	case resp.status < 200 || resp.status > 299:
		return nil, parseAuthError(resp.status, body)
	case len(body) == 0:
		return nil, fmt.Errorf("%w (HTTP %d)", ErrMissingBody, resp.status)
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &DecodeError{Type: fmt.Sprintf("%T", out), Body: body, Err: err}
	}
	return &out, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	var raw string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		raw = path
	} else {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		raw = c.config.UserDomain + path
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = append(q[k], vs...)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// accessToken returns the bearer token for an authenticated call, refreshing
// it first when AutoRefresh is on and it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	st := c.tokens.load()
	switch st.Phase() {
	case PhaseRevoked:
		return "", unauthenticated(ErrTokenRevoked)
	case PhaseUnauthenticated:
		return "", unauthenticated(ErrNoToken)
	}

	if c.config.AutoRefresh && st.Token.RefreshToken != "" &&
		st.ExpiresWithin(c.config.RefreshThreshold, c.now()) {
		c.logger.Debug().Time("expires_at", st.ExpiresAt()).Msg("refreshing access token before request")
		tok, err := c.Refresh(ctx, st.Token.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("automatic token refresh failed: %w", err)
		}
		return tok.AccessToken, nil
	}
	return st.Token.AccessToken, nil
}

func errorType(err error) string {
	var decodeErr *DecodeError
	switch {
	case StatusOf(err) != "":
		return string(StatusOf(err))
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol"
	default:
		return "transport"
	}
}
