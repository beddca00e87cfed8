package ciam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gobeaver/ciam-kit/cache"
)

const flowKeyPrefix = "flow:"

// Flow is one pending authorization with its own PKCE verifier. Its ID is
// sent as the state parameter and identifies the flow at ExchangeFlow.
type Flow struct {
	ID        string
	URL       string
	Register  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

type flowRecord struct {
	Verifier  string    `json:"verifier"`
	Register  bool      `json:"register"`
	CreatedAt time.Time `json:"created_at"`
}

// BeginFlow starts an authorization (or registration, when register is true)
// with a fresh verifier stored in the cache for Config.FlowTimeout.
func (c *Client) BeginFlow(ctx context.Context, register bool) (*Flow, error) {
	verifier, err := NewCodeVerifier()
	if err != nil {
		return nil, err
	}

	now := c.now()
	id := uuid.NewString()
	data, err := json.Marshal(flowRecord{Verifier: verifier, Register: register, CreatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow: %w", err)
	}
	if err := c.cache.Set(ctx, flowKeyPrefix+id, data, c.config.FlowTimeout); err != nil {
		return nil, fmt.Errorf("failed to store flow: %w", err)
	}

	c.logger.Debug().Str("flow_id", id).Bool("register", register).Msg("flow started")

	return &Flow{
		ID:        id,
		URL:       c.authorizeURL(verifier, register, id),
		Register:  register,
		CreatedAt: now,
		ExpiresAt: now.Add(c.config.FlowTimeout),
	}, nil
}

// ExchangeFlow consumes the flow and exchanges code with its verifier. A flow
// can be exchanged once; a second call returns ErrFlowNotFound.
func (c *Client) ExchangeFlow(ctx context.Context, flowID, code string) (*Token, error) {
	data, err := c.cache.Take(ctx, flowKeyPrefix+flowID)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
		}
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	var rec flowRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}

	return c.exchange(ctx, code, rec.Verifier)
}

// FlowPending reports whether flowID is still waiting to be exchanged. It does
// not consume the flow, so a callback can reject an unknown state up front.
func (c *Client) FlowPending(ctx context.Context, flowID string) (bool, error) {
	ok, err := c.cache.Exists(ctx, flowKeyPrefix+flowID)
	if err != nil {
		return false, fmt.Errorf("failed to look up flow: %w", err)
	}
	return ok, nil
}
