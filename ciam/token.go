package ciam

import (
	"sync"
	"time"
)

// Token is the token endpoint response.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Phase is the authentication state of a client.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticated
	PhaseRevoked
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRevoked:
		return "revoked"
	default:
		return "unauthenticated"
	}
}

// TokenState is an immutable snapshot of the client's token. The client
// replaces it wholesale, so the access token, refresh token and issuance
// time read from one snapshot always belong together.
type TokenState struct {
	Token    Token
	IssuedAt time.Time
	Revoked  bool
}

// Phase reports the authentication phase of the snapshot.
func (s TokenState) Phase() Phase {
	switch {
	case s.Revoked:
		return PhaseRevoked
	case s.Token.AccessToken != "":
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// ExpiresAt returns the access token expiry, or the zero time when the
// server did not report expires_in.
func (s TokenState) ExpiresAt() time.Time {
	if s.Token.ExpiresIn <= 0 || s.IssuedAt.IsZero() {
		return time.Time{}
	}
	return s.IssuedAt.Add(time.Duration(s.Token.ExpiresIn) * time.Second)
}

// ExpiresWithin reports whether the token expires within d of now.
func (s TokenState) ExpiresWithin(d time.Duration, now time.Time) bool {
	exp := s.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !now.Add(d).Before(exp)
}

// tokenStore holds the current state. Every write bumps gen, so a caller
// that read a snapshot can commit only if nothing was stored since.
type tokenStore struct {
	mu    sync.RWMutex
	state TokenState
	gen   uint64
}

func (ts *tokenStore) load() TokenState {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.state
}

func (ts *tokenStore) snapshot() (TokenState, uint64) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.state, ts.gen
}

func (ts *tokenStore) store(state TokenState) {
	ts.mu.Lock()
	ts.state = state
	ts.gen++
	ts.mu.Unlock()
}

// storeIf replaces the state only if it is still at generation gen.
func (ts *tokenStore) storeIf(gen uint64, state TokenState) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.gen != gen {
		return false
	}
	ts.state = state
	ts.gen++
	return true
}

// revokeIf marks the token held at generation gen revoked. Without a token,
// or once a newer token was stored, the state is left alone.
func (ts *tokenStore) revokeIf(gen uint64) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.gen != gen {
		return false
	}
	if ts.state.Token.AccessToken == "" && ts.state.Token.RefreshToken == "" {
		return false
	}
	ts.state.Revoked = true
	ts.gen++
	return true
}
