// Package ciamtest provides an in-process CIAM tenant for tests.
package ciamtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gobeaver/ciam-kit/ciam"
)

// Config configures the mock tenant
type Config struct {
	ClientID    string
	RedirectURI string
	// Issuer defaults to the server URL
	Issuer string
	KeyID  string

	TokenExpiry time.Duration
	// RotateRefreshTokens issues a new refresh token on every refresh grant
	RotateRefreshTokens bool
}

// AuthorizedCode is an issued authorization code
type AuthorizedCode struct {
	Code          string
	UserID        string
	RedirectURI   string
	Challenge     string
	ChallengeMode string
	ExpiresAt     time.Time
}

// IssuedToken is an access or refresh token handed out by the server
type IssuedToken struct {
	Value     string
	UserID    string
	ExpiresAt time.Time
}

// Response replaces the handler of a path with a fixed reply
type Response struct {
	Status      int
	Body        string
	ContentType string
}

// RecordedRequest is a request seen by the server
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Server simulates a CIAM tenant
type Server struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	mu            sync.Mutex
	config        Config
	codes         map[string]*AuthorizedCode
	accessTokens  map[string]*IssuedToken
	refreshTokens map[string]*IssuedToken
	revoked       map[string]time.Time
	users         map[string]*ciam.UserInfo
	overrides     map[string]Response
	latencies     map[string]time.Duration
	requests      []RecordedRequest
}

// NewServer starts a mock tenant. It panics if no signing key can be generated.
func NewServer(cfg Config) *Server {
	if cfg.ClientID == "" {
		cfg.ClientID = "test-client"
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "https://app.example.com/callback"
	}
	if cfg.KeyID == "" {
		cfg.KeyID = "test-key"
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = time.Hour
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("ciamtest: failed to generate key: %v", err))
	}

	s := &Server{
		key:           key,
		config:        cfg,
		codes:         make(map[string]*AuthorizedCode),
		accessTokens:  make(map[string]*IssuedToken),
		refreshTokens: make(map[string]*IssuedToken),
		revoked:       make(map[string]time.Time),
		users:         make(map[string]*ciam.UserInfo),
		overrides:     make(map[string]Response),
		latencies:     make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/authorize", s.handleAuthorize)
	mux.HandleFunc("/oauth2/token", s.handleToken)
	mux.HandleFunc("/oauth2/jwks", s.handleJWKS)
	mux.HandleFunc("/oauth2/revoke", s.handleRevoke)
	mux.HandleFunc("/userinfo", s.handleUserInfo)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/.well-known/openid-configuration", s.handleDiscovery)

	s.server = httptest.NewServer(s.intercept(mux))
	if s.config.Issuer == "" {
		s.config.Issuer = s.server.URL
	}
	return s
}

// URL returns the tenant base URL (the user domain)
func (s *Server) URL() string {
	return s.server.URL
}

// TokenURL returns the token endpoint URL
func (s *Server) TokenURL() string {
	return s.server.URL + "/oauth2/token"
}

// Issuer returns the iss claim of issued ID tokens
func (s *Server) Issuer() string {
	return s.config.Issuer
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}

// Credentials returns client credentials accepted by the server
func (s *Server) Credentials() ciam.Credentials {
	return ciam.Credentials{ClientID: s.config.ClientID, TokenURI: s.TokenURL()}
}

// ClientConfig returns a client configuration pointing at the server
func (s *Server) ClientConfig() ciam.Config {
	return ciam.Config{
		UserDomain:        s.server.URL,
		RedirectURI:       s.config.RedirectURI,
		LogoutRedirectURL: "https://app.example.com/bye",
		Issuer:            s.config.Issuer,
	}
}

// SetUserInfo sets the profile returned for a user
func (s *Server) SetUserInfo(userID string, info *ciam.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = info
}

// SetResponse makes path reply with a fixed status and body
func (s *Server) SetResponse(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = resp
}

// ClearResponses removes all fixed replies
func (s *Server) ClearResponses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = make(map[string]Response)
}

// SetLatency delays every reply on path
func (s *Server) SetLatency(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[path] = d
}

// Requests returns the requests seen so far
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests hit path
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request to path
func (s *Server) LastRequest(path string) (RecordedRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

// IsRevoked reports whether token was revoked
func (s *Server) IsRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok
}

// IssueCode issues an authorization code bound to an S256 challenge. An
// empty challenge issues a code for the plain grant.
func (s *Server) IssueCode(userID, challenge string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueCodeLocked(userID, s.config.RedirectURI, challenge, ciam.ChallengeMethod)
}

func (s *Server) issueCodeLocked(userID, redirectURI, challenge, method string) string {
	code := "code_" + uuid.NewString()
	s.codes[code] = &AuthorizedCode{
		Code:          code,
		UserID:        userID,
		RedirectURI:   redirectURI,
		Challenge:     challenge,
		ChallengeMode: method,
		ExpiresAt:     time.Now().Add(10 * time.Minute),
	}
	return code
}

// Authorize plays the user signing in at authURL and returns the code and
// state the tenant redirects back with.
func (s *Server) Authorize(authURL string) (code, state string, err error) {
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(authURL)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", "", fmt.Errorf("ciamtest: authorize returned %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return "", "", err
	}
	return loc.Query().Get("code"), loc.Query().Get("state"), nil
}

// SignIDToken signs claims with the server key
func (s *Server) SignIDToken(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.config.KeyID
	return token.SignedString(s.key)
}

func (s *Server) idToken(userID string, now time.Time) (string, error) {
	return s.SignIDToken(jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   userID,
		Audience:  jwt.ClaimStrings{s.config.ClientID},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiry)),
	})
}

// intercept records every request and applies latencies and fixed replies.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		}
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			rec.Form = r.PostForm
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		latency := s.latencies[r.URL.Path]
		override, overridden := s.overrides[r.URL.Path]
		s.mu.Unlock()

		if latency > 0 {
			time.Sleep(latency)
		}
		if overridden {
			if override.ContentType != "" {
				w.Header().Set("Content-Type", override.ContentType)
			}
			w.WriteHeader(override.Status)
			_, _ = w.Write([]byte(override.Body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != s.config.ClientID {
		writeError(w, http.StatusBadRequest, ciam.StatusPermissionDenied, "unknown client_id")
		return
	}
	if q.Get("response_type") != "code" {
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "unsupported response_type")
		return
	}
	challenge := q.Get("code_challenge")
	method := q.Get("code_challenge_method")
	if challenge != "" && method != ciam.ChallengeMethod {
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "unsupported code_challenge_method")
		return
	}

	redirectURI := q.Get("redirect_uri")
	s.mu.Lock()
	code := s.issueCodeLocked("test_user", redirectURI, challenge, method)
	s.mu.Unlock()

	back := url.Values{"code": {code}}
	if state := q.Get("state"); state != "" {
		back.Set("state", state)
	}
	http.Redirect(w, r, redirectURI+"?"+back.Encode(), http.StatusFound)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ciam.StatusFailedPrecondition, "POST required")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "invalid form")
		return
	}
	if r.PostForm.Get("client_id") != s.config.ClientID {
		writeError(w, http.StatusUnauthorized, ciam.StatusUnauthenticated, "invalid client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		s.handleRefreshTokenGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "unsupported grant_type")
	}
}

func (s *Server) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	s.mu.Lock()
	code, ok := s.codes[r.PostForm.Get("code")]
	if ok {
		// codes are single use even when the exchange fails
		delete(s.codes, code.Code)
	}
	s.mu.Unlock()

	switch {
	case !ok || now.After(code.ExpiresAt):
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "invalid authorization code")
		return
	case code.RedirectURI != r.PostForm.Get("redirect_uri"):
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "redirect_uri mismatch")
		return
	case code.Challenge != "" && !ciam.ValidateCodeChallenge(r.PostForm.Get("code_verifier"), code.Challenge):
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "PKCE verification failed")
		return
	}

	idToken, err := s.idToken(code.UserID, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ciam.StatusInternal, err.Error())
		return
	}

	s.mu.Lock()
	access := s.issueLocked(s.accessTokens, "at_", code.UserID, now.Add(s.config.TokenExpiry))
	refresh := s.issueLocked(s.refreshTokens, "rt_", code.UserID, now.Add(30*24*time.Hour))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, ciam.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		ExpiresIn:    int(s.config.TokenExpiry.Seconds()),
		IDToken:      idToken,
		Scope:        "openid",
	})
}

func (s *Server) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	value := r.PostForm.Get("refresh_token")

	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.refreshTokens[value]
	if _, revoked := s.revoked[value]; !ok || revoked || now.After(rt.ExpiresAt) {
		writeError(w, http.StatusBadRequest, ciam.StatusFailedPrecondition, "invalid refresh token")
		return
	}

	resp := ciam.Token{
		AccessToken: s.issueLocked(s.accessTokens, "at_", rt.UserID, now.Add(s.config.TokenExpiry)),
		TokenType:   "Bearer",
		ExpiresIn:   int(s.config.TokenExpiry.Seconds()),
		Scope:       "openid",
	}
	if s.config.RotateRefreshTokens {
		delete(s.refreshTokens, value)
		resp.RefreshToken = s.issueLocked(s.refreshTokens, "rt_", rt.UserID, rt.ExpiresAt)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) issueLocked(store map[string]*IssuedToken, prefix, userID string, exp time.Time) string {
	value := prefix + uuid.NewString()
	store[value] = &IssuedToken{Value: value, UserID: userID, ExpiresAt: exp}
	return value
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeError(w, http.StatusUnauthorized, ciam.StatusUnauthenticated, "missing bearer token")
		return
	}

	s.mu.Lock()
	at, ok := s.accessTokens[bearer]
	var info *ciam.UserInfo
	if ok {
		info = s.users[at.UserID]
	}
	s.mu.Unlock()

	if !ok || time.Now().After(at.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, ciam.StatusUnauthenticated, "invalid access token")
		return
	}
	if info == nil {
		info = &ciam.UserInfo{Sub: at.UserID}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ciam.JWKS{
		Keys: []ciam.JSONWebKey{ciam.NewJSONWebKey(s.config.KeyID, &s.key.PublicKey)},
	})
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	base := s.server.URL
	writeJSON(w, http.StatusOK, ciam.ProviderMetadata{
		Issuer:                            s.config.Issuer,
		AuthorizationEndpoint:             base + "/oauth2/authorize",
		TokenEndpoint:                     base + "/oauth2/token",
		TokenEndpointAuthMethodsSupported: []string{"none"},
		JWKSURI:                           base + "/oauth2/jwks",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   []string{"openid"},
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != s.config.ClientID {
		writeError(w, http.StatusBadRequest, ciam.StatusPermissionDenied, "unknown client_id")
		return
	}
	if token := q.Get("token"); token != "" {
		s.mu.Lock()
		s.revoked[token] = time.Now()
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("logout_redirect_uri")
	if target == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, st ciam.Status, message string) {
	body, _ := ciam.MarshalAuthError(&ciam.AuthError{Status: st, Code: status, Message: message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
