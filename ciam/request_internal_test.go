package ciam

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emptyResult struct {
	Sub string `json:"sub"`
}

func TestDecodeResponse(t *testing.T) {
	t.Run("NoContentDecodesEmptyObject", func(t *testing.T) {
		out, err := decodeResponse[emptyResult](&response{status: 204})
		require.NoError(t, err)
		assert.Equal(t, emptyResult{}, *out)

		m, err := decodeResponse[map[string]interface{}](&response{status: 204})
		require.NoError(t, err)
		assert.Empty(t, *m)
	})

	t.Run("EmptySuccessBodyIsProtocolViolation", func(t *testing.T) {
		for _, resp := range []*response{
			{status: 200},
			{status: 201, body: []byte{}},
			{status: 200, body: []byte(`{"sub":"x"}`), readErr: errors.New("connection reset")},
		} {
			out, err := decodeResponse[emptyResult](resp)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			assert.ErrorIs(t, err, ErrMissingBody)
		}
	})

	t.Run("UndecodableSuccessIsDecodeError", func(t *testing.T) {
		_, err := decodeResponse[emptyResult](&response{status: 200, body: []byte("<html>")})

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, "ciam.emptyResult", decodeErr.Type)

		var authErr *AuthError
		assert.False(t, errors.As(err, &authErr))
	})

	t.Run("StructuredFailure", func(t *testing.T) {
		body := []byte(`{"error":{"status":"PERMISSION_DENIED","code":403,"message":"nope"}}`)
		_, err := decodeResponse[emptyResult](&response{status: 403, body: body})

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, StatusPermissionDenied, authErr.Status)
		assert.Equal(t, 403, authErr.Code)
		assert.Equal(t, "nope", authErr.Message)

		tests := []struct {
			body    string
			message string
		}{
			{`{"error":{}}`, ""},
			{`{"error":{"message":"x"}}`, "x"},
		}
		for _, tt := range tests {
			_, err := decodeResponse[emptyResult](&response{status: 400, body: []byte(tt.body)})

			require.ErrorAs(t, err, &authErr, tt.body)
			assert.Equal(t, StatusUnknown, authErr.Status, tt.body)
			assert.Equal(t, 400, authErr.Code, tt.body)
			assert.Equal(t, tt.message, authErr.Message, tt.body)
			assert.Equal(t, string(StatusUnknown), errorType(err), tt.body)
		}
	})

	t.Run("UnstructuredFailure", func(t *testing.T) {
		tests := []struct {
			resp    *response
			code    int
			message string
		}{
			{&response{status: 500, body: []byte("internal error")}, 500, "internal error"},
			{&response{status: 502, body: []byte(`{"error":"bad_gateway"}`)}, 502, `{"error":"bad_gateway"}`},
			{&response{status: 404}, 404, ""},
			{&response{status: 503, body: []byte("partial"), readErr: errors.New("eof")}, 503, ""},
		}
		for _, tt := range tests {
			_, err := decodeResponse[emptyResult](tt.resp)

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, StatusUnknown, authErr.Status)
			assert.Equal(t, tt.code, authErr.Code)
			assert.Equal(t, tt.message, authErr.Message)
		}
	})
}

func TestResolve(t *testing.T) {
	c := &Client{config: Config{UserDomain: "https://tenant.example.com"}}

	got, err := c.resolve("/userinfo", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.example.com/userinfo", got)

	got, err = c.resolve("oauth2/jwks", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.example.com/oauth2/jwks", got)

	got, err = c.resolve("https://auth.example.com/token?tenant=a", url.Values{"x": {"1 2"}})
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/token?tenant=a&x=1+2", got)

	got, err = c.resolve("/oauth2/revoke", url.Values{"client_id": {"app"}, "token": {""}})
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.example.com/oauth2/revoke?client_id=app&token=", got)
}

func TestTokenStatePhase(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	var empty TokenState
	assert.Equal(t, PhaseUnauthenticated, empty.Phase())
	assert.True(t, empty.ExpiresAt().IsZero())

	st := TokenState{Token: Token{AccessToken: "a", ExpiresIn: 3600}, IssuedAt: issued}
	assert.Equal(t, PhaseAuthenticated, st.Phase())
	assert.Equal(t, issued.Add(time.Hour), st.ExpiresAt())
	assert.False(t, st.ExpiresWithin(time.Minute, issued.Add(58*time.Minute)))
	assert.True(t, st.ExpiresWithin(time.Minute, issued.Add(59*time.Minute)))
	assert.True(t, st.ExpiresWithin(0, issued.Add(2*time.Hour)))

	st.Revoked = true
	assert.Equal(t, PhaseRevoked, st.Phase())
	assert.Equal(t, "revoked", st.Phase().String())
}

func TestTokenStoreRevoke(t *testing.T) {
	var ts tokenStore
	_, gen := ts.snapshot()
	assert.False(t, ts.revokeIf(gen))
	assert.Equal(t, PhaseUnauthenticated, ts.load().Phase())

	ts.store(TokenState{Token: Token{AccessToken: "a", RefreshToken: "r"}})
	_, gen = ts.snapshot()
	assert.True(t, ts.revokeIf(gen))
	assert.Equal(t, PhaseRevoked, ts.load().Phase())

	ts.store(TokenState{Token: Token{AccessToken: "b"}})
	assert.Equal(t, PhaseAuthenticated, ts.load().Phase())
}

func TestTokenStoreStaleWrites(t *testing.T) {
	var ts tokenStore
	ts.store(TokenState{Token: Token{AccessToken: "a", RefreshToken: "r1"}})
	_, gen := ts.snapshot()

	ts.store(TokenState{Token: Token{AccessToken: "b", RefreshToken: "r2"}})

	assert.False(t, ts.revokeIf(gen))
	assert.False(t, ts.storeIf(gen, TokenState{Token: Token{AccessToken: "c"}}))
	st := ts.load()
	assert.Equal(t, "b", st.Token.AccessToken)
	assert.Equal(t, PhaseAuthenticated, st.Phase())

	_, gen = ts.snapshot()
	assert.True(t, ts.storeIf(gen, TokenState{Token: Token{AccessToken: "c"}}))
	assert.Equal(t, "c", ts.load().Token.AccessToken)
}

func TestAuthTypeNormalize(t *testing.T) {
	assert.Equal(t, AuthTypePKCE, AuthType("").normalize())
	assert.Equal(t, AuthTypePKCE, AuthType("pkce").normalize())
	assert.Equal(t, AuthTypePKCE, AuthType("OIDC_PKCE").normalize())
	assert.Equal(t, AuthTypeNormal, AuthType("normal").normalize())
	assert.Equal(t, AuthType("IMPLICIT"), AuthType("IMPLICIT").normalize())
}
