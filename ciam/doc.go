// Package ciam is a client for a CIAM (customer identity and access
// management) tenant speaking OAuth2 and OpenID Connect.
//
// It builds the portal login, registration and logout URLs, exchanges
// authorization codes for tokens with PKCE, refreshes and revokes tokens,
// fetches the JWKS and provider metadata, verifies ID tokens and calls the
// userinfo endpoint with the current bearer token.
//
// # Quick Start
//
//	client, err := ciam.New(
//	    ciam.Credentials{ClientID: "app", TokenURI: "https://tenant.example.com/oauth2/token"},
//	    ciam.Config{
//	        UserDomain:  "https://tenant.example.com",
//	        RedirectURI: "https://app.example.com/callback",
//	    },
//	)
//
//	// redirect the user to client.AuthURL(), then on callback:
//	token, err := client.Exchange(ctx, code)
//	profile, err := client.UserInfo(ctx)
//
// # Environment Configuration
//
// Init and WithPrefix(p).New() read BEAVER_CIAM_* variables:
//
//	BEAVER_CIAM_CLIENT_ID=app
//	BEAVER_CIAM_TOKEN_URI=https://tenant.example.com/oauth2/token
//	BEAVER_CIAM_USER_DOMAIN=https://tenant.example.com
//	BEAVER_CIAM_REDIRECT_URI=https://app.example.com/callback
//	BEAVER_CIAM_AUTH_TYPE=OIDC_PKCE
//	BEAVER_CACHE_DRIVER=redis
//
// # Verifiers and Flows
//
// A Client holds one code verifier for its lifetime; AuthURL, RegisterURL
// and Exchange all use it, so a client serves a single authorization at a
// time. BeginFlow and ExchangeFlow give every authorization its own verifier,
// kept in the cache under the flow id (sent as state) and consumed on use.
//
// # Errors
//
// Failures reported by the service are *AuthError values carrying a Status.
// Calls needing a token fail with StatusUnauthenticated before any request
// when none is held. A 2xx response without a body wraps ErrProtocolViolation;
// a body that does not decode is a *DecodeError. Transport errors are wrapped
// and reachable with errors.Is and errors.As.
package ciam
