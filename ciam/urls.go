package ciam

import (
	"net/url"
	"strings"
)

// AuthURL returns the portal login URL. In PKCE mode it carries the challenge
// of the per-client verifier.
func (c *Client) AuthURL() string {
	return c.authorizeURL(c.verifier, false, "")
}

// RegisterURL is AuthURL with prompt=create, opening the sign-up page.
func (c *Client) RegisterURL() string {
	return c.authorizeURL(c.verifier, true, "")
}

// LogoutURL returns the portal logout URL. A non-empty override replaces the
// configured logout redirect.
func (c *Client) LogoutURL(override ...string) string {
	redirect := c.config.LogoutRedirectURL
	if len(override) > 0 && override[0] != "" {
		redirect = override[0]
	}

	q := url.Values{
		"client_id":           {c.creds.ClientID},
		"logout_redirect_uri": {redirect},
	}
	return c.config.UserDomain + "/logout?" + q.Encode()
}

func (c *Client) authorizeURL(verifier string, register bool, state string) string {
	q := url.Values{
		"scope":         {strings.Join(c.config.Scopes, " ")},
		"client_id":     {c.creds.ClientID},
		"redirect_uri":  {c.config.RedirectURI},
		"response_type": {"code"},
	}
	if c.config.AuthType == AuthTypePKCE {
		q.Set("code_challenge_method", ChallengeMethod)
		q.Set("code_challenge", CodeChallenge(verifier))
	}
	if register {
		q.Set("prompt", "create")
	}
	if state != "" {
		q.Set("state", state)
	}
	return c.config.UserDomain + "/oauth2/authorize?" + q.Encode()
}
