package ciam

// UserInfo is the profile returned by the userinfo endpoint.
type UserInfo struct {
	Sub         string  `json:"sub"`
	UserName    *string `json:"userName,omitempty"`
	Name        *string `json:"name,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Email       *string `json:"email,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Address     *string `json:"address,omitempty"`
}

// JWKS is the tenant's JSON Web Key Set.
type JWKS struct {
	Keys []JSONWebKey `json:"keys"`
}

// JSONWebKey is a single RSA public key.
type JSONWebKey struct {
	Kty string `json:"kty"`
	E   string `json:"e"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
}

// Key returns the key with the given kid.
func (s *JWKS) Key(kid string) (JSONWebKey, bool) {
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return JSONWebKey{}, false
}

// ProviderMetadata is the OpenID provider configuration document.
type ProviderMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}
