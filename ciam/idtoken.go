package ciam

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidIDToken indicates an ID token failed verification
	ErrInvalidIDToken = errors.New("invalid id token")

	// ErrSigningKeyNotFound indicates no JWKS key matched the token's kid
	ErrSigningKeyNotFound = errors.New("signing key not found")
)

// IDTokenClaims are the claims of a verified ID token.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Nonce    string `json:"nonce,omitempty"`
	UserName string `json:"userName,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// VerifyIDToken checks an RS256 ID token against the tenant JWKS. The
// audience must be the client id; the issuer is checked when Config.Issuer is set.
func (c *Client) VerifyIDToken(ctx context.Context, raw string) (*IDTokenClaims, error) {
	keys, err := c.JWKS(ctx)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(c.creds.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.config.Issuer))
	}

	claims := &IDTokenClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := keys.Key(kid)
		if !ok {
			if kid != "" || len(keys.Keys) != 1 {
				return nil, fmt.Errorf("%w: kid %q", ErrSigningKeyNotFound, kid)
			}
			key = keys.Keys[0]
		}
		return key.RSAPublicKey()
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}
	return claims, nil
}

// RSAPublicKey decodes the key's modulus and exponent.
func (k JSONWebKey) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

// NewJSONWebKey describes an RSA public key as a JWK.
func NewJSONWebKey(kid string, pub *rsa.PublicKey) JSONWebKey {
	return JSONWebKey{
		Kty: "RSA",
		Kid: kid,
		Alg: jwt.SigningMethodRS256.Alg(),
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
