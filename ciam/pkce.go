package ciam

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// ChallengeMethod is the only code_challenge_method this client sends.
const ChallengeMethod = "S256"

// CodeChallenge derives the S256 challenge for verifier: SHA-256 of its UTF-8
// bytes, base64url encoded without padding.
func CodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// NewCodeVerifier generates a cryptographically random code verifier
func NewCodeVerifier() (string, error) {
	// 32 bytes encode to 43 characters, the RFC 7636 minimum
	data := make([]byte, 32)
	if _, err := rand.Read(data); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// ValidateCodeChallenge validates that a verifier matches a challenge
func ValidateCodeChallenge(verifier, challenge string) bool {
	return subtle.ConstantTimeCompare([]byte(CodeChallenge(verifier)), []byte(challenge)) == 1
}
