package ciam_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/ciam-kit/ciam"
)

func TestCodeChallenge(t *testing.T) {
	tests := []struct {
		verifier string
		want     string
	}{
		{"test-verifier", "JBbiqONGWPaAmwXk_8bT6UnlPfrn65D32eZlJS-zGG0"},
		// RFC 7636 appendix B
		{"dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk", "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"},
	}

	for _, tt := range tests {
		t.Run(tt.verifier, func(t *testing.T) {
			got := ciam.CodeChallenge(tt.verifier)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "=")
			assert.NotContains(t, got, "+")
			assert.NotContains(t, got, "/")
			assert.Equal(t, got, ciam.CodeChallenge(tt.verifier), "challenge must be deterministic")
		})
	}
}

func TestNewCodeVerifier(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		v, err := ciam.NewCodeVerifier()
		require.NoError(t, err)
		assert.Len(t, v, 43)
		assert.Regexp(t, `^[A-Za-z0-9_-]+$`, v)
		assert.False(t, seen[v], "verifier repeated")
		seen[v] = true
	}
}

func TestValidateCodeChallenge(t *testing.T) {
	v, err := ciam.NewCodeVerifier()
	require.NoError(t, err)

	assert.True(t, ciam.ValidateCodeChallenge(v, ciam.CodeChallenge(v)))
	assert.False(t, ciam.ValidateCodeChallenge(v+"x", ciam.CodeChallenge(v)))
	assert.False(t, ciam.ValidateCodeChallenge(v, v))
}
