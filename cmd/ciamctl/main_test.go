package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/ciam-kit/ciam"
	"github.com/gobeaver/ciam-kit/ciam/ciamtest"
)

func TestRun(t *testing.T) {
	srv := ciamtest.NewServer(ciamtest.Config{})
	defer srv.Close()

	t.Setenv("CTL_CIAM_CLIENT_ID", "test-client")
	t.Setenv("CTL_CIAM_TOKEN_URI", srv.TokenURL())
	t.Setenv("CTL_CIAM_USER_DOMAIN", srv.URL())
	t.Setenv("CTL_CIAM_REDIRECT_URI", "https://app.example.com/callback")

	log := zerolog.Nop()
	flags := []string{"-prefix", "CTL_"}

	for _, cmd := range []string{"authurl", "logouturl", "jwks", "metadata", "health", "revoke"} {
		t.Run(cmd, func(t *testing.T) {
			assert.NoError(t, run(cmd, flags, log))
		})
	}

	t.Run("exchange", func(t *testing.T) {
		verifier, err := ciam.NewCodeVerifier()
		require.NoError(t, err)
		code := srv.IssueCode("test_user", ciam.CodeChallenge(verifier))

		args := append([]string{"-code", code, "-verifier", verifier}, flags...)
		assert.NoError(t, run("exchange", args, log))
	})

	t.Run("flow", func(t *testing.T) {
		args := append([]string{"-flow-id", "unknown"}, flags...)
		assert.NoError(t, run("flow", args, log))
	})

	t.Run("missing flag", func(t *testing.T) {
		assert.Error(t, run("exchange", flags, log))
		assert.Error(t, run("userinfo", flags, log))
		assert.Error(t, run("flow", flags, log))
	})

	t.Run("server error", func(t *testing.T) {
		args := append([]string{"-access-token", "nope"}, flags...)
		err := run("userinfo", args, log)
		assert.Equal(t, ciam.StatusUnauthenticated, ciam.StatusOf(err))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, run("bogus", flags, log))
	})
}
