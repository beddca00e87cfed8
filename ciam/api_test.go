package ciam_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/ciam-kit/cache"
	"github.com/gobeaver/ciam-kit/ciam"
	"github.com/gobeaver/ciam-kit/ciam/ciamtest"
)

func TestProviderMetadata(t *testing.T) {
	client, srv := newTestClient(t, nil)

	md, err := client.ProviderMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.Issuer(), md.Issuer)
	assert.Equal(t, srv.TokenURL(), md.TokenEndpoint)
	assert.Equal(t, srv.URL()+"/oauth2/jwks", md.JWKSURI)
	assert.Contains(t, md.GrantTypesSupported, "refresh_token")

	req, ok := srv.LastRequest("/.well-known/openid-configuration")
	require.True(t, ok)
	assert.Empty(t, req.Header.Get("Authorization"), "discovery is anonymous")
}

func TestDiscoveryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Disabled", func(t *testing.T) {
		client, srv := newTestClient(t, nil)
		for i := 0; i < 3; i++ {
			_, err := client.JWKS(ctx)
			require.NoError(t, err)
		}
		assert.Equal(t, 3, srv.RequestCount("/oauth2/jwks"))
	})

	t.Run("Enabled", func(t *testing.T) {
		mem := cache.NewMemory()
		t.Cleanup(func() { _ = mem.Close() })
		client, srv := newTestClient(t, func(c *ciam.Config) { c.DiscoveryCacheTTL = time.Minute }, ciam.WithCache(mem))

		for i := 0; i < 3; i++ {
			_, err := client.JWKS(ctx)
			require.NoError(t, err)
			_, err = client.ProviderMetadata(ctx)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, srv.RequestCount("/oauth2/jwks"))
		assert.Equal(t, 1, srv.RequestCount("/.well-known/openid-configuration"))

		exists, err := mem.Exists(ctx, "jwks")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("FailuresNotCached", func(t *testing.T) {
		client, srv := newTestClient(t, func(c *ciam.Config) { c.DiscoveryCacheTTL = time.Minute })
		srv.SetResponse("/oauth2/jwks", ciamtest.Response{Status: 503, Body: "maintenance"})

		_, err := client.JWKS(ctx)
		require.Error(t, err)

		srv.ClearResponses()
		keys, err := client.JWKS(ctx)
		require.NoError(t, err)
		assert.Len(t, keys.Keys, 1)
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := ciam.NewDefaultMetricsCollector()
	client, srv := newTestClient(t, nil, ciam.WithMetrics(metrics))

	signIn(t, client, srv)
	_, err := client.Refresh(ctx, "")
	require.NoError(t, err)
	_, err = client.UserInfo(ctx)
	require.NoError(t, err)

	srv.SetResponse("/userinfo", ciamtest.Response{
		Status: 404,
		Body:   `{"error":{"status":"NOT_FOUND","code":404,"message":"gone"}}`,
	})
	_, err = client.UserInfo(ctx)
	require.Error(t, err)

	m := metrics.GetMetrics()
	assert.Equal(t, ciam.MetricCounter{Total: 1, Success: 1}, m.TokenExchanges)
	assert.Equal(t, ciam.MetricCounter{Total: 1, Success: 1}, m.TokenRefreshes)
	assert.Equal(t, ciam.MetricCounter{Total: 2, Success: 1, Failed: 1}, m.Operations["GET /userinfo"])
	assert.Equal(t, int64(1), m.Errors["GET /userinfo:NOT_FOUND"])
	assert.Equal(t, int64(1), m.ResponseTimes["token_exchange"].Count)

	metrics.Reset()
	assert.Zero(t, metrics.GetMetrics().APIRequests.Total)
}

func TestHealthCheck(t *testing.T) {
	client, srv := newTestClient(t, nil)

	health := client.HealthCheck(context.Background())
	assert.Equal(t, ciam.HealthStatusHealthy, health.Status)
	assert.Equal(t, ciam.HealthStatusHealthy, health.Checks["provider"].Status)
	assert.Equal(t, ciam.HealthStatusHealthy, health.Checks["cache"].Status)

	srv.Close()
	health = client.HealthCheck(context.Background())
	assert.Equal(t, ciam.HealthStatusUnhealthy, health.Status)
	assert.NotEmpty(t, health.Checks["provider"].Error)
}

func TestBuilderFromEnvironment(t *testing.T) {
	srv := ciamtest.NewServer(ciamtest.Config{ClientID: "env-app"})
	defer srv.Close()

	t.Setenv("CIAMTEST_CIAM_CLIENT_ID", "env-app")
	t.Setenv("CIAMTEST_CIAM_TOKEN_URI", srv.TokenURL())
	t.Setenv("CIAMTEST_CIAM_USER_DOMAIN", srv.URL())
	t.Setenv("CIAMTEST_CIAM_REDIRECT_URI", "https://app.example.com/callback")
	t.Setenv("CIAMTEST_CIAM_SCOPES", "openid, profile")
	t.Setenv("CIAMTEST_CIAM_AUTH_TYPE", "PKCE")
	t.Setenv("CIAMTEST_CIAM_HTTP_TIMEOUT", "5s")

	client, err := ciam.WithPrefix("CIAMTEST_").New()
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "env-app", client.Credentials().ClientID)
	assert.Equal(t, []string{"openid", "profile"}, client.Config().Scopes)
	assert.Equal(t, ciam.AuthTypePKCE, client.Config().AuthType)
	assert.Equal(t, 5*time.Second, client.Config().HTTPTimeout)
	assert.Equal(t, 10*time.Minute, client.Config().FlowTimeout)

	code, _, err := srv.Authorize(client.AuthURL())
	require.NoError(t, err)
	_, err = client.Exchange(context.Background(), code)
	require.NoError(t, err)
}

func TestBuilderMissingRequired(t *testing.T) {
	t.Setenv("CIAMMISSING_CIAM_CLIENT_ID", "app")

	_, err := ciam.WithPrefix("CIAMMISSING_").New()
	assert.Error(t, err)
}

func TestGlobalInstance(t *testing.T) {
	ciam.Reset()
	t.Cleanup(ciam.Reset)

	_, err := ciam.Default()
	assert.ErrorIs(t, err, ciam.ErrNotInitialized)

	srv := ciamtest.NewServer(ciamtest.Config{})
	defer srv.Close()
	t.Setenv("BEAVER_CIAM_CLIENT_ID", "test-client")
	t.Setenv("BEAVER_CIAM_TOKEN_URI", srv.TokenURL())
	t.Setenv("BEAVER_CIAM_USER_DOMAIN", srv.URL())
	t.Setenv("BEAVER_CIAM_REDIRECT_URI", "https://app.example.com/callback")

	require.NoError(t, ciam.Init())
	require.NotNil(t, ciam.CIAM())

	c, err := ciam.Default()
	require.NoError(t, err)
	assert.Same(t, ciam.CIAM(), c)
	assert.Equal(t, "test-client", c.Credentials().ClientID)
}
