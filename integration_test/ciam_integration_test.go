package integration_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/gobeaver/ciam-kit/cache"
	"github.com/gobeaver/ciam-kit/ciam"
	"github.com/gobeaver/ciam-kit/ciam/ciamtest"
	"github.com/gobeaver/ciam-kit/config"
)

func setTenantEnv(t *testing.T, prefix string, srv *ciamtest.Server) {
	t.Helper()
	t.Setenv(prefix+"CIAM_CLIENT_ID", "test-client")
	t.Setenv(prefix+"CIAM_TOKEN_URI", srv.TokenURL())
	t.Setenv(prefix+"CIAM_USER_DOMAIN", srv.URL())
	t.Setenv(prefix+"CIAM_REDIRECT_URI", "https://app.example.com/callback")
}

// TestDefaultPrefix tests that BEAVER_ variables configure both the client and its cache
func TestDefaultPrefix(t *testing.T) {
	srv := ciamtest.NewServer(ciamtest.Config{})
	defer srv.Close()
	setTenantEnv(t, "BEAVER_", srv)
	t.Setenv("BEAVER_CACHE_DRIVER", "memory")

	cacheCfg, err := cache.GetConfig()
	if err != nil {
		t.Fatalf("Failed to load cache config: %v", err)
	}
	if cacheCfg.Driver != "memory" {
		t.Errorf("Expected cache driver 'memory', got '%s'", cacheCfg.Driver)
	}

	creds, err := ciam.GetCredentials()
	if err != nil {
		t.Fatalf("Failed to load credentials: %v", err)
	}
	if creds.TokenURI != srv.TokenURL() {
		t.Errorf("Expected token URI '%s', got '%s'", srv.TokenURL(), creds.TokenURI)
	}
}

// TestEmptyPrefix tests loading unprefixed variables
func TestEmptyPrefix(t *testing.T) {
	t.Setenv("CIAM_CLIENT_ID", "bare")
	t.Setenv("CIAM_TOKEN_URI", "https://tenant.example.com/oauth2/token")

	creds, err := ciam.GetCredentials(config.LoadOptions{Prefix: ""})
	if err != nil {
		t.Fatalf("Failed to load credentials with empty prefix: %v", err)
	}
	if creds.ClientID != "bare" {
		t.Errorf("Expected client id 'bare', got '%s'", creds.ClientID)
	}
}

// TestFlowAcrossInstances starts a flow on one client and finishes it on
// another sharing the same redis, as two processes behind a load balancer would.
func TestFlowAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := ciamtest.NewServer(ciamtest.Config{})
	defer srv.Close()

	for _, prefix := range []string{"NODE_A_", "NODE_B_"} {
		setTenantEnv(t, prefix, srv)
		t.Setenv(prefix+"CACHE_DRIVER", "redis")
		t.Setenv(prefix+"CACHE_URL", "redis://"+mr.Addr())
		t.Setenv(prefix+"CACHE_KEY_PREFIX", "ciam:")
	}

	nodeA, err := ciam.WithPrefix("NODE_A_").New()
	if err != nil {
		t.Fatalf("Failed to create node A: %v", err)
	}
	defer nodeA.Close()

	nodeB, err := ciam.WithPrefix("NODE_B_").New()
	if err != nil {
		t.Fatalf("Failed to create node B: %v", err)
	}
	defer nodeB.Close()

	ctx := context.Background()
	flow, err := nodeA.BeginFlow(ctx, false)
	if err != nil {
		t.Fatalf("BeginFlow failed: %v", err)
	}
	if !mr.Exists("ciam:flow:" + flow.ID) {
		t.Fatal("flow should be stored in redis")
	}

	code, state, err := srv.Authorize(flow.URL)
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	token, err := nodeB.ExchangeFlow(ctx, state, code)
	if err != nil {
		t.Fatalf("ExchangeFlow on node B failed: %v", err)
	}
	if token.AccessToken == "" {
		t.Error("Expected an access token")
	}
	if nodeB.TokenState().Phase() != ciam.PhaseAuthenticated {
		t.Errorf("Expected node B to be authenticated, got %s", nodeB.TokenState().Phase())
	}
	if nodeA.TokenState().Phase() != ciam.PhaseUnauthenticated {
		t.Errorf("Token state is per client, node A got %s", nodeA.TokenState().Phase())
	}

	if _, err := nodeA.ExchangeFlow(ctx, state, code); err == nil {
		t.Error("Flow must not be exchangeable twice")
	}

	info, err := nodeB.UserInfo(ctx)
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	if info.Sub != "test_user" {
		t.Errorf("Expected sub 'test_user', got '%s'", info.Sub)
	}
}

// TestSharedDiscoveryCache tests that one instance's JWKS fetch serves the other
func TestSharedDiscoveryCache(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := ciamtest.NewServer(ciamtest.Config{})
	defer srv.Close()

	for _, prefix := range []string{"EDGE_1_", "EDGE_2_"} {
		setTenantEnv(t, prefix, srv)
		t.Setenv(prefix+"CIAM_DISCOVERY_CACHE_TTL", "5m")
		t.Setenv(prefix+"CACHE_DRIVER", "redis")
		t.Setenv(prefix+"CACHE_URL", "redis://"+mr.Addr())
		t.Setenv(prefix+"CACHE_NAMESPACE", "tenant")
	}

	ctx := context.Background()
	for _, prefix := range []string{"EDGE_1_", "EDGE_2_"} {
		client, err := ciam.WithPrefix(prefix).New()
		if err != nil {
			t.Fatalf("Failed to create %s client: %v", prefix, err)
		}
		if _, err := client.JWKS(ctx); err != nil {
			t.Fatalf("JWKS via %s failed: %v", prefix, err)
		}
		client.Close()
	}

	if n := srv.RequestCount("/oauth2/jwks"); n != 1 {
		t.Errorf("Expected 1 JWKS request, got %d", n)
	}
	if !mr.Exists("tenant:jwks") {
		t.Error("JWKS should be cached under the namespace")
	}
}
