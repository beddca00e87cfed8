// Command ciamctl drives a CIAM tenant from BEAVER_CIAM_* environment
// configuration.
//
//	ciamctl authurl
//	ciamctl exchange -code <code> -verifier <verifier>
//	ciamctl exchange -code <code> -flow-id <state>
//	ciamctl flow -flow-id <state>
//	ciamctl userinfo -access-token <token>
//	ciamctl jwks | metadata | health
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/gobeaver/ciam-kit/ciam"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := run(os.Args[1], os.Args[2:], log); err != nil {
		var authErr *ciam.AuthError
		if errors.As(err, &authErr) {
			log.Error().Str("status", string(authErr.Status)).Int("code", authErr.Code).Msg(authErr.Message)
		} else {
			log.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ciamctl <command> [flags]

commands:
  authurl     print the login URL (-register for sign-up, -flow to keep a
              per-flow verifier in the cache, redis when run across processes)
  logouturl   print the logout URL (-redirect to override)
  exchange    exchange -code for tokens (-verifier or -flow-id from authurl)
  flow        report whether -flow-id is still pending
  refresh     refresh with -refresh-token
  revoke      revoke -refresh-token
  userinfo    fetch the profile for -access-token
  verify      verify -id-token against the tenant JWKS
  jwks        fetch the signing keys
  metadata    fetch the OpenID provider configuration
  health      check provider and cache`)
}

func run(cmd string, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	prefix := fs.String("prefix", "BEAVER_", "environment variable prefix")
	timeout := fs.Duration("timeout", 30*time.Second, "overall command timeout")
	debug := fs.Bool("debug", false, "log every request")
	register := fs.Bool("register", false, "authurl: open the registration page")
	flow := fs.Bool("flow", false, "authurl: start a flow with its own verifier")
	flowID := fs.String("flow-id", "", "exchange/flow: flow id (the state parameter)")
	verifier := fs.String("verifier", "", "exchange: code verifier printed by authurl")
	code := fs.String("code", "", "exchange: authorization code")
	refreshToken := fs.String("refresh-token", "", "refresh/revoke: refresh token")
	accessToken := fs.String("access-token", "", "userinfo: access token")
	idToken := fs.String("id-token", "", "verify: ID token")
	redirect := fs.String("redirect", "", "logouturl: logout redirect override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}

	opts := []ciam.Option{ciam.WithLogger(log.Level(level))}
	if *verifier != "" {
		opts = append(opts, ciam.WithCodeVerifier(*verifier))
	}
	client, err := ciam.WithPrefix(*prefix).New(opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "authurl":
		if *flow {
			f, err := client.BeginFlow(ctx, *register)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{"url": f.URL, "flow_id": f.ID, "expires_at": f.ExpiresAt})
		}
		u := client.AuthURL()
		if *register {
			u = client.RegisterURL()
		}
		return printJSON(map[string]string{"url": u, "verifier": client.CodeVerifier()})

	case "logouturl":
		fmt.Println(client.LogoutURL(*redirect))
		return nil

	case "exchange":
		if *code == "" {
			return errors.New("exchange requires -code")
		}
		if *flowID != "" {
			return printResult(client.ExchangeFlow(ctx, *flowID, *code))
		}
		return printResult(client.Exchange(ctx, *code))

	case "flow":
		if *flowID == "" {
			return errors.New("flow requires -flow-id")
		}
		pending, err := client.FlowPending(ctx, *flowID)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"flow_id": *flowID, "pending": pending})

	case "refresh":
		if *refreshToken == "" {
			return errors.New("refresh requires -refresh-token")
		}
		return printResult(client.Refresh(ctx, *refreshToken))

	case "revoke":
		if *refreshToken != "" {
			client.SetToken(ciam.Token{RefreshToken: *refreshToken}, time.Time{})
		}
		if err := client.Revoke(ctx); err != nil {
			return err
		}
		log.Info().Msg("token revoked")
		return nil

	case "userinfo":
		if *accessToken == "" {
			return errors.New("userinfo requires -access-token")
		}
		client.SetToken(ciam.Token{AccessToken: *accessToken}, time.Time{})
		return printResult(client.UserInfo(ctx))

	case "verify":
		if *idToken == "" {
			return errors.New("verify requires -id-token")
		}
		return printResult(client.VerifyIDToken(ctx, *idToken))

	case "jwks":
		return printResult(client.JWKS(ctx))

	case "metadata":
		return printResult(client.ProviderMetadata(ctx))

	case "health":
		health := client.HealthCheck(ctx)
		if err := printJSON(health); err != nil {
			return err
		}
		if health.Status == ciam.HealthStatusUnhealthy {
			return errors.New("unhealthy")
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printResult[T any](v *T, err error) error {
	if err != nil {
		return err
	}
	return printJSON(v)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
