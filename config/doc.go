// Package config loads configuration structs from environment variables and
// .env files.
//
// Fields opt in with an `env` tag. The tag names the variable (without the
// prefix) and may carry a default and a required marker:
//
//	type Config struct {
//	    ClientID    string        `env:"CIAM_CLIENT_ID,required"`
//	    Scopes      []string      `env:"CIAM_SCOPES,default:openid,profile"`
//	    HTTPTimeout time.Duration `env:"CIAM_HTTP_TIMEOUT,default:30s"`
//	    Debug       bool          `env:"CIAM_DEBUG,default:false"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { // BEAVER_CIAM_CLIENT_ID, ...
//	    return fmt.Errorf("failed to load config: %w", err)
//	}
//
// Use a different prefix to avoid collisions:
//
//	err := config.Load(&cfg, config.LoadOptions{Prefix: "MYAPP_"})
//
// # Supported Types
//
//   - string and named string types
//   - int, int64
//   - bool ("true", "false", "1", "0", ...)
//   - time.Duration ("1h30m", "45s", ...)
//   - []string (comma separated)
//
// # Environment Files
//
// A .env file in the working directory (or the files listed in
// LoadOptions.Files) is read first. Variables already set in the process
// environment take precedence over file values.
//
// # Debug Mode
//
// Set BEAVER_CONFIG_DEBUG=true or LoadOptions.Debug to print every resolved
// variable. Values of variables whose names contain SECRET, PASSWORD or
// PRIVATE_KEY are masked.
package config
