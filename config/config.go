package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingRequired is returned when a field tagged `required` has no value.
var ErrMissingRequired = errors.New("missing required environment variable")

// LoadOptions defines options for loading configuration from environment variables.
type LoadOptions struct {
	Prefix string   // Prefix to prepend to environment variable names (default: "BEAVER_")
	Debug  bool     // Print every resolved variable to stdout
	Files  []string // .env files to load; defaults to ".env" in the working directory
}

// Load populates a struct from .env files and environment variables using reflection.
//
// The function uses struct field tags to determine environment variable names:
//   - `env:"VAR_NAME"`: maps the field to the specified environment variable
//   - `env:"VAR_NAME,default:value"`: provides a default value if the variable is unset
//   - `env:"VAR_NAME,required"`: fails with ErrMissingRequired when no value resolves
//
// Environment variable names are prefixed with LoadOptions.Prefix (default "BEAVER_").
// Values already present in the process environment win over .env file values.
//
// Example:
//
//	type Config struct {
//	    ClientID string        `env:"CIAM_CLIENT_ID,required"`
//	    Scopes   []string      `env:"CIAM_SCOPES,default:openid"`
//	    Timeout  time.Duration `env:"CIAM_HTTP_TIMEOUT,default:30s"`
//	}
//
//	var cfg Config
//	err := config.Load(&cfg, config.LoadOptions{Prefix: "MYAPP_"})
//	// Will look for MYAPP_CIAM_CLIENT_ID, MYAPP_CIAM_SCOPES, MYAPP_CIAM_HTTP_TIMEOUT
func Load(cfg interface{}, opts ...LoadOptions) error {
	options := LoadOptions{Prefix: "BEAVER_"}
	if len(opts) > 0 {
		options = opts[0]
	}

	// A missing .env file is not an error
	_ = godotenv.Load(options.Files...)

	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", cfg)
	}

	v := rv.Elem()
	t := v.Type()
	printDebug := options.Debug || os.Getenv("BEAVER_CONFIG_DEBUG") == "true"

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" || !field.IsExported() {
			continue
		}

		envName, defaultValue, required := parseTag(envTag)

		fullEnvName := options.Prefix + envName
		value, ok := os.LookupEnv(fullEnvName)
		if !ok || value == "" {
			value = defaultValue
		}
		if printDebug {
			fmt.Printf("[BEAVER] %s=%s\n", fullEnvName, redact(envName, value))
		}

		if value == "" {
			if required {
				return fmt.Errorf("%w: %s", ErrMissingRequired, fullEnvName)
			}
			continue
		}

		if err := setFieldValue(v.Field(i), value); err != nil {
			return fmt.Errorf("config: %s: %w", fullEnvName, err)
		}
	}

	return nil
}

// parseTag splits an env tag into its name, default value and required flag.
// The default is everything after "default:" up to the next recognized option,
// so comma separated defaults for slice fields survive.
func parseTag(tag string) (name, defaultValue string, required bool) {
	parts := strings.Split(tag, ",")
	name = parts[0]

	for i := 1; i < len(parts); i++ {
		part := parts[i]
		switch {
		case part == "required":
			required = true
		case strings.HasPrefix(part, "default:"):
			values := []string{strings.TrimPrefix(part, "default:")}
			for i+1 < len(parts) && !isOption(parts[i+1]) {
				i++
				values = append(values, parts[i])
			}
			defaultValue = strings.Join(values, ",")
		}
	}
	return name, defaultValue, required
}

func isOption(part string) bool {
	return part == "required" || strings.HasPrefix(part, "default:")
}

// redact hides values of variables that look like credentials in debug output.
func redact(name, value string) string {
	upper := strings.ToUpper(name)
	if value != "" && (strings.Contains(upper, "SECRET") || strings.Contains(upper, "PASSWORD") || strings.Contains(upper, "PRIVATE_KEY")) {
		return "****"
	}
	return value
}

// setFieldValue converts a string environment value into the field's type.
//
// Supported types:
//   - string and named string types
//   - int, int64: base 10
//   - bool: strconv.ParseBool
//   - time.Duration: time.ParseDuration
//   - []string: comma separated, entries trimmed, empty entries dropped
//
// Unsupported field types are skipped silently.
func setFieldValue(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		items := splitList(value)
		slice := reflect.MakeSlice(field.Type(), len(items), len(items))
		for i, item := range items {
			slice.Index(i).SetString(item)
		}
		field.Set(slice)
	default:
		return nil
	}
	return nil
}

func splitList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
