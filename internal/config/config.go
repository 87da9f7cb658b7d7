// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package config loads and validates eventauth configuration.
//
// Values are layered: command-line flags registered by RegisterFlags
// provide defaults, an optional YAML file overrides them, and flags set
// explicitly on the command line override the file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/pkg/errutil"
)

// Environment variables consulted when the matching key is empty.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvTokenSecret = "EVENTAUTH_TOKEN_SECRET"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Notification drivers.
const (
	NotifyLog   = "log"
	NotifyRedis = "redis"
)

// Config is the complete eventauth configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	Storage  StorageConfig  `koanf:"storage" json:"storage,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Token    TokenConfig    `koanf:"token" json:"token,omitempty"`
	Recovery RecoveryConfig `koanf:"recovery" json:"recovery,omitempty"`
	Policy   PolicyConfig   `koanf:"policy" json:"policy,omitempty"`
	Notify   NotifyConfig   `koanf:"notify" json:"notify,omitempty"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr" json:"addr,omitempty" jsonschema:"description=API listen address"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" json:"read_header_timeout,omitempty"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty"`

	// UniformLoginErrors answers unknown emails with the same 401 as a wrong password.
	UniformLoginErrors bool `koanf:"uniform_login_errors" json:"uniform_login_errors,omitempty"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// StorageConfig selects the repository implementation.
type StorageConfig struct {
	Driver string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string `koanf:"url" json:"url,omitempty"`
	ConnectAttempts uint64 `koanf:"connect_attempts" json:"connect_attempts,omitempty"`
}

// TokenConfig configures bearer token issuance.
type TokenConfig struct {
	Secret string        `koanf:"secret" json:"secret,omitempty"`
	TTL    time.Duration `koanf:"ttl" json:"ttl,omitempty"`
}

// RecoveryConfig configures the password reset flow.
type RecoveryConfig struct {
	CodeTTL       time.Duration `koanf:"code_ttl" json:"code_ttl,omitempty"`
	PurgeInterval time.Duration `koanf:"purge_interval" json:"purge_interval,omitempty"`
}

// PolicyConfig configures password and role rules.
type PolicyConfig struct {
	MinLength     int    `koanf:"min_length" json:"min_length,omitempty" jsonschema:"minimum=1,maximum=128"`
	RequireLetter bool   `koanf:"require_letter" json:"require_letter,omitempty"`
	RequireDigit  bool   `koanf:"require_digit" json:"require_digit,omitempty"`
	RequireUpper  bool   `koanf:"require_upper" json:"require_upper,omitempty"`
	RequireSymbol bool   `koanf:"require_symbol" json:"require_symbol,omitempty"`
	DefaultRole   string `koanf:"default_role" json:"default_role,omitempty" jsonschema:"enum=organizer,enum=participant,enum=admin"`
}

// NotifyConfig configures the notification channel.
type NotifyConfig struct {
	Driver    string        `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=log,enum=redis"`
	RedisAddr string        `koanf:"redis_addr" json:"redis_addr,omitempty"`
	RedisKey  string        `koanf:"redis_key" json:"redis_key,omitempty"`
	Timeout   time.Duration `koanf:"timeout" json:"timeout,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	p := auth.DefaultPolicy()
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Format: "json"},
		Storage:  StorageConfig{Driver: StoragePostgres},
		Database: DatabaseConfig{ConnectAttempts: 5},
		Token:    TokenConfig{TTL: auth.DefaultTokenTTL},
		Recovery: RecoveryConfig{
			CodeTTL:       auth.DefaultRecoveryCodeTTL,
			PurgeInterval: 10 * time.Minute,
		},
		Policy: PolicyConfig{
			MinLength:     p.MinLength,
			RequireLetter: p.RequireLetter,
			RequireDigit:  p.RequireDigit,
			RequireUpper:  p.RequireUpper,
			RequireSymbol: p.RequireSymbol,
			DefaultRole:   string(p.DefaultRole),
		},
		Notify: NotifyConfig{
			Driver:   NotifyLog,
			RedisKey: "eventauth:notifications",
			Timeout:  auth.DefaultNotifyTimeout,
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":                 "http.addr",
	"http-read-header-timeout":  "http.read_header_timeout",
	"http-shutdown-timeout":     "http.shutdown_timeout",
	"uniform-login-errors":      "http.uniform_login_errors",
	"metrics-addr":              "metrics.addr",
	"log-format":                "log.format",
	"storage":                   "storage.driver",
	"database-url":              "database.url",
	"database-connect-attempts": "database.connect_attempts",
	"token-ttl":                 "token.ttl",
	"recovery-code-ttl":         "recovery.code_ttl",
	"recovery-purge-interval":   "recovery.purge_interval",
	"policy-min-length":         "policy.min_length",
	"policy-require-letter":     "policy.require_letter",
	"policy-require-digit":      "policy.require_digit",
	"policy-require-upper":      "policy.require_upper",
	"policy-require-symbol":     "policy.require_symbol",
	"policy-default-role":       "policy.default_role",
	"notify-driver":             "notify.driver",
	"notify-redis-addr":         "notify.redis_addr",
	"notify-redis-key":          "notify.redis_key",
	"notify-timeout":            "notify.timeout",
}

// RegisterFlags adds one flag per configuration key to fs, defaulted from Default().
// The token secret has no flag so it never appears in a process listing.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.Duration("http-read-header-timeout", d.HTTP.ReadHeaderTimeout, "API read header timeout")
	fs.Duration("http-shutdown-timeout", d.HTTP.ShutdownTimeout, "graceful shutdown timeout")
	fs.Bool("uniform-login-errors", d.HTTP.UniformLoginErrors, "answer unknown emails on login with 401")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("storage", d.Storage.Driver, "storage driver (postgres or memory)")
	fs.String("database-url", d.Database.URL, "PostgreSQL URL (default: $"+EnvDatabaseURL+")")
	fs.Uint64("database-connect-attempts", d.Database.ConnectAttempts, "database connect attempts")
	fs.Duration("token-ttl", d.Token.TTL, "bearer token lifetime")
	fs.Duration("recovery-code-ttl", d.Recovery.CodeTTL, "recovery code lifetime")
	fs.Duration("recovery-purge-interval", d.Recovery.PurgeInterval, "interval between recovery code purges (0 = disabled)")
	fs.Int("policy-min-length", d.Policy.MinLength, "minimum password length")
	fs.Bool("policy-require-letter", d.Policy.RequireLetter, "require a letter in passwords")
	fs.Bool("policy-require-digit", d.Policy.RequireDigit, "require a digit in passwords")
	fs.Bool("policy-require-upper", d.Policy.RequireUpper, "require an upper-case letter in passwords")
	fs.Bool("policy-require-symbol", d.Policy.RequireSymbol, "require a symbol in passwords")
	fs.String("policy-default-role", d.Policy.DefaultRole, "role assigned when registration names none")
	fs.String("notify-driver", d.Notify.Driver, "notification driver (log or redis)")
	fs.String("notify-redis-addr", d.Notify.RedisAddr, "Redis address for the notification outbox")
	fs.String("notify-redis-key", d.Notify.RedisKey, "Redis list key for the notification outbox")
	fs.Duration("notify-timeout", d.Notify.Timeout, "timeout for one notification delivery")
}

// Load builds the configuration like Read and validates the result.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(path, fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds the configuration from the optional YAML file at path and the
// flags in fs and applies environment fallbacks. It does not validate, so
// commands that need only part of the configuration can check that part.
func Read(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}

	cfg.applyEnv(os.Getenv)
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if c.Database.URL == "" {
		c.Database.URL = getenv(EnvDatabaseURL)
	}
	if c.Token.Secret == "" {
		c.Token.Secret = getenv(EnvTokenSecret)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(key string) oops.OopsErrorBuilder {
		return oops.Code("CONFIG_INVALID").With("key", key)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr").Errorf("http.addr is required")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("http.read_header_timeout").Errorf("http.read_header_timeout must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout").Errorf("http.shutdown_timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Database.URL == "" {
			return invalid("database.url").Errorf("database.url or %s is required for the postgres driver", EnvDatabaseURL)
		}
	case StorageMemory:
	default:
		return invalid("storage.driver").Errorf("storage.driver must be 'postgres' or 'memory', got %q", c.Storage.Driver)
	}
	if len(c.Token.Secret) < auth.MinTokenSecretLength {
		return invalid("token.secret").
			Errorf("token.secret or %s must be at least %d bytes", EnvTokenSecret, auth.MinTokenSecretLength)
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl").Errorf("token.ttl must be positive")
	}
	if c.Recovery.CodeTTL <= 0 {
		return invalid("recovery.code_ttl").Errorf("recovery.code_ttl must be positive")
	}
	if c.Recovery.PurgeInterval < 0 {
		return invalid("recovery.purge_interval").Errorf("recovery.purge_interval must not be negative")
	}
	policy, err := c.AuthPolicy()
	if err == nil {
		err = policy.Validate()
	}
	if err != nil {
		// A fresh error keeps CONFIG_INVALID as the code; the policy code is kept as context.
		return invalid("policy").
			With("cause", errutil.Code(err)).
			Errorf("invalid password policy: %s", err.Error())
	}
	switch c.Notify.Driver {
	case NotifyLog:
	case NotifyRedis:
		if c.Notify.RedisAddr == "" {
			return invalid("notify.redis_addr").Errorf("notify.redis_addr is required for the redis driver")
		}
	default:
		return invalid("notify.driver").Errorf("notify.driver must be 'log' or 'redis', got %q", c.Notify.Driver)
	}
	if c.Notify.Timeout <= 0 {
		return invalid("notify.timeout").Errorf("notify.timeout must be positive")
	}
	return nil
}

// AuthPolicy converts the policy section into an auth.Policy.
func (c *Config) AuthPolicy() (auth.Policy, error) {
	role, err := auth.ParseRole(c.Policy.DefaultRole)
	if err != nil {
		return auth.Policy{}, err
	}
	return auth.Policy{
		MinLength:     c.Policy.MinLength,
		RequireLetter: c.Policy.RequireLetter,
		RequireDigit:  c.Policy.RequireDigit,
		RequireUpper:  c.Policy.RequireUpper,
		RequireSymbol: c.Policy.RequireSymbol,
		DefaultRole:   role,
	}, nil
}

// AuthToken converts the token section into an auth.TokenConfig.
func (c *Config) AuthToken() auth.TokenConfig {
	return auth.TokenConfig{Secret: []byte(c.Token.Secret), TTL: c.Token.TTL}
}

// AuthRecovery converts the recovery section into an auth.RecoveryConfig.
// Codes are keyed with the token secret.
func (c *Config) AuthRecovery() auth.RecoveryConfig {
	return auth.RecoveryConfig{CodeTTL: c.Recovery.CodeTTL, CodeKey: []byte(c.Token.Secret)}
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Token.Secret != "" {
		c.Token.Secret = "[redacted]"
	}
	if c.Database.URL != "" {
		c.Database.URL = redactURL(c.Database.URL)
	}
	return c
}

func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "[redacted]"
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return u
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":[redacted]@" + host
}
