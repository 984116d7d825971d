package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by BindEnv
const EnvPrefix = "SONGCLASH"

// Broadcast channel backends
const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

// Config holds the server settings
type Config struct {
	Bind string
	Port int

	MongoURI      string
	MongoDatabase string
	RedisAddr     string

	Transport string
	NATSURL   string

	JWTSecret          string
	CORSAllowedOrigins []string

	SessionIdleTimeout time.Duration
	RequestKeyTTL      time.Duration
	PersistRetry       time.Duration

	Verbose bool
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Transport {
	case TransportLocal:
	case TransportNATS:
		if c.NATSURL == "" {
			return errors.New("--nats-url is required with --transport=nats")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportLocal, TransportNATS)
	}
	if c.MongoURI == "" || c.MongoDatabase == "" {
		return errors.New("--mongo-uri and --mongo-database must be set")
	}
	if c.RedisAddr == "" {
		return errors.New("--redis-addr must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("--jwt-secret must not be empty")
	}
	if c.SessionIdleTimeout < 0 || c.RequestKeyTTL <= 0 || c.PersistRetry <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

// Addr is the address the HTTP server listens on
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// RedisAddress returns RedisAddr without a redis:// scheme
func (c *Config) RedisAddress() string {
	return strings.TrimPrefix(c.RedisAddr, "redis://")
}

// RegisterStoreFlags adds the flags every binary touching the stores needs
func (c *Config) RegisterStoreFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.MongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection string (env: SONGCLASH_MONGO_URI)")
	fs.StringVar(&c.MongoDatabase, "mongo-database", "songclash", "MongoDB database name (env: SONGCLASH_MONGO_DATABASE)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "localhost:6379", "Redis address (env: SONGCLASH_REDIS_ADDR)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "change-me", "secret signing game tokens (env: SONGCLASH_JWT_SECRET)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "display additional output (env: SONGCLASH_VERBOSE)")
}

// RegisterFlags adds every server flag to fs
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	c.RegisterStoreFlags(fs)

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: SONGCLASH_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: SONGCLASH_PORT)")
	fs.StringVar(&c.Transport, "transport", TransportLocal, "broadcast channel backend, local or nats (env: SONGCLASH_TRANSPORT)")
	fs.StringVar(&c.NATSURL, "nats-url", "", "NATS server URL, required with --transport=nats (env: SONGCLASH_NATS_URL)")
	fs.StringSliceVar(&c.CORSAllowedOrigins, "cors-allowed-origins", []string{"*"}, "origins allowed to call the API (env: SONGCLASH_CORS_ALLOWED_ORIGINS)")
	fs.DurationVar(&c.SessionIdleTimeout, "session-idle-timeout", 30*time.Minute, "time before an idle game is dropped from memory, 0 keeps games forever (env: SONGCLASH_SESSION_IDLE_TIMEOUT)")
	fs.DurationVar(&c.RequestKeyTTL, "request-key-ttl", 10*time.Minute, "how long action request ids are remembered (env: SONGCLASH_REQUEST_KEY_TTL)")
	fs.DurationVar(&c.PersistRetry, "persist-retry", 500*time.Millisecond, "first delay before retrying a failed snapshot write (env: SONGCLASH_PERSIST_RETRY)")
}

// BindEnv fills every flag not set on the command line from its
// SONGCLASH_* environment variable
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, v.GetString(f.Name))
		}
	})
}
