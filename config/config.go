package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/asaskevich/govalidator"
	"github.com/creasty/defaults"
	"github.com/gbrlsnchs/jwt/v3"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

var (
	mu       sync.RWMutex
	_config  *Configuration
	_jwtAlgo *jwt.HMACSHA
)

// ApiConfiguration defines the configuration for the HTTP API exposed by
// this daemon.
type ApiConfiguration struct {
	// The interface that the webserver should bind to.
	Host string `default:"0.0.0.0"`

	// The port that the webserver should bind to.
	Port int `default:"4000"`

	// A list of origins allowed to make cross-origin requests. The frontend
	// origin belongs here; an empty list allows any origin.
	AllowedOrigins []string
}

// DatabaseConfiguration holds the backing store connection settings.
type DatabaseConfiguration struct {
	// URI is the store connection string. For the sqlite driver this is a
	// file path or ":memory:".
	URI string `default:"folio.db"`

	// QueryTimeout bounds the execution time of read queries. A query that
	// exceeds it fails with a timeout error rather than stalling a request.
	QueryTimeout time.Duration `default:"5s"`
}

// AuthConfiguration holds token signing settings for the admin session.
type AuthConfiguration struct {
	// JWTSecret is the HS256 signing key. Must be at least 32 bytes.
	JWTSecret string

	// TokenDuration is the lifetime of issued access tokens.
	TokenDuration time.Duration `default:"1h"`
}

// EmailConfiguration configures outbound contact-form delivery.
type EmailConfiguration struct {
	// ResendAPIKey authenticates against the Resend API. When empty the
	// contact endpoint rejects submissions with a provider failure.
	ResendAPIKey string

	// From is the sender address, which must belong to a verified domain.
	From string `default:"onboarding@resend.dev"`

	// To is the inbox receiving contact-form submissions.
	To string
}

// KeepAliveConfiguration controls the recurring probes that stop the
// database provider from suspending an idle connection.
type KeepAliveConfiguration struct {
	// DatabaseInterval is how often the full database keep-alive fires.
	DatabaseInterval time.Duration `default:"2h"`

	// HealthInterval is how often the lighter health probe fires.
	HealthInterval time.Duration `default:"10m"`

	// BaseURL is the public base URL of this instance, used by the
	// keep-alive task to ping its own modules endpoint over HTTP.
	BaseURL string `default:"http://localhost:4000"`
}

// CacheConfiguration controls the in-memory module read cache.
type CacheConfiguration struct {
	// TTL is how long a cached module snapshot stays readable.
	TTL time.Duration `default:"30s"`

	// SweepInterval is how often expired entries are reclaimed in the
	// background, independent of reads.
	SweepInterval time.Duration `default:"5m"`
}

type Configuration struct {
	AppName string `default:"Folio"`

	// Environment the daemon runs in: development, production or test.
	Environment string `default:"development"`

	// LogLevel controls the minimum level emitted by the logger.
	LogLevel string `default:"info"`

	// RedisURL is accepted for parity with the hosting environment but is
	// not consumed by this daemon.
	RedisURL string

	Api       ApiConfiguration
	Database  DatabaseConfiguration
	Auth      AuthConfiguration
	Email     EmailConfiguration
	KeepAlive KeepAliveConfiguration
	Cache     CacheConfiguration
}

// NewDefault returns a configuration with only the struct defaults applied.
// It does not read the environment and does not touch the globally stored
// configuration instance.
func NewDefault() (*Configuration, error) {
	c := new(Configuration)
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "config: failed to set default values")
	}
	return c, nil
}

// FromEnv builds a configuration from the process environment. A .env file
// in the working directory is loaded first when present; real environment
// variables take priority over it. The returned configuration has been
// validated.
func FromEnv() (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("config: unable to read .env file")
	}

	c, err := NewDefault()
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("NODE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("config: PORT must be a valid port number")
		}
		c.Api.Port = p
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Api.AllowedOrigins = splitAndTrim(v)
	}

	// DB_URI is the canonical key, MONGODB_URI is accepted as a fallback
	// for environments still configured against the previous deployment.
	if v := os.Getenv("DB_URI"); v != "" {
		c.Database.URI = v
	} else if v := os.Getenv("MONGODB_URI"); v != "" {
		c.Database.URI = v
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Email.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	if v := os.Getenv("CONTACT_EMAIL_TO"); v != "" {
		c.Email.To = v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.KeepAlive.BaseURL = v
	}
	c.RedisURL = os.Getenv("REDIS_URL")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration for values that would make the daemon
// unable to operate safely. Errors name the offending environment key.
func (c *Configuration) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return errors.Errorf("config: NODE_ENV must be one of development, production or test, not %q", c.Environment)
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be set and at least 32 bytes long")
	}
	if c.Api.Port < 1 || c.Api.Port > 65535 {
		return errors.Errorf("config: PORT %d is outside the valid range", c.Api.Port)
	}
	if c.Database.URI == "" {
		return errors.New("config: DB_URI must be set")
	}
	if !govalidator.IsURL(c.KeepAlive.BaseURL) {
		return errors.Errorf("config: API_BASE_URL %q is not a valid URL", c.KeepAlive.BaseURL)
	}
	if c.RedisURL != "" && !govalidator.IsURL(c.RedisURL) {
		return errors.Errorf("config: REDIS_URL %q is not a valid URL", c.RedisURL)
	}
	return nil
}

// Set the global configuration instance. This is a blocking operation such
// that anything trying to set a different configuration value, or read the
// configuration, will be paused until it is complete.
func Set(c *Configuration) {
	mu.Lock()
	defer mu.Unlock()
	if _config == nil || _config.Auth.JWTSecret != c.Auth.JWTSecret {
		_jwtAlgo = jwt.NewHS256([]byte(c.Auth.JWTSecret))
	}
	_config = c
}

// Get returns a copy of the global configuration instance. Modifications to
// the returned struct are not persisted; use Update for that.
func Get() *Configuration {
	mu.RLock()
	c := *_config
	mu.RUnlock()
	return &c
}

// Update performs an in-situ update of the global configuration object
// using a thread-safe mutex lock.
func Update(callback func(c *Configuration)) {
	mu.Lock()
	defer mu.Unlock()
	callback(_config)
}

// GetJwtAlgorithm returns the in-memory JWT signing algorithm.
func GetJwtAlgorithm() *jwt.HMACSHA {
	mu.RLock()
	defer mu.RUnlock()
	return _jwtAlgo
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
