package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

type CacheConfig struct {
	TTL          time.Duration
	MaxEntries   int
	ReapInterval time.Duration // 0 disables the background reaper
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

type AdminConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token. Empty
	// disables the admin routes.
	TokenHash string
	// VerifyCacheTTL bounds how long a verified token skips bcrypt.
	VerifyCacheTTL time.Duration
	// CookieName is read when no Authorization header is sent. Empty
	// accepts the header only.
	CookieName string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

var (
	ErrMissingVariable = errors.New("config: required variable not set")
	ErrInvalidValue    = errors.New("config: invalid value")
)

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var env envReader
	cfg := &Config{
		Server: ServerConfig{
			Address:         getEnv("SERVER_ADDRESS", ":8080"),
			ReadTimeout:     env.getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    env.getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: env.getDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL: strings.TrimRight(getEnv("UPSTREAM_BASE_URL", ""), "/"),
			Timeout: env.getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
			APIKey:  getEnv("UPSTREAM_API_KEY", ""),
		},
		Cache: CacheConfig{
			TTL:          env.getDuration("CACHE_TTL", 5*time.Minute),
			MaxEntries:   env.getInt("CACHE_MAX_ENTRIES", 500),
			ReapInterval: env.getDuration("CACHE_REAP_INTERVAL", 0),
		},
		Redis: RedisConfig{
			Enabled:      env.getBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           env.getInt("REDIS_DB", 0),
			PoolSize:     env.getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "lookup"),
		},
		Admin: AdminConfig{
			TokenHash:      getEnv("ADMIN_TOKEN_HASH", ""),
			VerifyCacheTTL: env.getDuration("ADMIN_VERIFY_CACHE_TTL", time.Minute),
			CookieName:     getEnv("ADMIN_COOKIE_NAME", "lookup_admin"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := env.err(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("%w: UPSTREAM_BASE_URL", ErrMissingVariable)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("config: CACHE_MAX_ENTRIES must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Admin.VerifyCacheTTL <= 0 {
		return fmt.Errorf("config: ADMIN_VERIFY_CACHE_TTL must be positive, got %s", c.Admin.VerifyCacheTTL)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and remembers every value that does
// not parse, so Load can report them all at once.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidValue, key, value, err))
}

func (r *envReader) err() error { return errors.Join(r.errs...) }

func (r *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (r *envReader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return d
}
