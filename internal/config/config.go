package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/lifedash-auth/pkg/config"
	"github.com/utafrali/lifedash-auth/pkg/database"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const minProductionSecretLen = 32

// Config holds all configuration for the auth service.
type Config struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ServiceVersion  string        `env:"SERVICE_VERSION" envDefault:"dev"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// Credential store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser         string        `env:"POSTGRES_USER" envDefault:"lifedash"`
	PostgresPass         string        `env:"POSTGRES_PASSWORD" envDefault:"lifedash"`
	PostgresDB           string        `env:"POSTGRES_DB" envDefault:"lifedash_auth"`
	PostgresSSL          string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns     int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresMinConns     int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	PostgresConnLifetime time.Duration `env:"POSTGRES_CONN_LIFETIME" envDefault:"1h"`
	PostgresConnIdleTime time.Duration `env:"POSTGRES_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThresholdMS int           `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`
	RunMigrationsOnStart bool          `env:"RUN_MIGRATIONS" envDefault:"true"`

	// JWT
	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"lifedash-auth"`

	// Accounts
	AutoLoginOnRegister  bool     `env:"AUTO_LOGIN_ON_REGISTER" envDefault:"false"`
	UserListRequireAdmin bool     `env:"USER_LIST_REQUIRE_ADMIN" envDefault:"false"`
	AdminEmails          []string `env:"ADMIN_EMAILS" envSeparator:","`

	// HTTP edge
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	TrustProxyHeaders  bool     `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Rate limiting
	RateLimitEnabled bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     float64       `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Redis
	RedisEnabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisTimeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"500ms"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	OTelInsecure   bool    `env:"OTEL_INSECURE" envDefault:"true"`

	// Profiling
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StoreDriver != StorePostgres && c.StoreDriver != StoreMemory {
		return fmt.Errorf("invalid STORE_DRIVER %q: want %q or %q", c.StoreDriver, StorePostgres, StoreMemory)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	// Outside development, require a strong secret.
	if !c.IsDevelopment() && len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long in %q mode, got %d",
			minProductionSecretLen, c.Environment, len(c.JWTSecret))
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	if c.RateLimitEnabled {
		if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
			return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
		}
		if c.RedisEnabled && c.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
		}
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must be set when KAFKA_ENABLED is true")
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTelSampleRate)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SlowQueryThreshold returns the slow query log threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMS) * time.Millisecond
}

// Postgres returns the pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        c.PostgresMinConns,
		MaxConnLifetime: c.PostgresConnLifetime,
		MaxConnIdleTime: c.PostgresConnIdleTime,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
		Timeout:  c.RedisTimeout,
	}
}
