package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds configuration for the HTTP API.
type Config struct {
	AppEnv         string        `env:"APP_ENV" envDefault:"production"`
	AppVersion     string        `env:"APP_VERSION" envDefault:"unknown"`
	Port           string        `env:"PORT" envDefault:"8080"`
	DatabaseURL    string        `env:"DB_CONNECTION_STRING,required,notEmpty"`
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"240h"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RunMigrations  bool          `env:"RUN_MIGRATIONS" envDefault:"true"`

	RedisAddress  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	CredentialCacheTTL time.Duration `env:"CREDENTIAL_CACHE_TTL" envDefault:"10m"`
	AuthRateLimit      int           `env:"AUTH_RATE_LIMIT" envDefault:"10"`
	AuthRateWindow     time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
	AuthRateBlock      time.Duration `env:"AUTH_RATE_BLOCK" envDefault:"5m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// RelayConfig holds configuration for the outbox relay.
type RelayConfig struct {
	AppEnv          string `env:"APP_ENV" envDefault:"production"`
	DatabaseURL     string `env:"DB_CONNECTION_STRING,required,notEmpty"`
	RabbitMQURL     string `env:"RABBITMQ_URL,required,notEmpty"`
	ParcelQueueName string `env:"PARCEL_QUEUE_NAME" envDefault:"parcel_events"`
	HealthAddr      string `env:"RELAY_HEALTH_ADDR" envDefault:":8090"`
}

// NotifierConfig holds configuration for the email notifier.
type NotifierConfig struct {
	AppEnv          string `env:"APP_ENV" envDefault:"production"`
	RabbitMQURL     string `env:"RABBITMQ_URL,required,notEmpty"`
	ParcelQueueName string `env:"PARCEL_QUEUE_NAME" envDefault:"parcel_events"`
	HealthAddr      string `env:"NOTIFIER_HEALTH_ADDR" envDefault:":8091"`

	SMTPHost     string `env:"SMTP_HOST,required,notEmpty"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@courierman.local"`
}

// Load reads the API configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	cfg, err := parse[Config]()
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.New("REQUEST_TIMEOUT must be positive")
	}
	if _, err := cfg.TrustedProxyPrefixes(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func LoadRelayConfig() (*RelayConfig, error) {
	return parse[RelayConfig]()
}

func LoadNotifierConfig() (*NotifierConfig, error) {
	return parse[NotifierConfig]()
}

func parse[T any]() (*T, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[T]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
