package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Backend   BackendConfig
	Checkout  CheckoutConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if cfg.Store.UsesDB() && cfg.DB.DSN == "" {
		return nil, fmt.Errorf("%s is required for store driver %q", EnvDBDSN, cfg.Store.Driver)
	}
	if cfg.Store.Driver == StoreDriverRedis && !cfg.Redis.Configured() {
		return nil, fmt.Errorf("either %s or %s is required for the redis store driver", EnvRedisURL, EnvRedisAddr)
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if cfg.PubSub.CartEventsTopic != "" && cfg.GCP.ProjectID == "" {
		return nil, fmt.Errorf("%s is required when %s is set", EnvGCPProjectID, EnvPubSubCartTopic)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StoreConfig selects the backing driver of the session cart mirror.
type StoreConfig struct {
	Driver     string        `envconfig:"STOREFRONT_STORE_DRIVER" default:"redis"`
	SessionTTL time.Duration `envconfig:"STOREFRONT_STORE_SESSION_TTL" default:"720h"`
}

// UsesDB reports whether the mirror is kept in a SQL table.
func (s StoreConfig) UsesDB() bool {
	return s.Driver == StoreDriverSQLite || s.Driver == StoreDriverPostgres
}

func (s *StoreConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case StoreDriverRedis, StoreDriverSQLite, StoreDriverPostgres, StoreDriverMemory:
		return nil
	}
	return fmt.Errorf("unsupported store driver %q", s.Driver)
}

type DBConfig struct {
	DSN             string        `envconfig:"STOREFRONT_DB_DSN"`
	AutoMigrate     bool          `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"true"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a redis endpoint was supplied.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig describes the tokens minted by the external identity endpoint.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER"`
}

// BackendConfig points at the storefront REST backend (cart, orders, coupons).
type BackendConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_BACKEND_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"10s"`
}

type CheckoutConfig struct {
	ShippingFee    string        `envconfig:"STOREFRONT_CHECKOUT_SHIPPING_FEE" default:"0"`
	Currency       string        `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"EGP"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

func (c CheckoutConfig) validate() error {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", EnvShippingFee, c.ShippingFee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvShippingFee)
	}
	return nil
}

// ShippingFeeAmount parses the flat shipping fee Load already validated.
func (c CheckoutConfig) ShippingFeeAmount() decimal.Decimal {
	fee, err := decimal.NewFromString(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return decimal.Zero
	}
	return fee
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// RateLimitConfig throttles login, which fans out one backend call per merged item.
type RateLimitConfig struct {
	LoginWindow  time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_LOGIN_IP" default:"20"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

// PubSubConfig enables the cart event relay when a topic is set.
type PubSubConfig struct {
	CartEventsTopic string `envconfig:"STOREFRONT_PUBSUB_CART_EVENTS_TOPIC"`
	RelayBuffer     int    `envconfig:"STOREFRONT_PUBSUB_RELAY_BUFFER" default:"256"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.CartEventsTopic) != ""
}
