package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LEADPULSE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv          = "LEADPULSE_APP_ENV"
	EnvPort            = "LEADPULSE_APP_PORT"
	EnvDBDSN           = "LEADPULSE_DB_DSN"
	EnvDBHost          = "LEADPULSE_DB_HOST"
	EnvDBUser          = "LEADPULSE_DB_USER"
	EnvDBName          = "LEADPULSE_DB_NAME"
	EnvRedisURL        = "LEADPULSE_REDIS_URL"
	EnvSchedulerSecret = "LEADPULSE_SCHEDULER_SECRET"
	EnvGatewayBaseURL  = "LEADPULSE_PAYMENT_GATEWAY_BASE_URL"
	EnvGatewayAPIKey   = "LEADPULSE_PAYMENT_GATEWAY_API_KEY"
	EnvWebhookSecret   = "LEADPULSE_PAYMENT_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	Billing        BillingConfig
	PaymentGateway PaymentGatewayConfig
	Scheduler      SchedulerConfig
	FeatureFlags   FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEADPULSE_APP_ENV" required:"true"`
	Port         string `envconfig:"LEADPULSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEADPULSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEADPULSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEADPULSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEADPULSE_DB_DSN"`
	Driver string `envconfig:"LEADPULSE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEADPULSE_DB_HOST"`
	LegacyPort     int    `envconfig:"LEADPULSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEADPULSE_DB_USER"`
	LegacyPassword string `envconfig:"LEADPULSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEADPULSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEADPULSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEADPULSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEADPULSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEADPULSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEADPULSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEADPULSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEADPULSE_REDIS_ADDR"`
	Password     string        `envconfig:"LEADPULSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEADPULSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEADPULSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEADPULSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEADPULSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEADPULSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEADPULSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type BillingConfig struct {
	HoldTTL            time.Duration `envconfig:"LEADPULSE_BILLING_HOLD_TTL" default:"30m"`
	HoldMaxTTL         time.Duration `envconfig:"LEADPULSE_BILLING_HOLD_MAX_TTL" default:"2h"`
	WebhookEventTTL    time.Duration `envconfig:"LEADPULSE_BILLING_WEBHOOK_EVENT_TTL" default:"720h"`
	RenewalBatchSize   int           `envconfig:"LEADPULSE_BILLING_RENEWAL_BATCH_SIZE" default:"200"`
	LowCreditThreshold int64         `envconfig:"LEADPULSE_BILLING_LOW_CREDIT_THRESHOLD" default:"50"`
}

type PaymentGatewayConfig struct {
	BaseURL       string        `envconfig:"LEADPULSE_PAYMENT_GATEWAY_BASE_URL" required:"true"`
	APIKey        string        `envconfig:"LEADPULSE_PAYMENT_GATEWAY_API_KEY" required:"true"`
	WebhookSecret string        `envconfig:"LEADPULSE_PAYMENT_WEBHOOK_SECRET" required:"true"`
	Timeout       time.Duration `envconfig:"LEADPULSE_PAYMENT_GATEWAY_TIMEOUT" default:"15s"`
}

type SchedulerConfig struct {
	// Secret authenticates the internal renew/retry triggers.
	Secret   string        `envconfig:"LEADPULSE_SCHEDULER_SECRET" required:"true"`
	Interval time.Duration `envconfig:"LEADPULSE_SCHEDULER_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LEADPULSE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LEADPULSE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
