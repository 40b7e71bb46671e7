package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Razorpay     RazorpayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHIRTFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"SHIRTFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHIRTFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHIRTFORGE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"SHIRTFORGE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind        string `envconfig:"SHIRTFORGE_SERVICE_KIND" default:"api"`
	// MetricsAddr is where worker binaries expose /metrics; empty disables it.
	MetricsAddr string `envconfig:"SHIRTFORGE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHIRTFORGE_DB_DSN"`
	Driver string `envconfig:"SHIRTFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHIRTFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"SHIRTFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHIRTFORGE_DB_USER"`
	LegacyPassword string `envconfig:"SHIRTFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHIRTFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHIRTFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHIRTFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHIRTFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHIRTFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHIRTFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHIRTFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHIRTFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"SHIRTFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHIRTFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHIRTFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHIRTFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHIRTFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHIRTFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHIRTFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for bearer tokens minted by the
// identity service.
type JWTConfig struct {
	Secret            string `envconfig:"SHIRTFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHIRTFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHIRTFORGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHIRTFORGE_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig drives the staged payment policy and cart housekeeping.
type LedgerConfig struct {
	AdvancePercent     string        `envconfig:"SHIRTFORGE_LEDGER_ADVANCE_PERCENT" default:"50"`
	Currency           string        `envconfig:"SHIRTFORGE_LEDGER_CURRENCY" default:"INR"`
	AbandonedCartAfter time.Duration `envconfig:"SHIRTFORGE_LEDGER_ABANDONED_CART_AFTER" default:"168h"`
	VerifyRateLimit    int           `envconfig:"SHIRTFORGE_LEDGER_VERIFY_RATE_LIMIT" default:"10"`
	VerifyRateWindow   time.Duration `envconfig:"SHIRTFORGE_LEDGER_VERIFY_RATE_WINDOW" default:"1m"`
}

// AdvanceFraction returns the advance share as a fraction of the order total.
func (l LedgerConfig) AdvanceFraction() decimal.Decimal {
	pct, err := decimal.NewFromString(strings.TrimSpace(l.AdvancePercent))
	if err != nil {
		return decimal.NewFromFloat(0.5)
	}
	return pct.Div(decimal.NewFromInt(100))
}

func (l LedgerConfig) validate() error {
	pct, err := decimal.NewFromString(strings.TrimSpace(l.AdvancePercent))
	if err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvLedgerAdvancePercent, err)
	}
	if !pct.IsPositive() || pct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvLedgerAdvancePercent)
	}
	return nil
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"SHIRTFORGE_RAZORPAY_KEY_ID"`
	KeySecret     string        `envconfig:"SHIRTFORGE_RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"SHIRTFORGE_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"SHIRTFORGE_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"SHIRTFORGE_RAZORPAY_TIMEOUT" default:"10s"`
}

// Configured reports whether live gateway credentials are present.
func (r RazorpayConfig) Configured() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHIRTFORGE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"SHIRTFORGE_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	PaymentsTopic     string `envconfig:"SHIRTFORGE_PUBSUB_PAYMENTS_TOPIC" default:"sf-payment-events"`
	InventoryTopic    string `envconfig:"SHIRTFORGE_PUBSUB_INVENTORY_TOPIC" default:"sf-inventory-events"`
	DeadLetterTopic   string `envconfig:"SHIRTFORGE_PUBSUB_DLQ_TOPIC" default:"sf-outbox-dlq"`
	CredentialsJSON   string `envconfig:"SHIRTFORGE_PUBSUB_CREDENTIALS_JSON"`
	EmulatorAvailable bool   `envconfig:"SHIRTFORGE_PUBSUB_EMULATOR" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHIRTFORGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHIRTFORGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHIRTFORGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SHIRTFORGE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHIRTFORGE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"SHIRTFORGE_CRON_LOCK_TTL" default:"10m"`
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
