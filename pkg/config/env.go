package config

const EnvPrefix = "SHIRTFORGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SHIRTFORGE_APP_ENV"
	EnvPort     = "SHIRTFORGE_APP_PORT"
	EnvLogLevel = "SHIRTFORGE_LOG_LEVEL"

	EnvDBDSN    = "SHIRTFORGE_DB_DSN"
	EnvDBDriver = "SHIRTFORGE_DB_DRIVER"
	EnvDBHost   = "SHIRTFORGE_DB_HOST"
	EnvDBPort   = "SHIRTFORGE_DB_PORT"
	EnvDBUser   = "SHIRTFORGE_DB_USER"
	EnvDBPass   = "SHIRTFORGE_DB_PASSWORD"
	EnvDBName   = "SHIRTFORGE_DB_NAME"

	EnvRedisURL = "SHIRTFORGE_REDIS_URL"

	EnvJWTSecret  = "SHIRTFORGE_JWT_SECRET"
	EnvJWTIssuer  = "SHIRTFORGE_JWT_ISSUER"
	EnvJWTExpMins = "SHIRTFORGE_JWT_EXPIRATION_MINUTES"

	EnvLedgerAdvancePercent = "SHIRTFORGE_LEDGER_ADVANCE_PERCENT"
	EnvLedgerAbandonedAfter = "SHIRTFORGE_LEDGER_ABANDONED_CART_AFTER"

	EnvRazorpayKeyID         = "SHIRTFORGE_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret     = "SHIRTFORGE_RAZORPAY_KEY_SECRET"
	EnvRazorpayWebhookSecret = "SHIRTFORGE_RAZORPAY_WEBHOOK_SECRET"

	EnvPubSubOrdersTopic = "SHIRTFORGE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
