package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverRedis    = "redis"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EnvAppEnv      = "STOREFRONT_APP_ENV"
	EnvPort        = "STOREFRONT_APP_PORT"
	EnvStoreDriver = "STOREFRONT_STORE_DRIVER"
	EnvDBDSN       = "STOREFRONT_DB_DSN"
	EnvRedisURL    = "STOREFRONT_REDIS_URL"
	EnvRedisAddr   = "STOREFRONT_REDIS_ADDR"
	EnvJWTSecret   = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer   = "STOREFRONT_JWT_ISSUER"
	EnvBackendURL  = "STOREFRONT_BACKEND_URL"
	EnvShippingFee = "STOREFRONT_CHECKOUT_SHIPPING_FEE"

	EnvGCPProjectID    = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubCartTopic = "STOREFRONT_PUBSUB_CART_EVENTS_TOPIC"
)
