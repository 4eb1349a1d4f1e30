package config

// EnvPrefix is the envconfig prefix for every configuration variable.
const EnvPrefix = "TASKLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "TASKLINK_APP_ENV"
	EnvPort               = "TASKLINK_APP_PORT"
	EnvDBDSN              = "TASKLINK_DB_DSN"
	EnvDBHost             = "TASKLINK_DB_HOST"
	EnvDBUser             = "TASKLINK_DB_USER"
	EnvDBName             = "TASKLINK_DB_NAME"
	EnvRedisURL           = "TASKLINK_REDIS_URL"
	EnvJWTSecret          = "TASKLINK_JWT_SECRET"
	EnvJWTIssuer          = "TASKLINK_JWT_ISSUER"
	EnvJWTExpMins         = "TASKLINK_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID       = "TASKLINK_GCP_PROJECT_ID"
	EnvPubSubDomainSub    = "TASKLINK_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvCheckoutSuccessURL = "TASKLINK_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL  = "TASKLINK_CHECKOUT_CANCEL_URL"
)

// legacyDBEnvVars are the discrete connection variables accepted when
// TASKLINK_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
