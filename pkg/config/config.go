package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Firebase      FirebaseConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	Outbox        OutboxConfig
	Tasks         TasksConfig
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
	Env          string `envconfig:"TASKLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"TASKLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TASKLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TASKLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TASKLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TASKLINK_DB_DSN"`
	Driver string `envconfig:"TASKLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TASKLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"TASKLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TASKLINK_DB_USER"`
	LegacyPassword string `envconfig:"TASKLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TASKLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TASKLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TASKLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TASKLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TASKLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TASKLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TASKLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TASKLINK_REDIS_ADDR"`
	Password     string        `envconfig:"TASKLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TASKLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TASKLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TASKLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TASKLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TASKLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TASKLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TASKLINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TASKLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TASKLINK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TASKLINK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TASKLINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TASKLINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TASKLINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TASKLINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TASKLINK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TASKLINK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TASKLINK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TASKLINK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TASKLINK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TASKLINK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TASKLINK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TASKLINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TASKLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TASKLINK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TASKLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TASKLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"TASKLINK_PUBSUB_DOMAIN_TOPIC" default:"tl-domain-events"`
	DomainSubscription string `envconfig:"TASKLINK_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type FirebaseConfig struct {
	CredentialsFile string `envconfig:"TASKLINK_FIREBASE_CREDENTIALS_FILE"`
	ProjectID       string `envconfig:"TASKLINK_FIREBASE_PROJECT_ID"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"TASKLINK_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"TASKLINK_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"TASKLINK_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	Currency   string `envconfig:"TASKLINK_CHECKOUT_CURRENCY" default:"eur"`
	SuccessURL string `envconfig:"TASKLINK_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL  string `envconfig:"TASKLINK_CHECKOUT_CANCEL_URL" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TASKLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TASKLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TASKLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type TasksConfig struct {
	PaymentWindow             time.Duration `envconfig:"TASKLINK_TASKS_PAYMENT_WINDOW" default:"72h"`
	OutboxRetention           time.Duration `envconfig:"TASKLINK_TASKS_OUTBOX_RETENTION" default:"336h"`
	NotificationRetentionDays int           `envconfig:"TASKLINK_TASKS_NOTIFICATION_RETENTION_DAYS" default:"90"`
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
