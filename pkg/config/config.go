package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pins         PinConfig
	Checkout     CheckoutConfig
	Outbox       OutboxConfig
	Sync         SyncConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMSTAND_APP_ENV" default:"dev"`
	Port         string `envconfig:"FARMSTAND_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FARMSTAND_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMSTAND_LOG_WARN_STACK" default:"false"`
	UIOrigin     string `envconfig:"FARMSTAND_UI_ORIGIN" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig describes the station-local database. SQLite is the default so a
// terminal keeps selling with no infrastructure at all; Postgres is available
// for installations that share one counter database.
type DBConfig struct {
	Driver string `envconfig:"FARMSTAND_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"FARMSTAND_DB_DSN" default:"farmstand.db"`

	MaxOpenConns    int           `envconfig:"FARMSTAND_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"FARMSTAND_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"FARMSTAND_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMSTAND_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate() error {
	switch db.Driver {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported db driver %q", db.Driver)
	}
	if db.DSN == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	return nil
}

// RedisConfig points at the shared remote mirror. Leaving the URL empty runs
// the station in local-only mode.
type RedisConfig struct {
	URL          string        `envconfig:"FARMSTAND_REDIS_URL"`
	Address      string        `envconfig:"FARMSTAND_REDIS_ADDR"`
	Password     string        `envconfig:"FARMSTAND_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMSTAND_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMSTAND_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMSTAND_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMSTAND_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMSTAND_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMSTAND_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a remote mirror endpoint was provided at all.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"FARMSTAND_JWT_SECRET" default:"dev-only-secret"`
	Issuer            string `envconfig:"FARMSTAND_JWT_ISSUER" default:"farmstand"`
	ExpirationMinutes int    `envconfig:"FARMSTAND_JWT_EXPIRATION_MINUTES" default:"720"`
}

// PinConfig seeds the terminal PINs on first run. Changed PINs live in the
// settings store, not here.
type PinConfig struct {
	DefaultVolunteerPIN string `envconfig:"FARMSTAND_DEFAULT_VOLUNTEER_PIN" default:"1234"`
	DefaultAdminPIN     string `envconfig:"FARMSTAND_DEFAULT_ADMIN_PIN" default:"0000"`

	ArgonMemoryKB    int `envconfig:"FARMSTAND_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FARMSTAND_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FARMSTAND_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FARMSTAND_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FARMSTAND_ARGON_KEY_LEN" default:"32"`
}

type CheckoutConfig struct {
	UndoWindow time.Duration `envconfig:"FARMSTAND_CHECKOUT_UNDO_WINDOW" default:"5s"`
	UndoTick   time.Duration `envconfig:"FARMSTAND_CHECKOUT_UNDO_TICK" default:"100ms"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMSTAND_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMSTAND_OUTBOX_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMSTAND_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type SyncConfig struct {
	PingInterval time.Duration `envconfig:"FARMSTAND_SYNC_PING_INTERVAL" default:"15s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FARMSTAND_AUTO_MIGRATE" default:"true"`
}
