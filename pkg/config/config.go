package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Reconcile    ReconcileConfig
	Reclaim      ReclaimConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := enums.ParseReservedPolicy(cfg.Reconcile.ReservedPolicy); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvReservedPolicy, err)
	}
	return &cfg, nil
}

// AllowsLocalLock reports whether the reclaimer may run behind a process-local lock.
// The api and cron worker both reclaim, so that is only safe in dev or when a single
// replica runs.
func (c *Config) AllowsLocalLock() bool {
	return c.App.IsDev() || c.Reclaim.AllowLocalLock
}

// RequireLockBackend fails for binaries that run the reclaimer without redis outside dev.
func (c *Config) RequireLockBackend() error {
	if c.Redis.Enabled() || c.AllowsLocalLock() {
		return nil
	}
	return fmt.Errorf("%s or %s is required outside %s unless %s is set",
		EnvRedisURL, EnvRedisAddr, AppEnvDev, EnvReclaimAllowLocalLock)
}

type AppConfig struct {
	Env          string `envconfig:"PACKFINDERZ_APP_ENV" required:"true"`
	Port         string `envconfig:"PACKFINDERZ_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PACKFINDERZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKFINDERZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKFINDERZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKFINDERZ_DB_DSN"`
	Driver string `envconfig:"PACKFINDERZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKFINDERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKFINDERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKFINDERZ_DB_USER"`
	LegacyPassword string `envconfig:"PACKFINDERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKFINDERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKFINDERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKFINDERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this; zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"PACKFINDERZ_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// RedisConfig backs the reclaim and cron locks. It is required outside dev unless
// PACKFINDERZ_RECLAIM_ALLOW_LOCAL_LOCK is set.
type RedisConfig struct {
	URL          string        `envconfig:"PACKFINDERZ_REDIS_URL"`
	Address      string        `envconfig:"PACKFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"PACKFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PACKFINDERZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PACKFINDERZ_AUTO_MIGRATE" default:"false"`
}

type ReconcileConfig struct {
	// ReservedPolicy is "lenient" (counters only need to stay non-negative) or
	// "strict" (reserved may never exceed on hand).
	ReservedPolicy string        `envconfig:"PACKFINDERZ_RECONCILE_RESERVED_POLICY" default:"lenient"`
	ReplayTimeout  time.Duration `envconfig:"PACKFINDERZ_RECONCILE_REPLAY_TIMEOUT" default:"10m"`
	ReaderPageSize int           `envconfig:"PACKFINDERZ_RECONCILE_READER_PAGE_SIZE" default:"1000"`
	FoldWorkers    int           `envconfig:"PACKFINDERZ_RECONCILE_FOLD_WORKERS" default:"1"`
}

// Policy returns the parsed reserved policy. Load has already validated the raw value.
func (r ReconcileConfig) Policy() enums.ReservedPolicy {
	policy, err := enums.ParseReservedPolicy(r.ReservedPolicy)
	if err != nil {
		return enums.ReservedPolicyLenient
	}
	return policy
}

type ReclaimConfig struct {
	Timeout time.Duration `envconfig:"PACKFINDERZ_RECLAIM_TIMEOUT" default:"15m"`
	LockTTL time.Duration `envconfig:"PACKFINDERZ_RECLAIM_LOCK_TTL" default:"5m"`
	// AllowLocalLock opts a single-replica deployment out of the redis requirement.
	AllowLocalLock bool `envconfig:"PACKFINDERZ_RECLAIM_ALLOW_LOCAL_LOCK" default:"false"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"PACKFINDERZ_CRON_INTERVAL" default:"5m"`
	LockTTL         time.Duration `envconfig:"PACKFINDERZ_CRON_LOCK_TTL" default:"30m"`
	AutoHealEnabled bool          `envconfig:"PACKFINDERZ_CRON_AUTO_HEAL" default:"true"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		return fmt.Errorf("%s is required when %s is set", EnvDBDSN, EnvUseSQLite)
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
