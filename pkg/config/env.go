package config

const (
	EnvPrefix = "PACKFINDERZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "PACKFINDERZ_APP_ENV"
	EnvPort           = "PACKFINDERZ_APP_PORT"
	EnvDBDSN          = "PACKFINDERZ_DB_DSN"
	EnvDBHost         = "PACKFINDERZ_DB_HOST"
	EnvDBUser         = "PACKFINDERZ_DB_USER"
	EnvDBName         = "PACKFINDERZ_DB_NAME"
	EnvDBPassword     = "PACKFINDERZ_DB_PASSWORD"
	EnvRedisURL       = "PACKFINDERZ_REDIS_URL"
	EnvRedisAddr      = "PACKFINDERZ_REDIS_ADDR"
	EnvUseSQLite      = "PACKFINDERZ_USE_SQLITE"
	EnvReservedPolicy = "PACKFINDERZ_RECONCILE_RESERVED_POLICY"
	EnvReplayTimeout  = "PACKFINDERZ_RECONCILE_REPLAY_TIMEOUT"
	EnvFoldWorkers    = "PACKFINDERZ_RECONCILE_FOLD_WORKERS"
	EnvReclaimTimeout = "PACKFINDERZ_RECLAIM_TIMEOUT"

	EnvReclaimAllowLocalLock = "PACKFINDERZ_RECLAIM_ALLOW_LOCAL_LOCK"
	EnvCronInterval   = "PACKFINDERZ_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
