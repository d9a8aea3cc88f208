package config

const (
	EnvPrefix = "FARMSTAND"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	EnvDBDSN = "FARMSTAND_DB_DSN"
)
