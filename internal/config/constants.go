package config

// Application constants
const (
	AppName    = "olist-etl"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable (ETL_LOGGING_LEVEL, ...)
	EnvPrefix      = "ETL"
	DefaultEnvFile = ".env"

	// Paths, relative to the working directory unless absolute
	DefaultRawDir    = "data/raw"
	DefaultOutputDir = "data/transformed"
	DefaultLogsDir   = "logs"

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Export
	DefaultWorkbookName   = "powerbi_model.xlsx"
	DefaultPostgresSchema = "olist_dw"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatParquet  = "parquet"
	FormatPostgres = "postgres"
)
