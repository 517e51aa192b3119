package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// PathsConfig contains the raw input and transformed output locations
type PathsConfig struct {
	RawDir    string `yaml:"raw_dir" envconfig:"RAW_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// PipelineConfig drives the transformation core.
type PipelineConfig struct {
	// DateColumns lists, per raw table, the text columns parsed as timestamps.
	DateColumns map[string][]string `yaml:"date_columns" ignored:"true"`
	// DateLayouts are tried in order when parsing timestamps.
	DateLayouts []string `yaml:"date_layouts" envconfig:"DATE_LAYOUTS" validate:"min=1"`
	// StageTimeout bounds each run stage. Zero keeps the runner default.
	StageTimeout time.Duration `yaml:"stage_timeout" envconfig:"STAGE_TIMEOUT" validate:"gte=0"`
}

// ExportConfig selects the output formats written by the exporter
type ExportConfig struct {
	Formats        []string `yaml:"formats" envconfig:"FORMATS" validate:"min=1,dive,oneof=csv xlsx parquet postgres"`
	BOMPrefix      bool     `yaml:"bom_prefix" envconfig:"BOM_PREFIX"`
	WorkbookName   string   `yaml:"workbook_name" envconfig:"WORKBOOK_NAME" validate:"required"`
	PostgresDSN    string   `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	PostgresSchema string   `yaml:"postgres_schema" envconfig:"POSTGRES_SCHEMA" validate:"required"`
}

// TelemetryConfig contains tracing and metrics output configuration
type TelemetryConfig struct {
	Tracing     bool   `yaml:"tracing" envconfig:"TRACING"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// HasFormat reports whether the given export format is enabled
func (e ExportConfig) HasFormat(format string) bool {
	for _, f := range e.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Load builds the configuration from defaults, an optional YAML file,
// an optional .env file and ETL_* environment variables, in that order.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file "+configFile, err)
		}
	}

	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigError("failed to load "+DefaultEnvFile, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("config validation failed", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration against its declared constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Export.HasFormat(FormatPostgres) && c.Export.PostgresDSN == "" {
		return fmt.Errorf("export format %q requires export.postgres_dsn", FormatPostgres)
	}
	if c.Export.HasFormat(FormatParquet) && !c.Export.HasFormat(FormatCSV) {
		// parquet files are converted from the CSV outputs
		c.Export.Formats = append([]string{FormatCSV}, c.Export.Formats...)
	}
	return nil
}

// getConfigFilePath returns the first config file found in the usual locations
func getConfigFilePath() string {
	locations := []string{
		"etl.yaml",
		"configs/etl.yaml",
		"../configs/etl.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// DefaultDateColumns returns the timestamp columns of the Olist datasets
func DefaultDateColumns() map[string][]string {
	return map[string][]string{
		"orders": {
			"order_purchase_timestamp",
			"order_approved_at",
			"order_delivered_carrier_date",
			"order_delivered_customer_date",
			"order_estimated_delivery_date",
		},
		"reviews":     {"review_creation_date", "review_answer_timestamp"},
		"order_items": {"shipping_limit_date"},
	}
}

// DefaultPipeline returns the default pipeline configuration
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		DateColumns: DefaultDateColumns(),
		DateLayouts: []string{
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04",
			"2006-01-02",
			"2006/01/02 15:04:05",
			"2006/01/02",
		},
	}
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/etl.log",
		},
		Paths: PathsConfig{
			RawDir:    DefaultRawDir,
			OutputDir: DefaultOutputDir,
			LogsDir:   DefaultLogsDir,
		},
		Pipeline: DefaultPipeline(),
		Export: ExportConfig{
			Formats:        []string{FormatCSV},
			BOMPrefix:      true,
			WorkbookName:   DefaultWorkbookName,
			PostgresSchema: DefaultPostgresSchema,
		},
	}
}
