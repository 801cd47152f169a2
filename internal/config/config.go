package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Aliases   AliasConfig     `yaml:"aliases" mapstructure:"aliases"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	FTP       FTPConfig       `yaml:"ftp" mapstructure:"ftp"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// IngestConfig configures batch ingestion behavior.
type IngestConfig struct {
	BaseCurrency     string  `yaml:"base_currency" mapstructure:"base_currency"`
	KPIMinValue      float64 `yaml:"kpi_min_value" mapstructure:"kpi_min_value"`
	BatchTimeoutSecs int     `yaml:"batch_timeout_secs" mapstructure:"batch_timeout_secs"`
	MaxParallelRows  int     `yaml:"max_parallel_rows" mapstructure:"max_parallel_rows"`
	PeriodWindowFrom int     `yaml:"period_window_from" mapstructure:"period_window_from"` // first supported calendar year
	PeriodWindowTo   int     `yaml:"period_window_to" mapstructure:"period_window_to"`     // last supported calendar year
}

// ReconcileConfig holds best-fact resolution tolerances. The YTD tolerances
// mirror the thresholds the reconciliation checks were originally tuned with;
// they are configuration, not constants, because their derivation is not
// documented anywhere authoritative.
type ReconcileConfig struct {
	BandLowRatio    float64 `yaml:"band_low_ratio" mapstructure:"band_low_ratio"`
	BandHighRatio   float64 `yaml:"band_high_ratio" mapstructure:"band_high_ratio"`
	YTDAbsTolerance float64 `yaml:"ytd_abs_tolerance" mapstructure:"ytd_abs_tolerance"`
	YTDRelTolerance float64 `yaml:"ytd_rel_tolerance" mapstructure:"ytd_rel_tolerance"`
}

// AliasConfig points at the YAML alias dictionaries and question templates.
type AliasConfig struct {
	LineItemsPath string `yaml:"line_items_path" mapstructure:"line_items_path"`
	PeriodsPath   string `yaml:"periods_path" mapstructure:"periods_path"`
	TemplatesPath string `yaml:"templates_path" mapstructure:"templates_path"`
}

// ServerConfig configures the HTTP upload/query server.
type ServerConfig struct {
	Port            int     `yaml:"port" mapstructure:"port"`
	UploadRateLimit float64 `yaml:"upload_rate_limit" mapstructure:"upload_rate_limit"` // uploads per second
	UploadBurst     int     `yaml:"upload_burst" mapstructure:"upload_burst"`
}

// FTPConfig configures the FTP drop-folder fetcher.
type FTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINFACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "finfacts.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.base_currency", "USD")
	v.SetDefault("ingest.kpi_min_value", 1000)
	v.SetDefault("ingest.batch_timeout_secs", 120)
	v.SetDefault("ingest.max_parallel_rows", 8)
	v.SetDefault("ingest.period_window_from", 2015)
	v.SetDefault("ingest.period_window_to", 2035)
	v.SetDefault("reconcile.band_low_ratio", 0.1)
	v.SetDefault("reconcile.band_high_ratio", 10.0)
	v.SetDefault("reconcile.ytd_abs_tolerance", 1000)
	v.SetDefault("reconcile.ytd_rel_tolerance", 0.02)
	v.SetDefault("aliases.line_items_path", "config/line_items.yaml")
	v.SetDefault("aliases.periods_path", "config/periods.yaml")
	v.SetDefault("aliases.templates_path", "config/question_templates.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.upload_rate_limit", 2)
	v.SetDefault("server.upload_burst", 5)
	v.SetDefault("ftp.timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
