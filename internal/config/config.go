package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/tigerpoly/internal/polybuild"
	"github.com/sells-group/tigerpoly/internal/tiger"
)

// Config holds the full application configuration.
type Config struct {
	Build BuildConfig `yaml:"build" mapstructure:"build"`
	Tiger TigerConfig `yaml:"tiger" mapstructure:"tiger"`
	Fetch FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// BuildConfig configures polygon reconstruction.
type BuildConfig struct {
	Output     string  `yaml:"output" mapstructure:"output"`
	Tolerance  float64 `yaml:"tolerance" mapstructure:"tolerance"`
	BestEffort bool    `yaml:"best_effort" mapstructure:"best_effort"`
}

// TigerConfig configures reading TIGER/Line datasources.
type TigerConfig struct {
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures downloading county archives.
type FetchConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	DestDir     string `yaml:"dest_dir" mapstructure:"dest_dir"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TIGERPOLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("build.output", polybuild.DefaultOutput)
	v.SetDefault("build.tolerance", 0.0)
	v.SetDefault("build.best_effort", false)
	v.SetDefault("tiger.temp_dir", "")
	v.SetDefault("tiger.concurrency", 4)
	v.SetDefault("fetch.base_url", tiger.DefaultBaseURL)
	v.SetDefault("fetch.dest_dir", "./tiger")
	v.SetDefault("fetch.concurrency", 3)
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "tigerpoly/1.0")

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

// Validate checks the settings a command mode depends on: "build" or
// "fetch".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "build":
		if c.Build.Output == "" {
			errs = append(errs, "build.output is required")
		}
		if c.Build.Tolerance < 0 {
			errs = append(errs, "build.tolerance must be >= 0")
		}
		if c.Tiger.Concurrency < 1 || c.Tiger.Concurrency > 64 {
			errs = append(errs, "tiger.concurrency must be between 1 and 64")
		}
	case "fetch":
		if !strings.HasPrefix(c.Fetch.BaseURL, "http://") &&
			!strings.HasPrefix(c.Fetch.BaseURL, "https://") &&
			!strings.HasPrefix(c.Fetch.BaseURL, "ftp://") {
			errs = append(errs, "fetch.base_url must be an http, https or ftp URL")
		}
		if c.Fetch.DestDir == "" {
			errs = append(errs, "fetch.dest_dir is required")
		}
		if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 16 {
			errs = append(errs, "fetch.concurrency must be between 1 and 16")
		}
		if c.Fetch.TimeoutSecs <= 0 {
			errs = append(errs, "fetch.timeout_secs must be > 0")
		}
		if c.Fetch.MaxRetries < 1 {
			errs = append(errs, "fetch.max_retries must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
