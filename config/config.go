package config

import (
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StrategyLeastUsed = "least-used"
	StrategyRandom    = "random"
)

type StrategyConfig struct {
	Type string `mapstructure:"type"`
}

// BackendConfig describes one routable endpoint. Priority is passed through
// as configured: duplicates, gaps, and negative values are all accepted.
type BackendConfig struct {
	Host     string `mapstructure:"host"`
	Priority int    `mapstructure:"priority"`
	Path     string `mapstructure:"path"`
	APIKey   string `mapstructure:"api_key"`
}

// ClientConfig drives the demo client that issues chat-completion requests
// through the balancer.
type ClientConfig struct {
	Model          string `mapstructure:"model"`
	APIVersion     string `mapstructure:"api_version"`
	Requests       int    `mapstructure:"requests"`
	Concurrency    int    `mapstructure:"concurrency"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Environment string          `mapstructure:"environment"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Strategy    StrategyConfig  `mapstructure:"strategy"`
	Backends    []BackendConfig `mapstructure:"backends"`
	Client      ClientConfig    `mapstructure:"client"`
}

func Load() (*Config, error) {
	viper.SetDefault("environment", EnvDev)
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("strategy.type", StrategyLeastUsed)
	viper.SetDefault("client.model", "gpt-4o")
	viper.SetDefault("client.api_version", "2024-08-01-preview")
	viper.SetDefault("client.requests", 5)
	viper.SetDefault("client.concurrency", 4)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Strategy,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(StrategyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a StrategyConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Type,
						validation.Required,
						validation.In(StrategyLeastUsed, StrategyRandom),
					),
				)
			}),
		),
		validation.Field(&c.Backends,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateBackendConfig)),
		),
		validation.Field(&c.Client,
			validation.Required,
			validation.By(func(value interface{}) error {
				cc, ok := value.(ClientConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ClientConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.Model, validation.Required),
					validation.Field(&cc.APIVersion, validation.Required),
					validation.Field(&cc.Requests, validation.Required, validation.Min(1)),
					validation.Field(&cc.Concurrency, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

// validateBackendConfig checks the host only. Priority, path, and api_key
// are deliberately unconstrained; the balancer accepts whatever the caller
// configures there.
func validateBackendConfig(value interface{}) error {
	backend, ok := value.(BackendConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendConfig")
	}

	if backend.Host == "" {
		return validation.NewError("validation_empty_host", "backend host cannot be empty")
	}

	if strings.Contains(backend.Host, "://") {
		return validation.NewError("validation_invalid_host", "host must be an authority, not a URL")
	}

	if err := is.Host.Validate(backend.Host); err != nil {
		return validation.NewError("validation_invalid_host", "invalid host")
	}

	return nil
}
