// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	KMA       KMAConfig       `yaml:"kma" mapstructure:"kma"`
	OpenMeteo OpenMeteoConfig `yaml:"open_meteo" mapstructure:"open_meteo"`
	NPMS      NPMSConfig      `yaml:"npms" mapstructure:"npms"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	SMS       SMSConfig       `yaml:"sms" mapstructure:"sms"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// KMAConfig holds KMA API Hub settings.
type KMAConfig struct {
	AuthKey string `yaml:"auth_key" mapstructure:"auth_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenMeteoConfig holds Open-Meteo settings. No key is required.
type OpenMeteoConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NPMSConfig holds NPMS open-API settings.
type NPMSConfig struct {
	APIKey           string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	DefaultInsectKey string `yaml:"default_insect_key" mapstructure:"default_insect_key"`
}

// AnthropicConfig holds Anthropic API settings for the report pipeline.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SMSConfig holds SOLAPI delivery settings.
type SMSConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	APISecret string `yaml:"api_secret" mapstructure:"api_secret"`
	Sender    string `yaml:"sender" mapstructure:"sender"`
	DryRun    bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("AGRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so env-only values are
	// visible to Unmarshal.
	v.SetDefault("kma.auth_key", "")
	v.SetDefault("npms.api_key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.api_secret", "")
	v.SetDefault("sms.sender", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "file:advisories.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("kma.base_url", "https://apihub.kma.go.kr")
	v.SetDefault("open_meteo.base_url", "https://api.open-meteo.com")
	v.SetDefault("npms.base_url", "http://ncpms.rda.go.kr")
	v.SetDefault("npms.default_insect_key", "202500209FT01060101322008")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("sms.dry_run", true)

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
