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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Meraki MerakiConfig `yaml:"meraki" mapstructure:"meraki"`
	RDAP   RDAPConfig   `yaml:"rdap" mapstructure:"rdap"`
	DDNS   DDNSConfig   `yaml:"ddns" mapstructure:"ddns"`
	Match  MatchConfig  `yaml:"match" mapstructure:"match"`
	Enrich EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MerakiConfig holds appliance vendor API settings.
type MerakiConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	OrgID       string `yaml:"org_id" mapstructure:"org_id"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RDAPConfig configures the IP registry lookup client.
type RDAPConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	MinDelayMS   int     `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMS   int     `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	BackoffMul   float64 `yaml:"backoff_mul" mapstructure:"backoff_mul"`
	DecayAfter   int     `yaml:"decay_after" mapstructure:"decay_after"`
}

// DDNSConfig configures hostname fallback for interfaces that only expose a
// private IP.
type DDNSConfig struct {
	Domain      string `yaml:"domain" mapstructure:"domain"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MatchConfig holds the fuzzy-match and flip-detection thresholds. These are
// empirically tuned, not derived; see config.yaml to adjust.
type MatchConfig struct {
	ProviderThreshold float64 `yaml:"provider_threshold" mapstructure:"provider_threshold"`
	FlipThreshold     int     `yaml:"flip_threshold" mapstructure:"flip_threshold"`
	ProviderTablePath string  `yaml:"provider_table_path" mapstructure:"provider_table_path"`
}

// EnrichConfig configures the batch enrichment run.
type EnrichConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
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
	v.SetEnvPrefix("CIRCUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("meraki.base_url", "https://api.meraki.com/api/v1")
	v.SetDefault("meraki.timeout_secs", 30)
	v.SetDefault("rdap.base_url", "https://rdap.arin.net/registry")
	v.SetDefault("rdap.timeout_secs", 10)
	v.SetDefault("rdap.max_retries", 5)
	v.SetDefault("rdap.min_delay_ms", 100)
	v.SetDefault("rdap.max_delay_ms", 30000)
	v.SetDefault("rdap.backoff_mul", 2.0)
	v.SetDefault("rdap.decay_after", 10)
	v.SetDefault("ddns.domain", "dynamic-m.com")
	v.SetDefault("ddns.timeout_secs", 5)
	v.SetDefault("match.provider_threshold", 70)
	v.SetDefault("match.flip_threshold", 2)
	v.SetDefault("enrich.concurrency", 10)
	v.SetDefault("enrich.batch_size", 50)

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
