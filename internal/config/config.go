// Package config provides configuration management for the gateway.
// Values come from flags, KVGATE_* environment variables and an optional
// YAML file, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage engine names accepted by --engine.
const (
	EngineBolt     = "bolt"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Authentication modes accepted by --auth.
const (
	AuthNone  = "none"
	AuthSigV4 = "sigv4"
)

// Log output formats accepted by --log_format.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config represents the complete gateway configuration.
type Config struct {
	// Listen is the bind address, host:port.
	Listen string `mapstructure:"listen"`

	// Engine selects the KV backend: bolt, sqlite or postgres.
	Engine string `mapstructure:"engine"`

	// DBPath is the database file for the bolt and sqlite engines.
	DBPath string `mapstructure:"db_path"`

	// DSN is the PostgreSQL connection string for the postgres engine.
	DSN string `mapstructure:"dsn"`

	// Threads caps GOMAXPROCS when positive.
	Threads int `mapstructure:"threads"`

	// CacheMB is the engine cache hint in MiB.
	CacheMB int `mapstructure:"cache_mb"`

	// MaxObjectMB caps PUT bodies in MiB.
	MaxObjectMB int `mapstructure:"max_object_mb"`

	// Auth selects request authentication: none or sigv4.
	Auth string `mapstructure:"auth"`

	// AccessKey and SecretKey are the static sigv4 credential pair.
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	// Region is the credential scope region accepted by the verifier.
	Region string `mapstructure:"region"`

	// VirtualHostSuffix enables virtual-host style addressing when set.
	VirtualHostSuffix string `mapstructure:"virtual_host_suffix"`

	// DisableWAL relaxes engine durability: bolt skips commit fsync,
	// sqlite turns its journal off.
	DisableWAL bool `mapstructure:"disable_wal"`

	// Sync forces full fsync on the sqlite engine.
	Sync bool `mapstructure:"sync"`

	// LogLevel is the zerolog level name.
	LogLevel string `mapstructure:"log_level"`

	// LogFormat selects json or console output.
	LogFormat string `mapstructure:"log_format"`
}

// MaxObjectBytes returns the PUT body cap in bytes.
func (c *Config) MaxObjectBytes() int64 {
	return int64(c.MaxObjectMB) << 20
}

// Load reads configuration from defaults, the optional YAML file at
// configPath, KVGATE_* environment variables, and the given flag set.
// Changed flags win over environment, environment wins over the file.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("KVGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:9000")
	v.SetDefault("engine", EngineBolt)
	v.SetDefault("db_path", "./kvgate.db")
	v.SetDefault("dsn", "")
	v.SetDefault("threads", 0)
	v.SetDefault("cache_mb", 512)
	v.SetDefault("max_object_mb", 64)
	v.SetDefault("auth", AuthNone)
	v.SetDefault("access_key", "AKIDEXAMPLE")
	v.SetDefault("secret_key", "YOURSECRET")
	v.SetDefault("region", "us-east-1")
	v.SetDefault("virtual_host_suffix", "")
	v.SetDefault("disable_wal", false)
	v.SetDefault("sync", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", LogFormatJSON)
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	switch c.Engine {
	case EngineBolt, EngineSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the %s engine", c.Engine)
		}
	case EnginePostgres:
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres engine")
		}
	default:
		return fmt.Errorf("engine must be one of: bolt, sqlite, postgres")
	}

	if c.MaxObjectMB < 1 {
		return fmt.Errorf("max_object_mb must be at least 1")
	}

	switch c.Auth {
	case AuthNone:
	case AuthSigV4:
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("access_key and secret_key are required for sigv4 auth")
		}
	default:
		return fmt.Errorf("auth must be 'none' or 'sigv4'")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level %q is not a zerolog level", c.LogLevel)
	}

	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatConsole {
		return fmt.Errorf("log_format must be 'json' or 'console'")
	}

	return nil
}
