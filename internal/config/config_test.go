package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/kvgate/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, config.EngineBolt, cfg.Engine)
	require.Equal(t, "./kvgate.db", cfg.DBPath)
	require.Equal(t, 512, cfg.CacheMB)
	require.Equal(t, 64, cfg.MaxObjectMB)
	require.Equal(t, config.AuthNone, cfg.Auth)
	require.Equal(t, "us-east-1", cfg.Region)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, config.LogFormatJSON, cfg.LogFormat)
	require.Equal(t, int64(64<<20), cfg.MaxObjectBytes())
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("KVGATE_ENGINE", "sqlite")
	t.Setenv("KVGATE_DB_PATH", "/tmp/env.db")
	t.Setenv("KVGATE_MAX_OBJECT_MB", "8")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, config.EngineSQLite, cfg.Engine)
	require.Equal(t, "/tmp/env.db", cfg.DBPath)
	require.Equal(t, 8, cfg.MaxObjectMB)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("KVGATE_LISTEN", "127.0.0.1:1111")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen", "0.0.0.0:9000", "")
	flags.String("engine", "bolt", "")
	require.NoError(t, flags.Set("listen", "127.0.0.1:2222"))

	cfg, err := config.Load("", flags)
	require.NoError(t, err)

	// The changed flag wins; the untouched flag falls through to defaults.
	require.Equal(t, "127.0.0.1:2222", cfg.Listen)
	require.Equal(t, config.EngineBolt, cfg.Engine)
}

func TestLoadUnchangedFlagYieldsToEnv(t *testing.T) {
	t.Setenv("KVGATE_ENGINE", "sqlite")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("engine", "bolt", "")

	cfg, err := config.Load("", flags)
	require.NoError(t, err)
	require.Equal(t, config.EngineSQLite, cfg.Engine)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: sqlite\ndb_path: /tmp/file.db\ncache_mb: 32\n"), 0o644))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, config.EngineSQLite, cfg.Engine)
	require.Equal(t, "/tmp/file.db", cfg.DBPath)
	require.Equal(t, 32, cfg.CacheMB)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_mb: 32\n"), 0o644))
	t.Setenv("KVGATE_CACHE_MB", "128")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.CacheMB)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown engine", func(c *config.Config) { c.Engine = "rocks" }, "engine must be"},
		{"bolt without path", func(c *config.Config) { c.DBPath = "" }, "db_path is required"},
		{"postgres without dsn", func(c *config.Config) { c.Engine = config.EnginePostgres }, "dsn is required"},
		{"zero object cap", func(c *config.Config) { c.MaxObjectMB = 0 }, "max_object_mb"},
		{"unknown auth", func(c *config.Config) { c.Auth = "basic" }, "auth must be"},
		{"sigv4 without keys", func(c *config.Config) {
			c.Auth = config.AuthSigV4
			c.SecretKey = ""
		}, "secret_key"},
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
		{"empty listen", func(c *config.Config) { c.Listen = "" }, "listen"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("sigv4 with keys", func(t *testing.T) {
		cfg := base()
		cfg.Auth = config.AuthSigV4
		require.NoError(t, cfg.Validate())
	})
}
