// Package main is the entry point for the kvgate server, an S3-compatible
// object storage gateway over an ordered key-value engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/kvgate/internal/auth"
	"github.com/prn-tf/kvgate/internal/config"
	"github.com/prn-tf/kvgate/internal/handler"
	"github.com/prn-tf/kvgate/internal/kv"
	"github.com/prn-tf/kvgate/internal/kv/bolt"
	"github.com/prn-tf/kvgate/internal/kv/postgres"
	"github.com/prn-tf/kvgate/internal/kv/sqlite"
	"github.com/prn-tf/kvgate/internal/metrics"
	"github.com/prn-tf/kvgate/internal/server"
	"github.com/prn-tf/kvgate/internal/store"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// shutdownTimeout bounds the drain of in-flight requests after SIGINT or
// SIGTERM.
const shutdownTimeout = 15 * time.Second

func main() {
	flags := pflag.NewFlagSet("kvgate", pflag.ExitOnError)
	configPath := flags.String("config", "", "optional YAML config file")
	flags.String("listen", "0.0.0.0:9000", "bind address")
	flags.String("engine", "bolt", "storage engine: bolt, sqlite or postgres")
	flags.String("db_path", "./kvgate.db", "database file for the bolt and sqlite engines")
	flags.String("dsn", "", "postgres connection string")
	flags.Int("threads", 0, "GOMAXPROCS cap, 0 keeps the runtime default")
	flags.Int("cache_mb", 512, "engine cache hint in MiB")
	flags.Int("max_object_mb", 64, "largest accepted PUT body in MiB")
	flags.String("auth", "none", "request authentication: none or sigv4")
	flags.String("access_key", "AKIDEXAMPLE", "sigv4 access key id")
	flags.String("secret_key", "YOURSECRET", "sigv4 secret key")
	flags.String("region", "us-east-1", "sigv4 credential scope region")
	flags.String("virtual_host_suffix", "", "host suffix enabling virtual-host addressing")
	flags.Bool("disable_wal", false, "relax engine durability for throughput")
	flags.Bool("sync", false, "force full fsync on the sqlite engine")
	flags.String("log_level", "info", "zerolog level")
	flags.String("log_format", "json", "log output: json or console")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if cfg.Threads > 0 {
		runtime.GOMAXPROCS(cfg.Threads)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kvStore, err := openEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("engine", cfg.Engine).Msg("failed to open storage engine")
	}

	m := metrics.New()
	objects := store.New(kv.Observed(kvStore, m), logger)

	var verifier *auth.Verifier
	if cfg.Auth == config.AuthSigV4 {
		verifier = auth.NewVerifier(auth.Credentials{
			AccessKeyID: cfg.AccessKey,
			SecretKey:   cfg.SecretKey,
		}, logger)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Store:             objects,
		Verifier:          verifier,
		MaxObjectBytes:    cfg.MaxObjectBytes(),
		VirtualHostSuffix: cfg.VirtualHostSuffix,
		Logger:            logger,
	})

	srv := server.New(server.Config{Listen: cfg.Listen}, router, m, logger)

	logger.Info().
		Str("version", Version).
		Str("engine", cfg.Engine).
		Str("listen", cfg.Listen).
		Str("auth", cfg.Auth).
		Str("instance", srv.InstanceID()).
		Msg("starting kvgate")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown did not finish cleanly")
		}
	}

	if err := kvStore.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close storage engine")
	}
	logger.Info().Msg("kvgate stopped")
}

// newLogger builds the root logger; components derive tagged children from
// it.
func newLogger(cfg *config.Config) zerolog.Logger {
	// Level syntax was checked by config.Validate.
	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stderr
	if cfg.LogFormat == config.LogFormatConsole {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openEngine builds the KV store selected by cfg, mapping the shared
// durability flags onto each engine's own knobs.
func openEngine(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (kv.Store, error) {
	switch cfg.Engine {
	case config.EngineBolt:
		boltCfg := bolt.DefaultConfig(cfg.DBPath)
		boltCfg.CacheMB = cfg.CacheMB
		boltCfg.NoSync = cfg.DisableWAL
		return bolt.New(boltCfg)

	case config.EngineSQLite:
		liteCfg := sqlite.DefaultConfig(cfg.DBPath)
		liteCfg.CacheSize = -cfg.CacheMB * 1024 // negative cache_size is KiB
		if cfg.DisableWAL {
			liteCfg.JournalMode = "OFF"
		}
		if cfg.Sync {
			liteCfg.SynchronousMode = "FULL"
		}
		return sqlite.New(ctx, liteCfg, logger)

	case config.EnginePostgres:
		return postgres.New(ctx, postgres.DefaultConfig(cfg.DSN), logger)

	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
