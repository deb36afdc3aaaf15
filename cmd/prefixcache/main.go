// Package main is the entry point for the prefixcache CLI. It stores token
// sequences with their payloads in an object storage backend and answers
// longest-prefix lookups against the index built for one invocation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/kvgate/internal/prefixcache"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	command := os.Args[1]
	switch command {
	case "store", "lookup", "load", "stats":
		if err := run(command, os.Args[2:], logger); err != nil {
			logger.Error().Err(err).Str("command", command).Msg("command failed")
			os.Exit(1)
		}

	case "version":
		fmt.Printf("prefixcache\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

type cliOptions struct {
	tokens        string
	dataFile      string
	owner         string
	priority      int
	maxLen        int
	objID         string
	usableLen     int64
	outFile       string
	blockSize     int
	bytesPerToken int

	backend            string
	s3Endpoint         string
	s3Bucket           string
	s3CreateBucket     bool
	s3TimeoutMS        int
	s3ConnectTimeoutMS int
	s3Insecure         bool
	s3AccessKey        string
	s3SecretKey        string
	s3Region           string

	redisAddr     string
	redisPassword string
	redisDB       int
}

func parseFlags(command string, args []string) (*cliOptions, error) {
	flags := pflag.NewFlagSet("prefixcache "+command, pflag.ContinueOnError)
	opts := &cliOptions{}

	flags.StringVar(&opts.tokens, "tokens", "", "comma-separated token sequence")
	flags.StringVar(&opts.dataFile, "data-file", "", "payload file to store")
	flags.StringVar(&opts.owner, "owner", "", "owner id recorded with the entry")
	flags.IntVar(&opts.priority, "priority", 0, "entry priority")
	flags.IntVar(&opts.maxLen, "max-len", 0, "longest prefix in tokens to consider")
	flags.StringVar(&opts.objID, "obj-id", "", "object id to load")
	flags.Int64Var(&opts.usableLen, "usable-len", 0, "bytes to load, 0 loads everything")
	flags.StringVar(&opts.outFile, "out-file", "", "write loaded bytes here instead of stdout")
	flags.IntVar(&opts.blockSize, "block-size", 8, "prefix alignment in tokens")
	flags.IntVar(&opts.bytesPerToken, "bytes-per-token", 0, "usable bytes per token, 0 = proportional")

	flags.StringVar(&opts.backend, "backend", "s3", "storage backend: s3, redis or memory")
	flags.StringVar(&opts.s3Endpoint, "s3-endpoint", "", "object store URL, e.g. http://127.0.0.1:9000")
	flags.StringVar(&opts.s3Bucket, "s3-bucket", "prompt-cache", "bucket holding cache objects")
	flags.BoolVar(&opts.s3CreateBucket, "s3-create-bucket", false, "create the bucket on startup")
	flags.IntVar(&opts.s3TimeoutMS, "s3-timeout-ms", 5000, "request timeout in milliseconds")
	flags.IntVar(&opts.s3ConnectTimeoutMS, "s3-connect-timeout-ms", 2000, "connect timeout in milliseconds")
	flags.BoolVar(&opts.s3Insecure, "s3-insecure", false, "disable TLS verification")
	flags.StringVar(&opts.s3AccessKey, "s3-access-key", "AKIDEXAMPLE", "access key id")
	flags.StringVar(&opts.s3SecretKey, "s3-secret-key", "YOURSECRET", "secret key")
	flags.StringVar(&opts.s3Region, "s3-region", "us-east-1", "signing region")
	flags.StringVar(&opts.redisAddr, "redis-addr", "127.0.0.1:6379", "redis address, host:port")
	flags.StringVar(&opts.redisPassword, "redis-password", "", "redis password")
	flags.IntVar(&opts.redisDB, "redis-db", 0, "redis logical database")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(command string, args []string, logger zerolog.Logger) error {
	opts, err := parseFlags(command, args)
	if err != nil {
		return err
	}

	ctx := context.Background()

	storage, err := newStorage(ctx, opts, logger)
	if err != nil {
		return err
	}
	if closer, ok := storage.(io.Closer); ok {
		defer closer.Close()
	}

	cache, err := prefixcache.New(prefixcache.Config{
		BlockSize:     opts.blockSize,
		BytesPerToken: opts.bytesPerToken,
		Storage:       storage,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	switch command {
	case "store":
		return runStore(ctx, cache, opts)
	case "lookup":
		return runLookup(ctx, cache, opts)
	case "load":
		return runLoad(ctx, cache, opts)
	case "stats":
		return runStats(ctx, cache, storage)
	}
	return nil
}

func newStorage(ctx context.Context, opts *cliOptions, logger zerolog.Logger) (prefixcache.Storage, error) {
	switch opts.backend {
	case "s3":
		if opts.s3Endpoint == "" {
			return nil, errors.New("S3 endpoint is required")
		}
		return prefixcache.NewS3Storage(ctx, prefixcache.S3Config{
			Endpoint:       opts.s3Endpoint,
			Bucket:         opts.s3Bucket,
			CreateBucket:   opts.s3CreateBucket,
			AccessKey:      opts.s3AccessKey,
			SecretKey:      opts.s3SecretKey,
			Region:         opts.s3Region,
			Timeout:        time.Duration(opts.s3TimeoutMS) * time.Millisecond,
			ConnectTimeout: time.Duration(opts.s3ConnectTimeoutMS) * time.Millisecond,
			InsecureTLS:    opts.s3Insecure,
			Logger:         logger,
		})

	case "redis":
		return prefixcache.NewRedisStorage(ctx, prefixcache.RedisConfig{
			Addr:     opts.redisAddr,
			Password: opts.redisPassword,
			DB:       opts.redisDB,
			Logger:   logger,
		})

	case "memory":
		return prefixcache.NewMemoryStorage(), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", opts.backend)
	}
}

func runStore(ctx context.Context, cache *prefixcache.Cache, opts *cliOptions) error {
	if opts.tokens == "" || opts.dataFile == "" {
		return errors.New("store requires --tokens and --data-file")
	}

	data, err := os.ReadFile(opts.dataFile)
	if err != nil {
		return fmt.Errorf("read data file: %w", err)
	}

	res, err := cache.Store(ctx, splitTokens(opts.tokens), data, opts.owner, opts.priority)
	if err != nil {
		return err
	}

	fmt.Printf("obj_id=%s\n", res.ObjID)
	fmt.Printf("prefixes=%d\n", res.PrefixesIndexed)
	return nil
}

func runLookup(ctx context.Context, cache *prefixcache.Cache, opts *cliOptions) error {
	if opts.tokens == "" {
		return errors.New("lookup requires --tokens")
	}

	res, ok := cache.Lookup(ctx, splitTokens(opts.tokens), opts.maxLen)
	if !ok {
		fmt.Println("hit=false")
		return nil
	}

	fmt.Println("hit=true")
	fmt.Printf("obj_id=%s\n", res.ObjID)
	fmt.Printf("usable_len_bytes=%d\n", res.UsableLenBytes)
	fmt.Printf("prefix_tokens=%d\n", res.PrefixTokens)
	return nil
}

func runLoad(ctx context.Context, cache *prefixcache.Cache, opts *cliOptions) error {
	if opts.objID == "" {
		return errors.New("load requires --obj-id")
	}

	data, err := cache.Load(ctx, opts.objID, opts.usableLen)
	if errors.Is(err, prefixcache.ErrObjectMissing) {
		return errors.New("Object not found")
	}
	if err != nil {
		return err
	}

	if opts.outFile != "" {
		if err := os.WriteFile(opts.outFile, data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("wrote=%s\n", opts.outFile)
		return nil
	}

	_, err = os.Stdout.Write(data)
	return err
}

// runStats counts objects in storage rather than in the per-invocation
// index, which starts empty every run.
func runStats(ctx context.Context, cache *prefixcache.Cache, storage prefixcache.Storage) error {
	objects, err := storage.Size(ctx)
	if err != nil {
		return err
	}

	stats := cache.Stats()
	fmt.Printf("objects=%d\n", objects)
	fmt.Printf("prefixes=%d\n", stats.Prefixes)
	fmt.Printf("block_size=%d\n", stats.BlockSize)
	return nil
}

// splitTokens splits a comma-separated token list, dropping empty entries.
func splitTokens(s string) []string {
	var tokens []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

func printUsage() {
	fmt.Println(`prefixcache - token-prefix cache over object storage

Usage:
  prefixcache <command> [flags]

Commands:
  store       Store a payload and index its aligned token prefixes
  lookup      Find the longest indexed prefix of a token sequence
  load        Fetch an object's leading bytes from storage
  stats       Print object and index counters
  version     Print version information
  help        Show this help message

Flags:
  --tokens a,b,c             comma-separated token sequence
  --data-file path           payload file to store
  --owner id                 owner recorded with the entry
  --priority n               entry priority
  --max-len n                longest prefix in tokens to consider
  --obj-id id                object id to load
  --usable-len n             bytes to load, 0 loads everything
  --out-file path            write loaded bytes to a file
  --block-size n             prefix alignment in tokens (default 8)
  --bytes-per-token n        usable bytes per token, 0 = proportional
  --backend name             s3, redis or memory (default s3)
  --s3-endpoint url          object store URL (required for the s3 backend)
  --s3-bucket name           bucket holding cache objects (default prompt-cache)
  --s3-create-bucket         create the bucket on startup
  --s3-timeout-ms n          request timeout (default 5000)
  --s3-connect-timeout-ms n  connect timeout (default 2000)
  --s3-insecure              disable TLS verification
  --s3-access-key id         access key id
  --s3-secret-key key        secret key
  --s3-region name           signing region (default us-east-1)
  --redis-addr host:port     redis address (default 127.0.0.1:6379)
  --redis-password pass      redis password
  --redis-db n               redis logical database

Examples:
  prefixcache store --tokens a,b,c,d,e,f,g,h --data-file payload.bin --s3-endpoint http://127.0.0.1:9000
  prefixcache lookup --tokens a,b,c,d,e,f,g,h --s3-endpoint http://127.0.0.1:9000
  prefixcache load --obj-id 4c2a... --usable-len 4096 --out-file head.bin --s3-endpoint http://127.0.0.1:9000
  prefixcache stats --s3-endpoint http://127.0.0.1:9000`)
}
