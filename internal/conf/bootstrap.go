// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Rate limiting strategies accepted by limiter.strategy.
const (
	StrategyFixedWindow   = "fixed_window"
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

// Storage backends accepted by limiter.backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with COVERLANE_.
//
// Configuration priority: Environment variables > Config file > Defaults
//
// Optional environment variables:
//   - REDIS_ADDR or COVERLANE_DATA_REDIS_ADDR: enables the Redis backends
//   - MYSQL_DSN or COVERLANE_DATA_DATABASE_SOURCE: enables generation history
//   - S3_ACCESS_KEY / S3_SECRET_KEY: credentials for rendered image storage
//   - RENDER_API_KEY: bearer token for the render service
//   - RENDER_PROXY: socks5:// or http(s):// proxy for render calls
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("COVERLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "COVERLANE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "REDIS_ADDR", "COVERLANE_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.redis.password", "REDIS_PASSWORD", "COVERLANE_DATA_REDIS_PASSWORD")
	_ = v.BindEnv("data.s3.access_key", "S3_ACCESS_KEY", "COVERLANE_DATA_S3_ACCESS_KEY")
	_ = v.BindEnv("data.s3.secret_key", "S3_SECRET_KEY", "COVERLANE_DATA_S3_SECRET_KEY")
	_ = v.BindEnv("data.render.api_key", "RENDER_API_KEY", "COVERLANE_DATA_RENDER_API_KEY")
	_ = v.BindEnv("data.render.proxy", "RENDER_PROXY", "COVERLANE_DATA_RENDER_PROXY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
			Grpc: &Server_GRPC{
				Network: v.GetString("server.grpc.network"),
				Addr:    v.GetString("server.grpc.addr"),
				Timeout: durationpb.New(v.GetDuration("server.grpc.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				Password:     v.GetString("data.redis.password"),
				Db:           v.GetInt32("data.redis.db"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
			S3: &Data_S3{
				Bucket:    v.GetString("data.s3.bucket"),
				Region:    v.GetString("data.s3.region"),
				Endpoint:  v.GetString("data.s3.endpoint"),
				AccessKey: v.GetString("data.s3.access_key"),
				SecretKey: v.GetString("data.s3.secret_key"),
				PublicURL: v.GetString("data.s3.public_url"),
				KeyPrefix: v.GetString("data.s3.key_prefix"),
			},
			Render: &Data_Render{
				Endpoint: v.GetString("data.render.endpoint"),
				ApiKey:   v.GetString("data.render.api_key"),
				Timeout:  durationpb.New(v.GetDuration("data.render.timeout")),
				Proxy:    v.GetString("data.render.proxy"),
				Rps:      v.GetFloat64("data.render.rps"),
				Burst:    v.GetInt32("data.render.burst"),
			},
		},
		Limiter: &Limiter{
			Strategy: v.GetString("limiter.strategy"),
			Backend:  v.GetString("limiter.backend"),
			Limit:    v.GetInt32("limiter.limit"),
			Window:   durationpb.New(v.GetDuration("limiter.window")),
			MaxKeys:  v.GetInt32("limiter.max_keys"),
		},
		Cache: &Cache{
			MaxSize:      v.GetInt32("cache.max_size"),
			DefaultTtl:   durationpb.New(v.GetDuration("cache.default_ttl")),
			MaxKeyLength: v.GetInt32("cache.max_key_length"),
			Mirror:       v.GetBool("cache.mirror"),
		},
		Generation: &Generation{
			Parallel:       v.GetBool("generation.parallel"),
			MaxConcurrency: v.GetInt32("generation.max_concurrency"),
			FailFast:       v.GetBool("generation.fail_fast"),
			MaxPlatforms:   v.GetInt32("generation.max_platforms"),
			MaxTextLength:  v.GetInt32("generation.max_text_length"),
		},
		Maintenance: &Maintenance{
			CacheSweep:     v.GetString("maintenance.cache_sweep"),
			LimiterCleanup: v.GetString("maintenance.limiter_cleanup"),
			CacheStats:     v.GetString("maintenance.cache_stats"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	v.SetDefault("server.grpc.network", "tcp")
	v.SetDefault("server.grpc.addr", ":9000")
	v.SetDefault("server.grpc.timeout", 2*time.Minute)

	v.SetDefault("data.database.driver", "mysql")

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	v.SetDefault("data.s3.region", "us-east-1")
	v.SetDefault("data.s3.key_prefix", "covers")

	v.SetDefault("data.render.endpoint", "http://127.0.0.1:8500/render")
	v.SetDefault("data.render.timeout", 60*time.Second)
	v.SetDefault("data.render.rps", 5.0)
	v.SetDefault("data.render.burst", 5)

	v.SetDefault("limiter.strategy", StrategyTokenBucket)
	v.SetDefault("limiter.backend", BackendMemory)
	v.SetDefault("limiter.limit", 10)
	v.SetDefault("limiter.window", time.Minute)
	v.SetDefault("limiter.max_keys", 10000)

	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.default_ttl", time.Hour)
	v.SetDefault("cache.max_key_length", 200)
	v.SetDefault("cache.mirror", false)

	v.SetDefault("generation.parallel", true)
	v.SetDefault("generation.max_concurrency", 3)
	v.SetDefault("generation.fail_fast", false)
	v.SetDefault("generation.max_platforms", 10)
	v.SetDefault("generation.max_text_length", 10000)

	v.SetDefault("maintenance.cache_sweep", "@every 5m")
	v.SetDefault("maintenance.limiter_cleanup", "@every 10m")
	v.SetDefault("maintenance.cache_stats", "@every 30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that configuration values are usable.
// It returns an error listing every invalid field.
func Validate(bc *Bootstrap) error {
	var invalid []string

	if bc.Limiter == nil {
		invalid = append(invalid, "limiter")
	} else {
		switch bc.Limiter.Strategy {
		case StrategyFixedWindow, StrategySlidingWindow, StrategyTokenBucket:
		default:
			invalid = append(invalid, fmt.Sprintf("limiter.strategy (%q)", bc.Limiter.Strategy))
		}
		switch bc.Limiter.Backend {
		case BackendMemory, BackendRedis:
		default:
			invalid = append(invalid, fmt.Sprintf("limiter.backend (%q)", bc.Limiter.Backend))
		}
		if bc.Limiter.Window == nil || bc.Limiter.Window.AsDuration() <= 0 {
			invalid = append(invalid, "limiter.window (must be positive)")
		}
	}

	if bc.Cache == nil || bc.Cache.MaxSize <= 0 {
		invalid = append(invalid, "cache.max_size (must be positive)")
	}

	if bc.Generation == nil {
		invalid = append(invalid, "generation")
	} else {
		if bc.Generation.MaxConcurrency <= 0 {
			invalid = append(invalid, "generation.max_concurrency (must be positive)")
		}
		if bc.Generation.MaxPlatforms <= 0 || bc.Generation.MaxPlatforms > 10 {
			invalid = append(invalid, "generation.max_platforms (1..10)")
		}
	}

	if bc.Limiter != nil && bc.Limiter.Backend == BackendRedis &&
		(bc.Data == nil || bc.Data.Redis == nil || bc.Data.Redis.Addr == "") {
		invalid = append(invalid, "data.redis.addr (REDIS_ADDR, required by limiter.backend=redis)")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration fields: %s", strings.Join(invalid, ", "))
	}

	return nil
}
