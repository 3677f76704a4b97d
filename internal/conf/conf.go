package conf

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration of the CoverLane service.
// The layout mirrors configs/config.yaml one section per field.
type Bootstrap struct {
	Server      *Server
	Data        *Data
	Limiter     *Limiter
	Cache       *Cache
	Generation  *Generation
	Maintenance *Maintenance
	Log         *Log
}

// Server holds transport settings.
type Server struct {
	Http *Server_HTTP
	Grpc *Server_GRPC
}

// Server_HTTP is the HTTP listener configuration.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Server_GRPC is the gRPC listener configuration.
type Server_GRPC struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds settings for every external store and collaborator.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
	S3       *Data_S3
	Render   *Data_Render
}

// Data_Database configures the generation history store. An empty Source disables it.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis configures the optional Redis backend. An empty Addr disables it.
type Data_Redis struct {
	Network      string
	Addr         string
	Password     string
	Db           int32
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Data_S3 configures rendered-image storage. An empty Bucket stores images inline.
type Data_S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
	KeyPrefix string
}

// Data_Render configures the external render collaborator.
type Data_Render struct {
	Endpoint string
	ApiKey   string
	Timeout  *durationpb.Duration
	// Proxy is an optional socks5:// or http(s):// proxy for render calls.
	Proxy string
	// Rps and Burst throttle outbound render calls. Rps <= 0 disables throttling.
	Rps   float64
	Burst int32
}

// Limiter configures admission control.
type Limiter struct {
	Strategy string // fixed_window | sliding_window | token_bucket
	Backend  string // memory | redis
	Limit    int32
	Window   *durationpb.Duration
	MaxKeys  int32
}

// Cache configures the result cache.
type Cache struct {
	MaxSize      int32
	DefaultTtl   *durationpb.Duration
	MaxKeyLength int32
	// Mirror enables the Redis L2 copy of cached results.
	Mirror bool
}

// Generation configures the orchestrator defaults.
type Generation struct {
	Parallel       bool
	MaxConcurrency int32
	FailFast       bool
	MaxPlatforms   int32
	MaxTextLength  int32
}

// Maintenance holds cron specs for background jobs. Empty specs disable a job.
type Maintenance struct {
	CacheSweep     string
	LimiterCleanup string
	CacheStats     string
}

// Log configures the zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
