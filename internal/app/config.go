package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultGraphQLEndpoint = "http://localhost:8090/query"
	DefaultUserAgent       = "luxestore-search/1.0"
)

type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	LogLevel  string
	LogFormat string
	UserAgent string

	GraphQLEndpoint      string
	UpstreamTimeout      time.Duration
	RetryAttempts        int
	RetryDelay           time.Duration
	CacheTTL             time.Duration
	RefreshInterval      time.Duration
	PlaceholderEnabled   bool
	SnapshotStoreTimeout time.Duration

	RedisURL        string
	MongoURI        string
	MongoDB         string
	MongoCollection string
	PostgresDSN     string

	RateLimitRPS   float64
	RateLimitBurst int
}

// rawEnv mirrors the process environment. Numeric fields use lenient
// decoders so a malformed value degrades to the default instead of
// failing startup.
type rawEnv struct {
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8090"`
	GRPCAddr  string `envconfig:"GRPC_ADDR"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	UserAgent string `envconfig:"SEARCH_USER_AGENT"`

	PublicGraphQLEndpoint string `envconfig:"NEXT_PUBLIC_GRAPHQL_ENDPOINT"`
	GraphQLEndpoint       string `envconfig:"GRAPHQL_ENDPOINT"`

	UpstreamTimeout      positiveDuration `envconfig:"UPSTREAM_TIMEOUT"`
	RetryAttempts        positiveInt      `envconfig:"UPSTREAM_RETRY_ATTEMPTS"`
	RetryDelay           positiveDuration `envconfig:"UPSTREAM_RETRY_DELAY"`
	CacheTTL             positiveDuration `envconfig:"CATALOG_CACHE_TTL"`
	RefreshInterval      intervalDuration `envconfig:"CATALOG_REFRESH_INTERVAL"`
	PlaceholderEnabled   lenientBool      `envconfig:"CATALOG_PLACEHOLDER_ENABLED"`
	SnapshotStoreTimeout positiveDuration `envconfig:"SNAPSHOT_STORE_TIMEOUT"`

	RedisURL        string `envconfig:"REDIS_URL"`
	MongoURI        string `envconfig:"MONGO_URI"`
	MongoDB         string `envconfig:"MONGO_DB"`
	MongoCollection string `envconfig:"MONGO_COLLECTION"`
	PostgresDSN     string `envconfig:"POSTGRES_DSN"`

	RateLimitRPS   positiveFloat `envconfig:"HTTP_RATE_LIMIT_RPS"`
	RateLimitBurst positiveInt   `envconfig:"HTTP_RATE_LIMIT_BURST"`
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	var env rawEnv
	if err := envconfig.Process("", &env); err != nil {
		// Every field decodes leniently, so this only trips on a broken tag.
		env = rawEnv{}
	}

	endpoint := strings.TrimSpace(env.PublicGraphQLEndpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(env.GraphQLEndpoint)
	}

	return Config{
		HTTPAddr:  orDefault(env.HTTPAddr, ":8090"),
		GRPCAddr:  strings.TrimSpace(env.GRPCAddr),
		LogLevel:  strings.ToLower(orDefault(env.LogLevel, "info")),
		LogFormat: strings.ToLower(orDefault(env.LogFormat, "text")),
		UserAgent: orDefault(env.UserAgent, DefaultUserAgent),

		GraphQLEndpoint:      orDefault(endpoint, DefaultGraphQLEndpoint),
		UpstreamTimeout:      env.UpstreamTimeout.or(30 * time.Second),
		RetryAttempts:        env.RetryAttempts.or(3),
		RetryDelay:           env.RetryDelay.or(2 * time.Second),
		CacheTTL:             env.CacheTTL.or(10 * time.Minute),
		RefreshInterval:      env.RefreshInterval.or(time.Minute),
		PlaceholderEnabled:   env.PlaceholderEnabled.or(true),
		SnapshotStoreTimeout: env.SnapshotStoreTimeout.or(3 * time.Second),

		RedisURL:        strings.TrimSpace(env.RedisURL),
		MongoURI:        strings.TrimSpace(env.MongoURI),
		MongoDB:         orDefault(env.MongoDB, "luxestore"),
		MongoCollection: orDefault(env.MongoCollection, "catalog_snapshots"),
		PostgresDSN:     strings.TrimSpace(env.PostgresDSN),

		RateLimitRPS:   env.RateLimitRPS.or(50),
		RateLimitBurst: env.RateLimitBurst.or(100),
	}
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

type positiveDuration time.Duration

func (d *positiveDuration) Decode(value string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err == nil && parsed > 0 {
		*d = positiveDuration(parsed)
	}
	return nil
}

func (d positiveDuration) or(fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return time.Duration(d)
}

// intervalDuration accepts zero, which disables the background refresher.
type intervalDuration struct {
	set   bool
	value time.Duration
}

func (d *intervalDuration) Decode(value string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err == nil && parsed >= 0 {
		*d = intervalDuration{set: true, value: parsed}
	}
	return nil
}

func (d intervalDuration) or(fallback time.Duration) time.Duration {
	if !d.set {
		return fallback
	}
	return d.value
}

type positiveInt int

func (n *positiveInt) Decode(value string) error {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err == nil && parsed > 0 {
		*n = positiveInt(parsed)
	}
	return nil
}

func (n positiveInt) or(fallback int) int {
	if n <= 0 {
		return fallback
	}
	return int(n)
}

type positiveFloat float64

func (f *positiveFloat) Decode(value string) error {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err == nil && parsed > 0 {
		*f = positiveFloat(parsed)
	}
	return nil
}

func (f positiveFloat) or(fallback float64) float64 {
	if f <= 0 {
		return fallback
	}
	return float64(f)
}

// lenientBool keeps the unset state distinct from an explicit false.
type lenientBool struct {
	set   bool
	value bool
}

func (b *lenientBool) Decode(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		*b = lenientBool{set: true, value: true}
	case "0", "false", "no", "off":
		*b = lenientBool{set: true, value: false}
	}
	return nil
}

func (b lenientBool) or(fallback bool) bool {
	if !b.set {
		return fallback
	}
	return b.value
}
