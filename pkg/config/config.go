package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"proslots/pkg/civiltime"
	"proslots/pkg/client"
	"proslots/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotTimeZone string
	Location     *time.Location

	Release ReleaseConfig

	Log    *logger.Logger
	Client *client.Client
}

// ReleaseConfig configures the durable slot release queue. An empty QueueURL
// disables automatic release.
type ReleaseConfig struct {
	QueueURL     string
	QueuePrefix  string
	ConnTimeout  time.Duration
	Concurrency  int
	PollInterval time.Duration
	LeaseTimeout time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	BatchSize    int
}

func (r ReleaseConfig) Enabled() bool {
	return strings.TrimSpace(r.QueueURL) != ""
}

// Load reads the configuration from the environment, after merging an
// optional .env file, and exits the process when it is invalid.
func Load(serviceName string) *Config {
	envErr := loadEnvFile(getEnvStr(EnvEnvFile, ".env"))

	cfg := FromEnv(serviceName)

	if envErr != nil {
		cfg.Log.Warn("Failed to load env file", "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the process environment without validating it.
func FromEnv(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRPS:   getEnvFloat(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: getEnvNum(EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotTimeZone: getEnvStr(EnvSlotTimeZone, DefaultSlotTimeZone),

		Release: ReleaseConfig{
			QueueURL:     getEnvStr(EnvReleaseQueueURL, ""),
			QueuePrefix:  getEnvStr(EnvReleaseQueuePrefix, DefaultReleaseQueuePrefix),
			ConnTimeout:  getEnvDuration(EnvReleaseConnTimeout, DefaultReleaseConnTimeout),
			Concurrency:  getEnvNum(EnvReleaseConcurrency, DefaultReleaseConcurrency),
			PollInterval: getEnvDuration(EnvReleasePollInterval, DefaultReleasePollInterval),
			LeaseTimeout: getEnvDuration(EnvReleaseLeaseTimeout, DefaultReleaseLeaseTimeout),
			MaxAttempts:  getEnvNum(EnvReleaseMaxAttempts, DefaultReleaseMaxAttempts),
			BackoffBase:  getEnvDuration(EnvReleaseBackoffBase, DefaultReleaseBackoffBase),
			BackoffMax:   getEnvDuration(EnvReleaseBackoffMax, DefaultReleaseBackoffMax),
			BatchSize:    getEnvNum(EnvReleaseBatchSize, DefaultReleaseBatchSize),
		},

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, logger.JSON),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if loc, err := civiltime.LoadZone(cfg.SlotTimeZone); err == nil {
		cfg.Location = loc
	}

	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the release queue store and reports whether automatic
// slot release is configured. Only a missing URL disables it. A server that
// is down at boot keeps its client, so release jobs are retried and the
// sweep repairs them once it answers.
func (cfg *Config) SetRedis() bool {
	if !cfg.Release.Enabled() {
		cfg.Log.Warn("Release queue URL not set, automatic slot release is disabled")
		return false
	}

	err := cfg.Client.SetRedis(cfg.Log, cfg.Release.QueueURL, cfg.Release.ConnTimeout)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrRedisUnreachable):
		cfg.Log.Error("Release queue unreachable, release jobs will be recovered once it answers", "error", err)
	default:
		cfg.Log.Fatal("Invalid release queue URL", "url", redactRedisURL(cfg.Release.QueueURL), "error", err)
	}
	return true
}

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}

	if cfg.Location == nil {
		errs = append(errs, fmt.Sprintf("SlotTimeZone must be a valid IANA time zone, got: %s", cfg.SlotTimeZone))
	}

	if cfg.MongoConnTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errs = append(errs, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Sprintf("RateLimitRPS must be positive, got: %g", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Sprintf("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst))
	}
	if cfg.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.Release.Enabled() {
		errs = append(errs, cfg.Release.validate()...)
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (r ReleaseConfig) validate() []string {
	var errs []string

	if !regexp.MustCompile(`^rediss?://`).MatchString(r.QueueURL) {
		errs = append(errs, fmt.Sprintf("ReleaseQueueURL must start with 'redis://' or 'rediss://', got: %s", redactRedisURL(r.QueueURL)))
	}
	if r.QueuePrefix == "" {
		errs = append(errs, "ReleaseQueuePrefix cannot be empty")
	}
	if r.ConnTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReleaseConnTimeout must be positive, got: %s", r.ConnTimeout))
	}
	if r.Concurrency <= 0 {
		errs = append(errs, fmt.Sprintf("ReleaseConcurrency must be positive, got: %d", r.Concurrency))
	}
	if r.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("ReleasePollInterval must be positive, got: %s", r.PollInterval))
	}
	if r.LeaseTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReleaseLeaseTimeout must be positive, got: %s", r.LeaseTimeout))
	}
	if r.MaxAttempts <= 0 {
		errs = append(errs, fmt.Sprintf("ReleaseMaxAttempts must be positive, got: %d", r.MaxAttempts))
	}
	if r.BackoffBase <= 0 {
		errs = append(errs, fmt.Sprintf("ReleaseBackoffBase must be positive, got: %s", r.BackoffBase))
	}
	if r.BackoffMax < r.BackoffBase {
		errs = append(errs, fmt.Sprintf("ReleaseBackoffMax (%s) must be >= ReleaseBackoffBase (%s)", r.BackoffMax, r.BackoffBase))
	}
	if r.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("ReleaseBatchSize must be positive, got: %d", r.BatchSize))
	}

	return errs
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_time_zone", cfg.SlotTimeZone,
		"release_enabled", cfg.Release.Enabled(),
		"release_queue_url", redactRedisURL(cfg.Release.QueueURL),
		"release_queue_prefix", cfg.Release.QueuePrefix,
		"release_concurrency", cfg.Release.Concurrency,
		"release_poll_interval", cfg.Release.PollInterval,
		"release_lease_timeout", cfg.Release.LeaseTimeout,
		"release_max_attempts", cfg.Release.MaxAttempts,
		"release_backoff_base", cfg.Release.BackoffBase,
		"release_backoff_max", cfg.Release.BackoffMax,
	)
}

func (cfg *Config) GracefulShutdown(ctx context.Context) {
	cfg.Client.GracefulShutdown(ctx, cfg.Log)
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactRedisURL(uri string) string {
	credentialRegex := regexp.MustCompile(`(rediss?://)[^@/]*@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
