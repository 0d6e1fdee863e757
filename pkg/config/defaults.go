package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "proslots"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotTimeZone = "Asia/Kolkata"

	DefaultReleaseQueuePrefix  = "slot-release:"
	DefaultReleaseConnTimeout  = 5 * time.Second
	DefaultReleaseConcurrency  = 4
	DefaultReleasePollInterval = 1 * time.Second
	DefaultReleaseLeaseTimeout = 2 * time.Minute
	DefaultReleaseMaxAttempts  = 5
	DefaultReleaseBackoffBase  = 2 * time.Second
	DefaultReleaseBackoffMax   = 5 * time.Minute
	DefaultReleaseBatchSize    = 50
)
