package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
	EnvEnvFile   = "ENV_FILE"

	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotTimeZone = "SLOT_TIME_ZONE"

	EnvReleaseQueueURL     = "RELEASE_QUEUE_URL"
	EnvReleaseQueuePrefix  = "RELEASE_QUEUE_PREFIX"
	EnvReleaseConnTimeout  = "RELEASE_CONN_TIMEOUT"
	EnvReleaseConcurrency  = "RELEASE_CONCURRENCY"
	EnvReleasePollInterval = "RELEASE_POLL_INTERVAL"
	EnvReleaseLeaseTimeout = "RELEASE_LEASE_TIMEOUT"
	EnvReleaseMaxAttempts  = "RELEASE_MAX_ATTEMPTS"
	EnvReleaseBackoffBase  = "RELEASE_BACKOFF_BASE"
	EnvReleaseBackoffMax   = "RELEASE_BACKOFF_MAX"
	EnvReleaseBatchSize    = "RELEASE_BATCH_SIZE"
)
