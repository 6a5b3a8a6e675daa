package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvTimezone               = "LAUNDRY_TIMEZONE"
	EnvSlotFirstStart         = "SLOT_FIRST_START"
	EnvSlotLastStart          = "SLOT_LAST_START"
	EnvSlotInterval           = "SLOT_INTERVAL"
	EnvSlotCatalogue          = "SLOT_CATALOGUE"
	EnvMaxReservationDuration = "MAX_RESERVATION_DURATION"
	EnvBookingHorizonDays     = "BOOKING_HORIZON_DAYS"

	EnvLockTTL        = "LOCK_TTL"
	EnvLockRetries    = "LOCK_RETRIES"
	EnvLockRetryDelay = "LOCK_RETRY_DELAY"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvKafkaEnabled           = "KAFKA_ENABLED"
	EnvKafkaReservationsTopic = "KAFKA_RESERVATIONS_TOPIC"

	EnvMetricsEnabled = "METRICS_ENABLED"
)
