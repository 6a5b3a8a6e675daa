package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "laundry"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 64 * 1024 // 64KB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultTimezone               = "Local"
	DefaultSlotFirstStart         = "06:00"
	DefaultSlotLastStart          = "22:00"
	DefaultSlotInterval           = 1 * time.Hour
	DefaultMaxReservationDuration = 4 * time.Hour
	DefaultBookingHorizonDays     = 7

	DefaultLockTTL        = 10 * time.Second
	DefaultLockRetries    = 5
	DefaultLockRetryDelay = 50 * time.Millisecond

	DefaultKafkaReservationsTopic = "laundry.reservations"

	DefaultMetricsEnabled = true
)
