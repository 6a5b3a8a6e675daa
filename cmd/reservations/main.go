package main

import (
	"context"
	"time"

	machinehandler "laundry/internal/machines/handler"
	machinerepo "laundry/internal/machines/repository"
	machineservice "laundry/internal/machines/service"
	"laundry/internal/reservations/events"
	"laundry/internal/reservations/handler"
	"laundry/internal/reservations/repository"
	"laundry/internal/reservations/service"
	"laundry/internal/reservations/validator"
	"laundry/pkg/app"
	"laundry/pkg/config"
	"laundry/pkg/kafka"
	kafkaconfig "laundry/pkg/kafka/config"
	kafkamiddleware "laundry/pkg/kafka/middleware"
	"laundry/pkg/metrics"
	"laundry/pkg/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Reservations service")
	cfg.SetMongo()

	m := metrics.New()
	var opts []app.Option
	if cfg.MetricsEnabled {
		opts = append(opts, app.WithMetrics(m))
	}
	if store := initIdempotencyStore(cfg); store != nil {
		opts = append(opts, app.WithIdempotencyStore(store))
	}

	publisher, closePublisher := initPublisher(cfg, m)
	opts = append(opts, app.OnShutdown(closePublisher), app.OnShutdown(cfg.GracefulShutdown))

	machineHandler, reservationHandler := initHandlers(cfg, publisher, m)

	serverApp := app.NewApplication(cfg, opts...)
	serverApp.SetApp(machineHandler, reservationHandler)
	serverApp.Run()
}

func initHandlers(cfg *config.Config, publisher events.Publisher, m *metrics.Metrics) (*machinehandler.MachineHandler, *handler.ReservationHandler) {
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewReservationLockRepository(cfg)
	machineRepo := machinerepo.NewMongoMachineRepository(cfg)

	machineService := machineservice.NewMachineService(machineRepo, reservationRepo, cfg.Log)
	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		machineRepo,
		validator.NewReservationValidator(cfg.Log),
		publisher,
		m,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return machinehandler.NewMachineHandler(machineService, cfg.Log),
		handler.NewReservationHandler(reservationService, cfg.Location, cfg.Log)
}

// initIdempotencyStore returns a Redis-backed store when REDIS_ADDR is set and
// reachable, otherwise nil so the application falls back to memory.
func initIdempotencyStore(cfg *config.Config) middleware.IdempotencyStore {
	if cfg.RedisAddr == "" {
		return nil
	}

	store := middleware.NewRedisIdempotencyStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.IdempotencyTTL, cfg.Log)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		cfg.Log.Warn("Redis unreachable, using in-memory idempotency store", "addr", cfg.RedisAddr, "error", err)
		store.Stop()
		return nil
	}

	cfg.Log.Info("Using Redis idempotency store", "addr", cfg.RedisAddr)
	return store
}

func initPublisher(cfg *config.Config, m *metrics.Metrics) (events.Publisher, func()) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, reservation events are not published")
		return events.NewNoopPublisher(), func() {}
	}

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaReservationsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafkamiddleware.MetricsProducerMiddleware(m.EventsPublished))

	return events.NewKafkaPublisher(producer, cfg.Log), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}
