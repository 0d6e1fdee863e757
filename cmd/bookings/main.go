package main

import (
	"context"

	availabilityhandler "proslots/internal/availability/handler"
	availabilityrepo "proslots/internal/availability/repository"
	availability "proslots/internal/availability/service"
	availabilityvalidator "proslots/internal/availability/validator"
	"proslots/internal/bookings/handler"
	"proslots/internal/bookings/repository"
	"proslots/internal/bookings/service"
	"proslots/internal/bookings/validator"
	"proslots/internal/events"
	"proslots/internal/release"
	"proslots/pkg/app"
	"proslots/pkg/config"
	kafka_config "proslots/pkg/kafka/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	cfg.Log.Info("Starting Bookings service")
	application := app.NewApplication(cfg)

	publisher, producer, err := events.NewPublisherFromConfig(kafkaCfg, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to set up slot events", "error", err)
	}

	slots := initSlotLockManager(cfg)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	releases := release.NewManagerFromConfig(cfg, bookingRepo, slots, publisher)
	bookingService := service.NewBookingService(
		bookingRepo,
		slots,
		releases,
		publisher,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName, "auto_release", releases.Enabled())

	// Repair the queue before the first request can touch a slot.
	if _, err := releases.ResyncSlotReleaseJobs(context.Background()); err != nil {
		cfg.Log.Error("Slot release sweep failed", "error", err)
	}
	application.AddRunner("slot-release", releases)
	application.AddCloser(releases.Close)

	consumer, err := events.NewLifecycleConsumer(kafkaCfg, bookingService, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to set up lifecycle consumer", "error", err)
	}
	if consumer != nil {
		application.AddRunner("lifecycle-consumer", app.NewLoopRunner("lifecycle-consumer", consumer.Start, cfg.Log))
		application.AddCloser(consumer.Close)
	}
	if producer != nil {
		application.AddCloser(producer.Close)
	}

	application.SetApp(
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Client.Redis, cfg.Log),
		handler.NewBookingHandler(bookingService, cfg.Log),
		availabilityhandler.NewAvailabilityHandler(slots, cfg.Log),
		release.NewHandler(releases, cfg.Log),
	)
	application.Run()
}

func initSlotLockManager(cfg *config.Config) availability.SlotLockManager {
	return availability.NewSlotLockManager(
		availabilityrepo.NewMongoAvailabilityRepository(cfg),
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)
}
