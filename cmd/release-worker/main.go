// Command release-worker runs the slot release sweep, the release worker
// and the lifecycle consumer without the HTTP API. It shares the queue with
// the bookings service, so any number of instances can run.
package main

import (
	"context"

	availabilityrepo "proslots/internal/availability/repository"
	availability "proslots/internal/availability/service"
	availabilityvalidator "proslots/internal/availability/validator"
	"proslots/internal/bookings/repository"
	"proslots/internal/bookings/service"
	"proslots/internal/bookings/validator"
	"proslots/internal/events"
	"proslots/internal/release"
	"proslots/pkg/app"
	"proslots/pkg/config"
	kafka_config "proslots/pkg/kafka/config"
)

const ServiceName = "release-worker"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	if !cfg.SetRedis() {
		cfg.GracefulShutdown(context.Background())
		cfg.Log.Fatal("Release worker needs RELEASE_QUEUE_URL")
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	application := app.NewApplication(cfg)

	publisher, producer, err := events.NewPublisherFromConfig(kafkaCfg, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to set up slot events", "error", err)
	}
	if producer != nil {
		application.AddCloser(producer.Close)
	}

	slots := availability.NewSlotLockManager(
		availabilityrepo.NewMongoAvailabilityRepository(cfg),
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	releases := release.NewManagerFromConfig(cfg, bookingRepo, slots, publisher)

	// Start sweeps before launching the worker.
	application.AddRunner("slot-release", releases)
	application.AddCloser(releases.Close)

	bookingService := service.NewBookingService(
		bookingRepo,
		slots,
		releases,
		publisher,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	consumer, err := events.NewLifecycleConsumer(kafkaCfg, bookingService, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to set up lifecycle consumer", "error", err)
	}
	if consumer != nil {
		application.AddRunner("lifecycle-consumer", app.NewLoopRunner("lifecycle-consumer", consumer.Start, cfg.Log))
		application.AddCloser(consumer.Close)
	}

	cfg.Log.Info("Starting release worker")
	application.Run()
}
