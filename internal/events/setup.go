package events

import (
	"fmt"

	"proslots/pkg/kafka"
	kafka_config "proslots/pkg/kafka/config"
	kafkamiddleware "proslots/pkg/kafka/middleware"
	"proslots/pkg/logger"
)

// NewPublisherFromConfig returns the Kafka slot event publisher and its
// producer, or a no-op publisher and a nil producer when Kafka is disabled.
func NewPublisherFromConfig(cfg *kafka_config.Config, source string, log *logger.Logger) (Publisher, *kafka.Producer, error) {
	if !cfg.Enabled() {
		log.Info("Slot events disabled, Kafka not configured")
		return NewNoopPublisher(), nil, nil
	}

	producer, err := kafka.NewProducer(cfg, cfg.SlotEventsTopic, cfg.DLQTopic, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create slot event producer: %w", err)
	}
	if cfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(log))
	}

	log.Info("Slot event publisher ready", "topic", cfg.SlotEventsTopic)
	return NewKafkaPublisher(producer, source, log), producer, nil
}

// NewLifecycleConsumer subscribes hooks to the booking lifecycle topic. It
// returns nil when Kafka is disabled.
func NewLifecycleConsumer(cfg *kafka_config.Config, hooks LifecycleHooks, log *logger.Logger) (*kafka.Consumer, error) {
	if !cfg.Enabled() {
		log.Info("Lifecycle consumer disabled, Kafka not configured")
		return nil, nil
	}

	log = log.Component("lifecycle_consumer")
	handler := NewLifecycleHandler(hooks, log)
	consumer, err := kafka.NewConsumer(cfg, cfg.LifecycleTopic, cfg.ConsumerGroup, cfg.DLQTopic, handler.Handle, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle consumer: %w", err)
	}
	if cfg.EnableMiddleware {
		consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(log))
	}

	log.Info("Lifecycle consumer ready", "topic", cfg.LifecycleTopic, "group", cfg.ConsumerGroup)
	return consumer, nil
}
