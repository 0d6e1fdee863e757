package events

import (
	"context"
	"fmt"
	"time"

	"proslots/pkg/kafka"
	"proslots/pkg/logger"
	"proslots/pkg/model"
)

const (
	EventSlotReserved = "slot.reserved"
	EventSlotReleased = "slot.released"
)

// Release reasons carried on slot.released events.
const (
	ReasonCancelled = "cancelled"
	ReasonRejected  = "rejected"
	ReasonElapsed   = "elapsed"
)

type SlotEvent struct {
	Type          string          `json:"type"`
	BookingID     string          `json:"booking_id"`
	ProID         string          `json:"pro_id"`
	UserID        string          `json:"user_id,omitempty"`
	Day           model.Weekday   `json:"day"`
	Slots         []model.SlotRef `json:"slots"`
	PreferredDate string          `json:"preferred_date"`
	Reason        string          `json:"reason,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher emits slot events. Publishing is best effort: callers log
// failures and never roll back a committed slot change because of them.
type Publisher interface {
	Publish(ctx context.Context, ev SlotEvent) error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, SlotEvent) error {
	return nil
}

// MessageProducer is the subset of *kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer MessageProducer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer MessageProducer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, ev SlotEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	msg, err := kafka.NewMessage().
		WithKey(ev.BookingID).
		WithValue(ev).
		WithEventType(ev.Type).
		WithSource(p.source).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", ev.Type, err)
	}

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event for booking %s: %w", ev.Type, ev.BookingID, err)
	}

	p.log.Debug("Slot event published", "type", ev.Type, "booking_id", ev.BookingID, "event_id", msg.GetEventID())
	return nil
}
