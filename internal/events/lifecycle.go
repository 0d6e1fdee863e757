package events

import (
	"context"
	"fmt"

	"proslots/pkg/errors"
	"proslots/pkg/kafka"
	"proslots/pkg/logger"
	"proslots/pkg/model"
)

// LifecycleEvent is a booking status change announced by an upstream service.
type LifecycleEvent struct {
	BookingID string              `json:"booking_id"`
	Status    model.BookingStatus `json:"status"`
}

// LifecycleHooks are the booking lifecycle entry points driven by events.
type LifecycleHooks interface {
	OnBookingAccepted(ctx context.Context, bookingID string) error
	OnBookingRejected(ctx context.Context, bookingID string) error
	OnBookingCancelled(ctx context.Context, bookingID string) error
	OnBookingCompleted(ctx context.Context, bookingID string) error
}

type LifecycleHandler struct {
	hooks LifecycleHooks
	log   *logger.Logger
}

func NewLifecycleHandler(hooks LifecycleHooks, log *logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		hooks: hooks,
		log:   log,
	}
}

// Handle is a kafka.MessageHandler for booking lifecycle events.
func (h *LifecycleHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev LifecycleEvent
	if err := msg.DecodeValue(&ev); err != nil {
		return kafka.NewPermanentError("malformed lifecycle event", err)
	}
	if ev.BookingID == "" {
		return kafka.NewPermanentError("lifecycle event without booking_id", nil)
	}

	var err error
	switch ev.Status {
	case model.BookingAccepted:
		err = h.hooks.OnBookingAccepted(ctx, ev.BookingID)
	case model.BookingRejected:
		err = h.hooks.OnBookingRejected(ctx, ev.BookingID)
	case model.BookingCancelled:
		err = h.hooks.OnBookingCancelled(ctx, ev.BookingID)
	case model.BookingCompleted:
		err = h.hooks.OnBookingCompleted(ctx, ev.BookingID)
	default:
		return kafka.NewPermanentError(fmt.Sprintf("unsupported lifecycle status %q", ev.Status), nil)
	}

	if err != nil {
		return classify(ev, err)
	}

	h.log.Info("Lifecycle event applied", "booking_id", ev.BookingID, "status", ev.Status)
	return nil
}

func classify(ev LifecycleEvent, err error) error {
	msg := fmt.Sprintf("booking %s to %s", ev.BookingID, ev.Status)
	switch {
	case errors.HasCode(err, errors.CodeNotFound),
		errors.HasCode(err, errors.CodeConflict),
		errors.HasCode(err, errors.CodeValidation),
		errors.HasCode(err, errors.CodeInvalidInput):
		return kafka.NewBusinessError(msg, err)
	default:
		return kafka.NewTransientError(msg, err)
	}
}
