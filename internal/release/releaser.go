package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "proslots/internal/bookings/errors"
	"proslots/internal/events"
	"proslots/pkg/civiltime"
	mongotx "proslots/pkg/db/mongo"
	apperrors "proslots/pkg/errors"
	"proslots/pkg/logger"
	"proslots/pkg/model"
)

// BookingStore is the part of the booking repository the release subsystem
// reads and writes.
type BookingStore interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	ClearReleaseJob(ctx context.Context, id string) error
	ForEachOutstandingRelease(ctx context.Context, fn func(*model.Booking) error) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

// SlotReleaser is the part of the slot lock manager the release subsystem uses.
type SlotReleaser interface {
	GetTemplate(ctx context.Context, proID string) (*model.Professional, error)
	Release(ctx context.Context, proID string, day model.Weekday, slots []model.SlotRef) error
}

type Releaser struct {
	bookings  BookingStore
	slots     SlotReleaser
	publisher events.Publisher
	loc       *time.Location
	log       *logger.Logger
}

func NewReleaser(bookings BookingStore, slots SlotReleaser, publisher events.Publisher, loc *time.Location, log *logger.Logger) *Releaser {
	return &Releaser{
		bookings:  bookings,
		slots:     slots,
		publisher: publisher,
		loc:       loc,
		log:       log,
	}
}

// FreeSlotsForBooking unbooks the slots a booking still holds. It does not
// look at the booking status. A missing booking, or one whose release
// already ran, is a no-op, so repeated delivery is safe.
func (r *Releaser) FreeSlotsForBooking(ctx context.Context, bookingID string) error {
	return r.free(ctx, bookingID, events.ReasonElapsed)
}

func (r *Releaser) free(ctx context.Context, bookingID, reason string) error {
	var (
		booking *model.Booking
		day     model.Weekday
		changed []model.SlotRef
	)

	// The slots and the job id change together. A release cut off halfway
	// would otherwise leave a job id behind for slots another customer may
	// book next.
	err := r.bookings.ExecuteTransaction(ctx, func(ctx context.Context) error {
		booking, changed = nil, nil

		b, err := r.bookings.FindByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
				r.log.Warn("Release skipped, booking not found", "booking_id", bookingID)
				return nil
			}
			return fmt.Errorf("failed to load booking %s: %w", bookingID, err)
		}
		if !b.HasOutstandingRelease() {
			r.log.Info("Release skipped, already released", "booking_id", bookingID)
			return nil
		}

		d, err := civiltime.WeekdayOf(b.PreferredDate, r.loc)
		if err != nil {
			return fmt.Errorf("%w: booking %s has preferred date %q: %v", ErrInvalidJob, bookingID, b.PreferredDate, err)
		}

		freed, err := r.unbook(ctx, b, d)
		if err != nil {
			return err
		}
		if err := r.bookings.ClearReleaseJob(ctx, bookingID); err != nil && !errors.Is(err, bookingserrors.ErrNotFound) {
			return fmt.Errorf("failed to clear release job of booking %s: %w", bookingID, err)
		}

		booking, day, changed = b, d, freed
		return nil
	})
	if err != nil {
		return err
	}
	if booking == nil {
		return nil
	}

	if len(changed) > 0 {
		ev := events.SlotEvent{
			Type:          events.EventSlotReleased,
			BookingID:     booking.ID,
			ProID:         booking.ProID,
			UserID:        booking.UserID,
			Day:           day,
			Slots:         changed,
			PreferredDate: booking.PreferredDate,
			Reason:        reason,
		}
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.log.Warn("Failed to publish slot event", "type", ev.Type, "booking_id", bookingID, "error", err)
		}
	}

	r.log.Info("Slots released",
		"booking_id", bookingID,
		"pro_id", booking.ProID,
		"day", day.Key(),
		"status", booking.Status,
		"freed", len(changed),
		"reason", reason,
	)
	return nil
}

// unbook frees the booking's slots that are still marked booked and returns
// them. Nothing is written when none are.
func (r *Releaser) unbook(ctx context.Context, booking *model.Booking, day model.Weekday) ([]model.SlotRef, error) {
	pro, err := r.slots.GetTemplate(ctx, booking.ProID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			r.log.Warn("Release skipped, professional not found", "booking_id", booking.ID, "pro_id", booking.ProID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load availability of %s: %w", booking.ProID, err)
	}

	slots := pro.Availability.Day(day)
	var booked []model.SlotRef
	for _, ref := range booking.PreferredTime {
		if idx := pro.Availability.Find(day, ref); idx >= 0 && slots[idx].Booked {
			booked = append(booked, ref)
		}
	}
	if len(booked) == 0 {
		return nil, nil
	}

	if err := r.slots.Release(ctx, booking.ProID, day, booked); err != nil {
		return nil, fmt.Errorf("failed to release slots of booking %s: %w", booking.ID, err)
	}
	return booked, nil
}
