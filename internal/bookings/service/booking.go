package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	availability "proslots/internal/availability/service"
	bookingserrors "proslots/internal/bookings/errors"
	"proslots/internal/bookings/repository"
	"proslots/internal/bookings/validator"
	"proslots/internal/events"
	"proslots/pkg/civiltime"
	"proslots/pkg/config"
	apperrors "proslots/pkg/errors"
	"proslots/pkg/model"
	"proslots/pkg/sanitizer"
)

// ReleaseScheduler owns the delayed slot release job of a booking. The job
// id is the booking id.
type ReleaseScheduler interface {
	ScheduleSlotRelease(ctx context.Context, bookingID string, runAt time.Time) error
	CancelSlotRelease(ctx context.Context, bookingID string) error
	Enabled() bool
}

type BookingService interface {
	// Create reserves the preferred slots and persists the booking in one
	// transaction, then schedules the slot release.
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error)

	OnBookingAccepted(ctx context.Context, id string) error
	OnBookingRejected(ctx context.Context, id string) error
	OnBookingCancelled(ctx context.Context, id string) error
	OnBookingCompleted(ctx context.Context, id string) error
}

type bookingService struct {
	repo      repository.BookingRepository
	slots     availability.SlotLockManager
	releases  ReleaseScheduler
	publisher events.Publisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	slots availability.SlotLockManager,
	releases ReleaseScheduler,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		slots:     slots,
		releases:  releases,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return validationError("Booking validation failed", err)
	}
	if booking.Status != model.BookingPending {
		return apperrors.Validation("New bookings start as pending", map[string]any{"status": booking.Status})
	}

	day, err := civiltime.WeekdayOf(booking.PreferredDate, s.cfg.Location)
	if err != nil {
		return validationError("Invalid preferred date", err)
	}
	releaseAt, err := civiltime.ReleaseAt(booking.PreferredDate, booking.PreferredTime, s.cfg.Location)
	if err != nil {
		return validationError("Invalid preferred time", err)
	}
	if !releaseAt.After(s.now()) {
		return apperrors.Wrap(bookingserrors.ErrAppointmentPassed, apperrors.CodeValidation,
			"Appointment time has already passed", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"preferred_date": booking.PreferredDate})
	}

	booking.ID = repository.NewID()
	releaseAt = releaseAt.UTC()
	booking.SlotReleaseAt = &releaseAt
	booking.SlotReleaseJobID = nil
	if s.releases.Enabled() {
		jobID := booking.ID
		booking.SlotReleaseJobID = &jobID
	}

	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.slots.Reserve(ctx, booking.ProID, day, booking.PreferredTime); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Info("Booking rejected, slots unavailable",
				"pro_id", booking.ProID,
				"day", day.Key(),
				"preferred_date", booking.PreferredDate,
			)
		} else {
			s.cfg.Log.Error("Failed to create booking", "pro_id", booking.ProID, "error", err)
		}
		booking.ID = ""
		booking.SlotReleaseAt = nil
		booking.SlotReleaseJobID = nil
		return err
	}

	if s.releases.Enabled() {
		// The booking is committed either way; the startup sweep re-enqueues
		// a job that failed to schedule here.
		if err := s.releases.ScheduleSlotRelease(ctx, booking.ID, releaseAt); err != nil {
			s.cfg.Log.Error("Failed to schedule slot release",
				"booking_id", booking.ID,
				"run_at", releaseAt,
				"error", err,
			)
		}
	}

	s.publish(ctx, events.SlotEvent{
		Type:          events.EventSlotReserved,
		BookingID:     booking.ID,
		ProID:         booking.ProID,
		UserID:        booking.UserID,
		Day:           day,
		Slots:         booking.PreferredTime,
		PreferredDate: booking.PreferredDate,
	})

	s.cfg.Log.Info("Booking created successfully",
		"booking_id", booking.ID,
		"pro_id", booking.ProID,
		"day", day.Key(),
		"preferred_date", booking.PreferredDate,
		"slot_release_at", releaseAt,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

// UpdateStatus applies a lifecycle transition. Cancelling or rejecting frees
// the slots right away and cancels the scheduled release. Repeating the
// current status is a no-op, except that a cancelled or rejected booking
// still holding a release job is released again.
func (s *bookingService) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	if err := s.validator.ValidateStatusUpdate(&model.BookingStatusUpdate{Status: status}); err != nil {
		return nil, validationError("Invalid status update", err)
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status == status {
		if status.EndsReservation() && booking.HasOutstandingRelease() {
			if err := s.endReservation(ctx, booking, status); err != nil {
				return nil, err
			}
		}
		return booking, nil
	}

	from := booking.Status
	if !from.CanTransition(status) {
		return nil, apperrors.Wrap(bookingserrors.ErrInvalidTransition, apperrors.CodeConflict,
			fmt.Sprintf("Booking cannot move from %s to %s", from, status), http.StatusConflict).
			WithDetails(map[string]any{"id": id, "from": from, "to": status})
	}

	if status.EndsReservation() {
		if err := s.endReservation(ctx, booking, status); err != nil {
			return nil, err
		}
		return booking, nil
	}

	if err := s.transition(ctx, id, from, status); err != nil {
		return nil, err
	}
	booking.Status = status
	s.cfg.Log.Info("Booking status updated", "booking_id", id, "from", from, "to", status)
	return booking, nil
}

func (s *bookingService) OnBookingAccepted(ctx context.Context, id string) error {
	_, err := s.UpdateStatus(ctx, id, model.BookingAccepted)
	return err
}

func (s *bookingService) OnBookingRejected(ctx context.Context, id string) error {
	_, err := s.UpdateStatus(ctx, id, model.BookingRejected)
	return err
}

func (s *bookingService) OnBookingCancelled(ctx context.Context, id string) error {
	_, err := s.UpdateStatus(ctx, id, model.BookingCancelled)
	return err
}

func (s *bookingService) OnBookingCompleted(ctx context.Context, id string) error {
	_, err := s.UpdateStatus(ctx, id, model.BookingCompleted)
	return err
}

// endReservation moves the booking to a cancelled or rejected status and
// frees the slots it still owns. The status, the slots and the job id are
// written in one transaction, so a stored job id always means the slots are
// still held by this booking.
func (s *bookingService) endReservation(ctx context.Context, booking *model.Booking, to model.BookingStatus) error {
	from := booking.Status
	owned := s.ownsSlots(booking)

	var day model.Weekday
	if owned {
		d, err := civiltime.WeekdayOf(booking.PreferredDate, s.cfg.Location)
		if err != nil {
			return apperrors.Internal("Stored booking has an invalid preferred date", err)
		}
		day = d
	}

	err := s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if from != to {
			if err := s.transition(ctx, booking.ID, from, to); err != nil {
				return err
			}
		}
		if !owned {
			return nil
		}
		if err := s.slots.Release(ctx, booking.ProID, day, booking.PreferredTime); err != nil {
			s.cfg.Log.Error("Failed to release slots", "booking_id", booking.ID, "pro_id", booking.ProID, "error", err)
			return err
		}
		if booking.HasOutstandingRelease() {
			if err := s.repo.ClearReleaseJob(ctx, booking.ID); err != nil {
				return apperrors.Internal("Failed to clear slot release job", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	booking.Status = to
	if from != to {
		s.cfg.Log.Info("Booking status updated", "booking_id", booking.ID, "from", from, "to", to)
	}

	// A job left behind finds no job id on the booking and does nothing.
	if err := s.releases.CancelSlotRelease(ctx, booking.ID); err != nil {
		s.cfg.Log.Warn("Failed to cancel slot release job", "booking_id", booking.ID, "error", err)
	}

	if !owned {
		s.cfg.Log.Info("Slots already released", "booking_id", booking.ID)
		return nil
	}
	booking.SlotReleaseJobID = nil

	reason := events.ReasonCancelled
	if to == model.BookingRejected {
		reason = events.ReasonRejected
	}
	s.publish(ctx, events.SlotEvent{
		Type:          events.EventSlotReleased,
		BookingID:     booking.ID,
		ProID:         booking.ProID,
		UserID:        booking.UserID,
		Day:           day,
		Slots:         booking.PreferredTime,
		PreferredDate: booking.PreferredDate,
		Reason:        reason,
	})

	s.cfg.Log.Info("Slots released early", "booking_id", booking.ID, "pro_id", booking.ProID, "reason", reason)
	return nil
}

// ownsSlots reports whether the booking still holds its slots: a release
// job is pending, the appointment has not ended, or nothing releases slots
// in the background because auto-release is disabled.
func (s *bookingService) ownsSlots(booking *model.Booking) bool {
	if booking.HasOutstandingRelease() || !s.releases.Enabled() {
		return true
	}
	return booking.SlotReleaseAt != nil && s.now().Before(*booking.SlotReleaseAt)
}

// transition writes a status change conditioned on the stored status.
func (s *bookingService) transition(ctx context.Context, id string, from, to model.BookingStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, bookingserrors.ErrInvalidTransition) {
			return apperrors.Wrap(err, apperrors.CodeConflict,
				"Booking status was changed concurrently", http.StatusConflict).
				WithDetails(map[string]any{"id": id, "from": from, "to": to})
		}
		return apperrors.Internal("Failed to update booking status", err)
	}
	return nil
}

func (s *bookingService) publish(ctx context.Context, ev events.SlotEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.cfg.Log.Warn("Failed to publish slot event", "type", ev.Type, "booking_id", ev.BookingID, "error", err)
	}
}

func (s *bookingService) applyDefaults(b *model.Booking) {
	sanitizer.NormalizeBooking(b)
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	b.PreferredTime = model.DedupeRefs(b.PreferredTime)
}

func validationError(message string, err error) error {
	var verrs interface{ Details() map[string]any }
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
