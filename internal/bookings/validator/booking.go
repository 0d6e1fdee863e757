package validator

import (
	"fmt"

	"proslots/pkg/logger"
	"proslots/pkg/model"
	"proslots/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validation.New(log)
	log.Info("Booking validator initialized successfully")
	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks a booking request. preferred_time must name distinct,
// non-degenerate slots.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := validation.Struct(v.validate, booking); err != nil {
		v.logger.Debug("Booking validation failed", "error", err)
		return err
	}

	seen := make(map[model.SlotRef]struct{}, len(booking.PreferredTime))
	for i, ref := range booking.PreferredTime {
		field := fmt.Sprintf("preferred_time[%d]", i)
		if ref.StartTime == ref.EndTime {
			return validation.Single(field, "start_time and end_time must differ")
		}
		if _, dup := seen[ref]; dup {
			return validation.Single(field, fmt.Sprintf("duplicate slot %s", ref))
		}
		seen[ref] = struct{}{}
	}
	return nil
}

func (v *BookingValidator) ValidateStatusUpdate(update *model.BookingStatusUpdate) error {
	return validation.Struct(v.validate, update)
}
