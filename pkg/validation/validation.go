// Package validation holds the shared go-playground validator setup: the
// custom tags used by the slot and booking models and the translation of
// field errors into API-facing messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"proslots/pkg/civiltime"
	"proslots/pkg/logger"
	"proslots/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details flattens the errors into the map carried by an AppError.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

func Single(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// New returns a validator with the custom tags registered. Field names in
// errors are taken from the json tag.
func New(log *logger.Logger) *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	custom := map[string]validator.Func{
		"clock":          validateClock,
		"calendar_date":  validateCalendarDate,
		"booking_status": validateBookingStatus,
		"weekday":        validateWeekday,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register validator", "tag", tag, "error", err)
		}
	}

	return v
}

func validateClock(fl validator.FieldLevel) bool {
	return civiltime.ValidClock(fl.Field().String())
}

func validateCalendarDate(fl validator.FieldLevel) bool {
	return civiltime.ValidDate(fl.Field().String())
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	return model.BookingStatus(fl.Field().String()).Valid()
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, err := model.ParseWeekday(fl.Field().String())
	return err == nil
}

// Struct validates s and translates any field errors.
func Struct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return Translate(validationErrs)
		}
		return err
	}
	return nil
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must have at least %s item(s)", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must have at most %s item(s)", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "clock":
			message = fmt.Sprintf("%s must be a time in HH:MM format (00:00-23:59)", err.Field())
		case "calendar_date":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "booking_status":
			message = fmt.Sprintf("%s must be one of: pending accepted rejected completed cancelled", err.Field())
		case "weekday":
			message = fmt.Sprintf("%s must be a weekday name", err.Field())
		}

		out = append(out, ValidationError{
			Field:   fieldPath(err.Namespace()),
			Message: message,
		})
	}

	return out
}

// fieldPath drops the root struct name, so "Booking.preferred_time[0].end_time"
// becomes "preferred_time[0].end_time".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
