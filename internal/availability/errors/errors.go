package errors

import "errors"

var (
	ErrProfessionalNotFound = errors.New("professional not found")

	ErrSlotConflict = errors.New("requested slot is already booked")

	ErrSlotNotFound = errors.New("requested slot does not exist in the template")

	ErrEmptySlots = errors.New("at least one slot is required")

	// ErrTemplateLocked is returned when a day is replaced while one of its
	// slots is reserved.
	ErrTemplateLocked = errors.New("day has booked slots and cannot be replaced")
)
