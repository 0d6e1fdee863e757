package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrInvalidTransition is returned when the stored status does not allow
	// the requested change, including when another writer changed it first.
	ErrInvalidTransition = errors.New("booking status transition not allowed")

	ErrAppointmentPassed = errors.New("appointment time has already passed")
)
