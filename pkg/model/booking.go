package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingRejected  BookingStatus = "rejected"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAccepted, BookingRejected, BookingCancelled},
	BookingAccepted: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingAccepted, BookingRejected, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// EndsReservation reports whether entering this status gives the slots back
// before the appointment time.
func (s BookingStatus) EndsReservation() bool {
	return s == BookingCancelled || s == BookingRejected
}

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Booking struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProID            string        `json:"pro_id" bson:"pro_id" validate:"required,mongodb"`
	UserID           string        `json:"user_id" bson:"user_id" validate:"required,min=1,max=64"`
	PreferredDate    string        `json:"preferred_date" bson:"preferred_date" validate:"required,calendar_date"`
	PreferredTime    []SlotRef     `json:"preferred_time" bson:"preferred_time" validate:"required,min=1,max=48,dive"`
	Status           BookingStatus `json:"status" bson:"status" validate:"omitempty,booking_status"`
	SlotReleaseAt    *time.Time    `json:"slot_release_at,omitempty" bson:"slot_release_at,omitempty"`
	SlotReleaseJobID *string       `json:"slot_release_job_id" bson:"slot_release_job_id"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
}

// HasOutstandingRelease reports whether a release job is still owed.
func (b *Booking) HasOutstandingRelease() bool {
	return b.SlotReleaseJobID != nil && *b.SlotReleaseJobID != ""
}

type BookingStatusUpdate struct {
	Status BookingStatus `json:"status" validate:"required,booking_status"`
}
