package model

import "time"

// Availability is a professional's recurring weekly slot template. A nil
// day means the day was never initialized and is absent from storage.
type Availability struct {
	Sunday    []Slot `json:"sunday,omitempty" bson:"sunday,omitempty"`
	Monday    []Slot `json:"monday,omitempty" bson:"monday,omitempty"`
	Tuesday   []Slot `json:"tuesday,omitempty" bson:"tuesday,omitempty"`
	Wednesday []Slot `json:"wednesday,omitempty" bson:"wednesday,omitempty"`
	Thursday  []Slot `json:"thursday,omitempty" bson:"thursday,omitempty"`
	Friday    []Slot `json:"friday,omitempty" bson:"friday,omitempty"`
	Saturday  []Slot `json:"saturday,omitempty" bson:"saturday,omitempty"`
}

func (a *Availability) dayField(d Weekday) *[]Slot {
	switch d {
	case Sunday:
		return &a.Sunday
	case Monday:
		return &a.Monday
	case Tuesday:
		return &a.Tuesday
	case Wednesday:
		return &a.Wednesday
	case Thursday:
		return &a.Thursday
	case Friday:
		return &a.Friday
	case Saturday:
		return &a.Saturday
	}
	return nil
}

func (a *Availability) Day(d Weekday) []Slot {
	if f := a.dayField(d); f != nil {
		return *f
	}
	return nil
}

func (a *Availability) SetDay(d Weekday, slots []Slot) {
	if f := a.dayField(d); f != nil {
		*f = slots
	}
}

func (a *Availability) HasDay(d Weekday) bool {
	return a.Day(d) != nil
}

// Find returns the index of the slot matching ref on day d, or -1.
func (a *Availability) Find(d Weekday, ref SlotRef) int {
	for i, s := range a.Day(d) {
		if ref.Matches(s) {
			return i
		}
	}
	return -1
}

type Professional struct {
	ID           string       `json:"id" bson:"_id"`
	Availability Availability `json:"availability" bson:"availability"`
	UpdatedAt    time.Time    `json:"updated_at" bson:"updated_at"`
}

type DayUpdate struct {
	Slots []Slot `json:"slots" validate:"required,min=1,max=48,dive"`
}
