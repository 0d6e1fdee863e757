// Package civiltime converts booking calendar dates and "HH:MM" slot bounds
// into instants in the fixed civil time zone slots are published in.
package civiltime

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"proslots/pkg/model"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	DefaultZone = "Asia/Kolkata"
)

var (
	ErrInvalidDate  = errors.New("invalid calendar date")
	ErrInvalidClock = errors.New("invalid clock time")
	ErrNoSlots      = errors.New("no slots given")
)

func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return loc, nil
}

// ParseDate returns midnight of the "YYYY-MM-DD" date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// ParseClock returns the hour and minute of an "HH:MM" value.
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) != len(ClockLayout) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour(), t.Minute(), nil
}

func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func ValidClock(s string) bool {
	_, _, err := ParseClock(s)
	return err == nil
}

func WeekdayOf(date string, loc *time.Location) (model.Weekday, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return 0, err
	}
	return model.WeekdayOf(d), nil
}

// At combines a date and a clock value into an instant in loc.
func At(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, 0, 0, loc), nil
}

// SlotEnd is the instant a slot on date finishes. A slot whose end is not
// after its start wraps past midnight.
func SlotEnd(date time.Time, ref model.SlotRef, loc *time.Location) (time.Time, error) {
	start, err := At(date, ref.StartTime, loc)
	if err != nil {
		return time.Time{}, err
	}
	end, err := At(date, ref.EndTime, loc)
	if err != nil {
		return time.Time{}, err
	}
	if !end.After(start) {
		end, err = At(date.AddDate(0, 0, 1), ref.EndTime, loc)
		if err != nil {
			return time.Time{}, err
		}
	}
	return end, nil
}

// ReleaseAt is the moment the booked slots go back to the pool: the latest
// slot end on the booking date.
func ReleaseAt(date string, slots []model.SlotRef, loc *time.Location) (time.Time, error) {
	if len(slots) == 0 {
		return time.Time{}, ErrNoSlots
	}
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}

	var latest time.Time
	for _, ref := range slots {
		end, err := SlotEnd(d, ref, loc)
		if err != nil {
			return time.Time{}, err
		}
		if end.After(latest) {
			latest = end
		}
	}
	return latest, nil
}
