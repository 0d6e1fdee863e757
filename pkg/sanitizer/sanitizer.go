package sanitizer

import (
	"regexp"
	"strings"

	"proslots/pkg/model"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reObjectID   = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	reShortClock = regexp.MustCompile(`^(\d):([0-5]\d)$`)
	reClockDot   = regexp.MustCompile(`^(\d{1,2})\.([0-5]\d)$`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func dotToColon(s string) string {
	return reClockDot.ReplaceAllString(s, "$1:$2")
}

func padHour(s string) string {
	return reShortClock.ReplaceAllString(s, "0$1:$2")
}

var clockPipeline = Pipeline{trim, dotToColon, padHour}

// NormalizeClock rewrites "9:00" and "09.00" as "09:00".
func NormalizeClock(s string) string {
	return clockPipeline.Apply(s)
}

// NormalizeSlotRefs normalizes the clock strings of every ref in place and
// returns refs.
func NormalizeSlotRefs(refs []model.SlotRef) []model.SlotRef {
	for i := range refs {
		refs[i].StartTime = NormalizeClock(refs[i].StartTime)
		refs[i].EndTime = NormalizeClock(refs[i].EndTime)
	}
	return refs
}

// NormalizeSlots is NormalizeSlotRefs for template slots.
func NormalizeSlots(slots []model.Slot) []model.Slot {
	for i := range slots {
		slots[i].StartTime = NormalizeClock(slots[i].StartTime)
		slots[i].EndTime = NormalizeClock(slots[i].EndTime)
	}
	return slots
}

// NormalizeBooking cleans the client supplied fields of a booking request.
func NormalizeBooking(b *model.Booking) {
	b.ProID = NormalizeID(b.ProID)
	b.UserID = TrimAndNormalize(b.UserID)
	b.PreferredDate = trim(b.PreferredDate)
	b.PreferredTime = NormalizeSlotRefs(b.PreferredTime)
}
