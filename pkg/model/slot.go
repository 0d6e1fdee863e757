package model

// Slot is one entry of a day in the availability template. The
// (StartTime, EndTime) pair identifies it within its day.
type Slot struct {
	StartTime string `json:"start_time" bson:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,clock"`
	Booked    bool   `json:"booked" bson:"booked"`
}

// SlotRef points at a slot by its natural key.
type SlotRef struct {
	StartTime string `json:"start_time" bson:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,clock"`
}

func (s Slot) Ref() SlotRef {
	return SlotRef{StartTime: s.StartTime, EndTime: s.EndTime}
}

func (r SlotRef) Matches(s Slot) bool {
	return r.StartTime == s.StartTime && r.EndTime == s.EndTime
}

func (r SlotRef) String() string {
	return r.StartTime + "-" + r.EndTime
}

// DedupeRefs drops repeated refs, keeping the first occurrence order.
func DedupeRefs(refs []SlotRef) []SlotRef {
	seen := make(map[SlotRef]struct{}, len(refs))
	out := make([]SlotRef, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
