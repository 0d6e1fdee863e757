package validator

import (
	"fmt"
	"sort"

	"proslots/pkg/logger"
	"proslots/pkg/model"
	"proslots/pkg/validation"

	"github.com/go-playground/validator/v10"
)

const MaxSlotsPerDay = 48

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	v := validation.New(log)
	log.Info("Availability validator initialized successfully")
	return &AvailabilityValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateRefs checks a reservation or release request for one day.
func (v *AvailabilityValidator) ValidateRefs(refs []model.SlotRef) error {
	if len(refs) == 0 {
		return validation.Single("slots", "at least one slot is required")
	}
	if len(refs) > MaxSlotsPerDay {
		return validation.Single("slots", fmt.Sprintf("at most %d slots per request", MaxSlotsPerDay))
	}
	for i := range refs {
		if err := validation.Struct(v.validate, &refs[i]); err != nil {
			return err
		}
		if refs[i].StartTime == refs[i].EndTime {
			return validation.Single(fmt.Sprintf("slots[%d]", i), "start_time and end_time must differ")
		}
	}
	return nil
}

// ValidateDay checks a full day replacement: well-formed, non-degenerate and
// without two slots sharing the same key.
func (v *AvailabilityValidator) ValidateDay(update *model.DayUpdate) error {
	if err := validation.Struct(v.validate, update); err != nil {
		return err
	}

	seen := make(map[model.SlotRef]struct{}, len(update.Slots))
	for i, slot := range update.Slots {
		if slot.StartTime == slot.EndTime {
			return validation.Single(fmt.Sprintf("slots[%d]", i), "start_time and end_time must differ")
		}
		if _, dup := seen[slot.Ref()]; dup {
			return validation.Single(fmt.Sprintf("slots[%d]", i), fmt.Sprintf("duplicate slot %s", slot.Ref()))
		}
		seen[slot.Ref()] = struct{}{}
	}
	return nil
}

// NormalizeDay returns the slots ordered by start time with every slot free.
func NormalizeDay(slots []model.Slot) []model.Slot {
	out := make([]model.Slot, len(slots))
	for i, s := range slots {
		out[i] = model.Slot{StartTime: s.StartTime, EndTime: s.EndTime}
	}
	return SortSlots(out)
}

// SortSlots orders slots in place by start then end time.
func SortSlots(out []model.Slot) []model.Slot {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].EndTime < out[j].EndTime
	})
	return out
}
