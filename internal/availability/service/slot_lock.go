package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	availabilityerrors "proslots/internal/availability/errors"
	"proslots/internal/availability/repository"
	"proslots/internal/availability/validator"
	"proslots/pkg/config"
	apperrors "proslots/pkg/errors"
	"proslots/pkg/model"
	"proslots/pkg/sanitizer"
)

// SlotLockManager guards a professional's weekly template. Every mutation is a
// single conditional update on the template document, so callers in any
// number of processes may race on the same slots.
type SlotLockManager interface {
	// Reserve books all slots or none of them. A taken slot, a slot the
	// day does not offer or an unknown professional yields a CONFLICT
	// AppError wrapping ErrSlotConflict, ErrSlotNotFound or
	// ErrProfessionalNotFound.
	Reserve(ctx context.Context, proID string, day model.Weekday, slots []model.SlotRef) error
	// Release frees the slots. Releasing free slots is a no-op.
	Release(ctx context.Context, proID string, day model.Weekday, slots []model.SlotRef) error
	GetTemplate(ctx context.Context, proID string) (*model.Professional, error)
	SetDay(ctx context.Context, proID string, day model.Weekday, update *model.DayUpdate) (*model.Professional, error)
}

type slotLockManager struct {
	repo      repository.AvailabilityRepository
	validator *validator.AvailabilityValidator
	cfg       *config.Config
}

func NewSlotLockManager(
	repo repository.AvailabilityRepository,
	validator *validator.AvailabilityValidator,
	cfg *config.Config,
) SlotLockManager {
	return &slotLockManager{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotLockManager) Reserve(ctx context.Context, proID string, day model.Weekday, slots []model.SlotRef) error {
	refs, err := s.prepare(proID, day, slots)
	if err != nil {
		return err
	}

	ok, err := s.repo.ReserveSlots(ctx, proID, day, refs)
	if err != nil {
		return apperrors.Internal("Failed to reserve slots", err)
	}
	if ok {
		s.cfg.Log.Info("Slots reserved", "pro_id", proID, "day", day.Key(), "slots", len(refs))
		return nil
	}

	return s.reserveFallback(ctx, proID, day, refs)
}

// reserveFallback explains a missed conditional update. Only a day that was
// never initialized is written here, and only behind an $exists guard.
func (s *slotLockManager) reserveFallback(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) error {
	pro, err := s.repo.FindByProID(ctx, proID)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrProfessionalNotFound) {
			return s.conflictError(day, refs, err)
		}
		return apperrors.Internal("Failed to load availability", err)
	}

	if pro.Availability.HasDay(day) {
		return s.conflict(pro, day, refs)
	}

	slots := make([]model.Slot, 0, len(refs))
	for _, ref := range refs {
		slots = append(slots, model.Slot{StartTime: ref.StartTime, EndTime: ref.EndTime, Booked: true})
	}
	slots = validator.SortSlots(slots)

	initialized, err := s.repo.InitializeDay(ctx, proID, day, slots)
	if err != nil {
		return apperrors.Internal("Failed to initialize day", err)
	}
	if initialized {
		s.cfg.Log.Info("Day initialized with reserved slots", "pro_id", proID, "day", day.Key(), "slots", len(refs))
		return nil
	}

	// Someone else initialized the day first; the conditional update decides.
	ok, err := s.repo.ReserveSlots(ctx, proID, day, refs)
	if err != nil {
		return apperrors.Internal("Failed to reserve slots", err)
	}
	if !ok {
		return s.conflictError(day, refs, availabilityerrors.ErrSlotConflict)
	}
	s.cfg.Log.Info("Slots reserved", "pro_id", proID, "day", day.Key(), "slots", len(refs))
	return nil
}

func (s *slotLockManager) conflict(pro *model.Professional, day model.Weekday, refs []model.SlotRef) error {
	for _, ref := range refs {
		if pro.Availability.Find(day, ref) < 0 {
			return s.conflictError(day, refs, availabilityerrors.ErrSlotNotFound)
		}
	}
	return s.conflictError(day, refs, availabilityerrors.ErrSlotConflict)
}

func (s *slotLockManager) conflictError(day model.Weekday, refs []model.SlotRef, cause error) error {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.String())
	}

	message := "Requested slot is already booked"
	switch {
	case errors.Is(cause, availabilityerrors.ErrSlotNotFound):
		message = "Requested slot is not offered on this day"
	case errors.Is(cause, availabilityerrors.ErrProfessionalNotFound):
		message = "Professional has no availability"
	}

	return apperrors.Wrap(cause, apperrors.CodeConflict, message, http.StatusConflict).
		WithDetails(map[string]any{"day": day.Key(), "slots": names})
}

func (s *slotLockManager) Release(ctx context.Context, proID string, day model.Weekday, slots []model.SlotRef) error {
	refs, err := s.prepare(proID, day, slots)
	if err != nil {
		return err
	}

	modified, err := s.repo.ReleaseSlots(ctx, proID, day, refs)
	if err != nil {
		return apperrors.Internal("Failed to release slots", err)
	}

	s.cfg.Log.Info("Slots released", "pro_id", proID, "day", day.Key(), "slots", len(refs), "changed", modified > 0)
	return nil
}

func (s *slotLockManager) GetTemplate(ctx context.Context, proID string) (*model.Professional, error) {
	if proID == "" {
		return nil, apperrors.InvalidInput("Professional ID cannot be empty")
	}

	pro, err := s.repo.FindByProID(ctx, proID)
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrProfessionalNotFound) {
			return nil, apperrors.NotFoundWithID("Professional", proID)
		}
		return nil, apperrors.Internal("Failed to load availability", err)
	}
	return pro, nil
}

func (s *slotLockManager) SetDay(ctx context.Context, proID string, day model.Weekday, update *model.DayUpdate) (*model.Professional, error) {
	if proID == "" {
		return nil, apperrors.InvalidInput("Professional ID cannot be empty")
	}
	if !day.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Invalid weekday %d", int(day)))
	}
	update.Slots = sanitizer.NormalizeSlots(update.Slots)
	if err := s.validator.ValidateDay(update); err != nil {
		return nil, validationError(err)
	}

	slots := validator.NormalizeDay(update.Slots)
	if err := s.repo.ReplaceDay(ctx, proID, day, slots); err != nil {
		if errors.Is(err, availabilityerrors.ErrTemplateLocked) {
			return nil, apperrors.Wrap(err, apperrors.CodeConflict,
				"Day has booked slots and cannot be replaced", http.StatusConflict).
				WithDetails(map[string]any{"day": day.Key()})
		}
		return nil, apperrors.Internal("Failed to update availability", err)
	}

	s.cfg.Log.Info("Availability day replaced", "pro_id", proID, "day", day.Key(), "slots", len(slots))
	return s.GetTemplate(ctx, proID)
}

func (s *slotLockManager) prepare(proID string, day model.Weekday, slots []model.SlotRef) ([]model.SlotRef, error) {
	if proID == "" {
		return nil, apperrors.InvalidInput("Professional ID cannot be empty")
	}
	if !day.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Invalid weekday %d", int(day)))
	}
	if len(slots) == 0 {
		return nil, apperrors.Wrap(availabilityerrors.ErrEmptySlots, apperrors.CodeInvalidInput,
			"At least one slot is required", http.StatusBadRequest)
	}
	refs := model.DedupeRefs(sanitizer.NormalizeSlotRefs(slots))
	if err := s.validator.ValidateRefs(refs); err != nil {
		return nil, validationError(err)
	}
	return refs, nil
}

func validationError(err error) error {
	var verrs interface{ Details() map[string]any }
	if errors.As(err, &verrs) {
		return apperrors.Validation(err.Error(), verrs.Details())
	}
	return apperrors.Validation(err.Error(), nil)
}
