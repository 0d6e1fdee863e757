package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "proslots/internal/availability/errors"
	"proslots/pkg/config"
	mongotx "proslots/pkg/db/mongo"
	"proslots/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Professionals"
)

type AvailabilityRepository interface {
	FindByProID(ctx context.Context, proID string) (*model.Professional, error)
	// ReserveSlots flips every ref to booked in one conditional update and
	// reports false when any of them was missing or already booked.
	ReserveSlots(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) (bool, error)
	// InitializeDay writes slots for a day the document does not have yet and
	// reports false if the day appeared in the meantime.
	InitializeDay(ctx context.Context, proID string, day model.Weekday, slots []model.Slot) (bool, error)
	ReleaseSlots(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) (int64, error)
	ReplaceDay(ctx context.Context, proID string, day model.Weekday, slots []model.Slot) error
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAvailabilityRepository) FindByProID(ctx context.Context, proID string) (*model.Professional, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var pro model.Professional
	err := r.collection.FindOne(ctx, bson.M{"_id": proID}).Decode(&pro)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrProfessionalNotFound
		}
		return nil, fmt.Errorf("failed to find professional: %w", err)
	}

	return &pro, nil
}

func (r *mongoAvailabilityRepository) ReserveSlots(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set, arrayFilters := slotUpdate(day, refs, true)
	set["updated_at"] = time.Now().UTC()

	opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
	result, err := r.collection.UpdateOne(ctx, reserveFilter(proID, day, refs), bson.M{"$set": set}, opts)
	if err != nil {
		return false, fmt.Errorf("failed to reserve slots: %w", err)
	}

	return result.MatchedCount == 1, nil
}

func (r *mongoAvailabilityRepository) InitializeDay(ctx context.Context, proID string, day model.Weekday, slots []model.Slot) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		dayPath(day): slots,
		"updated_at": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, initDayFilter(proID, day), update)
	if err != nil {
		return false, fmt.Errorf("failed to initialize day: %w", err)
	}

	return result.MatchedCount == 1, nil
}

func (r *mongoAvailabilityRepository) ReleaseSlots(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set, arrayFilters := slotUpdate(day, refs, false)
	set["updated_at"] = time.Now().UTC()

	opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
	result, err := r.collection.UpdateOne(ctx, releaseFilter(proID, day), bson.M{"$set": set}, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to release slots: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *mongoAvailabilityRepository) ReplaceDay(ctx context.Context, proID string, day model.Weekday, slots []model.Slot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		dayPath(day): slots,
		"updated_at": time.Now().UTC(),
	}}

	// A booked slot makes the filter miss, and the upsert then collides with
	// the existing _id.
	_, err := r.collection.UpdateOne(ctx, replaceDayFilter(proID, day), update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return availabilityerrors.ErrTemplateLocked
		}
		return fmt.Errorf("failed to replace day: %w", err)
	}

	return nil
}
