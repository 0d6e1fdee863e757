package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proslots/internal/migrations/mongo/validators"
	"proslots/pkg/logger"
)

const (
	ProfessionalsCollection = "Professionals"
	BookingsCollection      = "Bookings"
)

var (
	ProfessionalsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			// The reconciliation sweep scans outstanding releases in time order.
			Keys: bson.D{
				{Key: "slot_release_job_id", Value: 1},
				{Key: "slot_release_at", Value: 1},
			},
			Options: options.Index().SetName("outstanding_release"),
		},
		{Keys: bson.D{
			{Key: "pro_id", Value: 1},
			{Key: "preferred_date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}
)

type collectionDef struct {
	name      string
	indexes   []mongo.IndexModel
	validator bson.M
}

func collections() []collectionDef {
	return []collectionDef{
		{name: ProfessionalsCollection, indexes: ProfessionalsIndexes, validator: validators.ProfessionalValidator},
		{name: BookingsCollection, indexes: BookingsIndexes, validator: validators.BookingValidator},
	}
}

// RunMigration creates the collections with their validators and indexes.
// Running it again updates validators and leaves existing indexes alone.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range collections() {
		if err := ensureCollection(ctx, db, def.name, def.validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.name, err)
		}
		if err := ensureIndexes(ctx, db, def.name, def.indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.name, err)
		}
		log.Info("Collection migrated", "collection", def.name, "indexes", len(def.indexes))
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed to update validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	_, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	return err
}
