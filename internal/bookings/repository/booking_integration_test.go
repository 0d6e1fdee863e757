package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	bookingserrors "proslots/internal/bookings/errors"
	"proslots/pkg/client"
	"proslots/pkg/config"
	"proslots/pkg/logger"
	"proslots/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newIntegrationRepo(t *testing.T) BookingRepository {
	t.Helper()

	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Skipf("mongo not reachable: %v", err)
	}

	dbName := fmt.Sprintf("proslots_test_%d", time.Now().UnixNano())
	cfg := &config.Config{
		MongoDatabaseName: dbName,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Log:               logger.Discard(),
		Client:            &client.Client{Mongo: mc},
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mc.Database(dbName).Drop(ctx)
		_ = mc.Disconnect(ctx)
	})

	return NewMongoBookingRepository(cfg)
}

func newBooking(releaseAt time.Time, withJob bool) *model.Booking {
	b := &model.Booking{
		ID:            NewID(),
		ProID:         "665f1c2e8b3a4d0012a3b4c5",
		UserID:        "user-1",
		PreferredDate: "2025-06-02",
		PreferredTime: []model.SlotRef{{StartTime: "09:00", EndTime: "10:00"}},
		Status:        model.BookingPending,
	}
	releaseAt = releaseAt.UTC().Truncate(time.Millisecond)
	b.SlotReleaseAt = &releaseAt
	if withJob {
		id := b.ID
		b.SlotReleaseJobID = &id
	}
	return b
}

func TestIntegration_BookingLifecycle(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()

	b := newBooking(time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC), true)
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.HasOutstandingRelease() || !got.SlotReleaseAt.Equal(*b.SlotReleaseAt) {
		t.Errorf("stored booking = %+v", got)
	}

	if err := repo.UpdateStatus(ctx, b.ID, model.BookingPending, model.BookingAccepted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	err = repo.UpdateStatus(ctx, b.ID, model.BookingPending, model.BookingCancelled)
	if !errors.Is(err, bookingserrors.ErrInvalidTransition) {
		t.Errorf("stale UpdateStatus error = %v, want ErrInvalidTransition", err)
	}

	if err := repo.ClearReleaseJob(ctx, b.ID); err != nil {
		t.Fatalf("ClearReleaseJob: %v", err)
	}
	got, _ = repo.FindByID(ctx, b.ID)
	if got.HasOutstandingRelease() {
		t.Error("release job id not cleared")
	}

	if _, err := repo.FindByID(ctx, NewID()); !errors.Is(err, bookingserrors.ErrNotFound) {
		t.Errorf("FindByID(missing) error = %v", err)
	}
	if _, err := repo.FindByID(ctx, "nope"); !errors.Is(err, bookingserrors.ErrInvalidID) {
		t.Errorf("FindByID(bad id) error = %v", err)
	}
}

func TestIntegration_ForEachOutstandingRelease(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC)

	late := newBooking(base.Add(2*time.Hour), true)
	early := newBooking(base, true)
	released := newBooking(base.Add(time.Hour), false)
	for _, b := range []*model.Booking{late, early, released} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	var seen []string
	err := repo.ForEachOutstandingRelease(ctx, func(b *model.Booking) error {
		seen = append(seen, b.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachOutstandingRelease: %v", err)
	}
	if len(seen) != 2 || seen[0] != early.ID || seen[1] != late.ID {
		t.Errorf("seen = %v, want [%s %s]", seen, early.ID, late.ID)
	}
}
