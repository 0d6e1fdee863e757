package release

import (
	"context"
	"testing"
	"time"

	"proslots/internal/events"
	"proslots/pkg/logger"
	"proslots/pkg/model"
)

type reconcileFixture struct {
	store *fakeBookingStore
	slots *fakeSlots
	pub   *recordingPublisher
	queue *MemoryQueue
	rec   *Reconciler
	now   time.Time
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	slots := newFakeSlots()
	f := &reconcileFixture{
		store: linkedStore(slots),
		slots: slots,
		pub:   &recordingPublisher{},
		queue: NewMemoryQueue(),
		now:   time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC),
	}
	log := logger.Discard()
	scheduler := NewScheduler(f.queue, log)
	scheduler.now = func() time.Time { return f.now }
	releaser := NewReleaser(f.store, f.slots, f.pub, kolkata(t), log)
	f.rec = NewReconciler(f.store, f.queue, scheduler, releaser, log)
	f.rec.now = func() time.Time { return f.now }
	return f
}

func (f *reconcileFixture) add(t *testing.T, id string, status model.BookingStatus, releaseAt time.Time, ref model.SlotRef) {
	t.Helper()
	if err := f.slots.Reserve(context.Background(), testProID, model.Monday, []model.SlotRef{ref}); err != nil {
		t.Fatalf("Reserve(%s) error = %v", ref, err)
	}
	b := outstandingBooking(id, "2025-06-02", ref)
	b.Status = status
	b.SlotReleaseAt = &releaseAt
	f.store.put(b)
}

func TestReconciler_Resync(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)

	refs := []model.SlotRef{
		{StartTime: "06:00", EndTime: "07:00"},
		{StartTime: "12:00", EndTime: "13:00"},
		{StartTime: "13:00", EndTime: "14:00"},
		{StartTime: "14:00", EndTime: "15:00"},
		{StartTime: "15:00", EndTime: "16:00"},
	}
	f.slots.offer(testProID, model.Monday, refs...)

	// Appointment already over while the process was down.
	f.add(t, "past", model.BookingAccepted, f.now.Add(-time.Hour), refs[0])
	// Future appointment whose job was lost.
	f.add(t, "lost", model.BookingPending, f.now.Add(5*time.Hour), refs[1])
	// Future appointment still queued.
	f.add(t, "queued", model.BookingAccepted, f.now.Add(6*time.Hour), refs[2])
	_ = f.queue.Enqueue(ctx, "queued", f.now.Add(6*time.Hour))
	// Future appointment whose job died.
	f.add(t, "dead", model.BookingPending, f.now.Add(7*time.Hour), refs[3])
	_ = f.queue.Enqueue(ctx, "dead", f.now)
	_, _ = f.queue.Claim(ctx, f.now, time.Minute, 10)
	_ = f.queue.Bury(ctx, "dead", "gave up")
	// Cancel that stopped before clearing the job id.
	f.add(t, "cancelled", model.BookingCancelled, f.now.Add(8*time.Hour), refs[4])
	_ = f.queue.Enqueue(ctx, "cancelled", f.now.Add(8*time.Hour))

	got, err := f.rec.Resync(ctx)
	if err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	want := SweepResult{Scanned: 5, Released: 2, Requeued: 2, Untouched: 1}
	if got != want {
		t.Errorf("Resync() = %+v, want %+v", got, want)
	}

	for _, id := range []string{"past", "cancelled"} {
		if f.store.get(id).HasOutstandingRelease() {
			t.Errorf("%s still owes a release", id)
		}
		if ok, _ := f.queue.IsScheduled(ctx, id); ok {
			t.Errorf("%s still queued", id)
		}
	}
	if f.slots.booked(testProID, model.Monday, refs[0]) || f.slots.booked(testProID, model.Monday, refs[4]) {
		t.Error("released slots still booked")
	}
	for i, id := range []string{"lost", "queued", "dead"} {
		if !f.slots.booked(testProID, model.Monday, refs[i+1]) {
			t.Errorf("slot of %s freed early", id)
		}
	}

	if due, ok := f.queue.DueAt("lost"); !ok || !due.Equal(f.now.Add(5*time.Hour)) {
		t.Errorf("lost job due = %v, %v", due, ok)
	}
	if due, ok := f.queue.DueAt("dead"); !ok || !due.Equal(f.now.Add(7*time.Hour)) {
		t.Errorf("dead job due = %v, %v", due, ok)
	}

	reasons := map[string]string{}
	for _, ev := range f.pub.events {
		reasons[ev.BookingID] = ev.Reason
	}
	if reasons["past"] != events.ReasonElapsed || reasons["cancelled"] != events.ReasonCancelled {
		t.Errorf("reasons = %v", reasons)
	}
}

func TestReconciler_ResyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	past := model.SlotRef{StartTime: "06:00", EndTime: "07:00"}
	f.slots.offer(testProID, model.Monday, past, nineToTen)
	f.add(t, "past", model.BookingPending, f.now.Add(-time.Hour), past)
	f.add(t, "future", model.BookingPending, f.now.Add(2*time.Hour), nineToTen)

	if _, err := f.rec.Resync(ctx); err != nil {
		t.Fatal(err)
	}
	published := f.pub.count()
	jobs := f.queue.Len()

	got, err := f.rec.Resync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := (SweepResult{Scanned: 1, Untouched: 1}); got != want {
		t.Errorf("second Resync() = %+v, want %+v", got, want)
	}
	if f.pub.count() != published || f.queue.Len() != jobs {
		t.Error("second sweep changed state")
	}
}

func TestReconciler_CountsFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	f.slots.offer(testProID, model.Monday, nineToTen)
	f.add(t, "future", model.BookingPending, f.now.Add(2*time.Hour), nineToTen)

	broken := outstandingBooking("broken", "not-a-date", nineToTen)
	earlier := f.now.Add(-2 * time.Hour)
	broken.SlotReleaseAt = &earlier
	f.store.put(broken)

	got, err := f.rec.Resync(ctx)
	if err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	if want := (SweepResult{Scanned: 2, Requeued: 1, Failed: 1}); got != want {
		t.Errorf("Resync() = %+v, want %+v", got, want)
	}
}

func TestReconciler_StopsOnCancelledContext(t *testing.T) {
	f := newReconcileFixture(t)
	f.slots.offer(testProID, model.Monday, nineToTen)
	f.add(t, "future", model.BookingPending, f.now.Add(2*time.Hour), nineToTen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.rec.Resync(ctx); err == nil {
		t.Error("Resync() error = nil, want context error")
	}
}
