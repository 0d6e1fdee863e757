package release

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	bookingserrors "proslots/internal/bookings/errors"
	"proslots/internal/events"
	"proslots/pkg/civiltime"
	mongotx "proslots/pkg/db/mongo"
	apperrors "proslots/pkg/errors"
	"proslots/pkg/model"
)

const testProID = "665f1c2e8b3a4d0012a3b4c5"

// fakeBookingStore keeps bookings in memory. Transactions run one at a time
// and, on error, restore the bookings and the templates of the linked slots.
type fakeBookingStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	bookings map[string]*model.Booking
	slots    *fakeSlots
	clearErr []error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]*model.Booking)}
}

// linkedStore returns a store whose transactions also cover slots.
func linkedStore(slots *fakeSlots) *fakeBookingStore {
	f := newFakeBookingStore()
	f.slots = slots
	return f
}

// failClears makes the next ClearReleaseJob calls fail with errs, in order.
func (f *fakeBookingStore) failClears(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearErr = append(f.clearErr, errs...)
}

func (f *fakeBookingStore) put(b *model.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bookings[b.ID] = &cp
}

func (f *fakeBookingStore) get(id string) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (f *fakeBookingStore) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if b := f.get(id); b != nil {
		return b, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookingStore) ClearReleaseJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clearErr) > 0 {
		err := f.clearErr[0]
		f.clearErr = f.clearErr[1:]
		return err
	}
	b, ok := f.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	b.SlotReleaseJobID = nil
	return nil
}

func (f *fakeBookingStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	bookings := make(map[string]*model.Booking, len(f.bookings))
	for id, b := range f.bookings {
		cp := *b
		bookings[id] = &cp
	}
	f.mu.Unlock()

	var pros map[string]*model.Professional
	if f.slots != nil {
		pros = f.slots.snapshot()
	}

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.bookings = bookings
		f.mu.Unlock()
		if f.slots != nil {
			f.slots.restore(pros)
		}
		return err
	}
	return nil
}

func (f *fakeBookingStore) ForEachOutstandingRelease(ctx context.Context, fn func(*model.Booking) error) error {
	f.mu.Lock()
	var outstanding []*model.Booking
	for _, b := range f.bookings {
		if b.HasOutstandingRelease() && b.SlotReleaseAt != nil {
			cp := *b
			outstanding = append(outstanding, &cp)
		}
	}
	f.mu.Unlock()

	sort.Slice(outstanding, func(i, j int) bool {
		return outstanding[i].SlotReleaseAt.Before(*outstanding[j].SlotReleaseAt)
	})
	for _, b := range outstanding {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

// fakeSlots holds availability templates and applies each call atomically.
type fakeSlots struct {
	mu       sync.Mutex
	pros     map[string]*model.Professional
	releases int
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{pros: make(map[string]*model.Professional)}
}

func (f *fakeSlots) offer(proID string, day model.Weekday, refs ...model.SlotRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pro, ok := f.pros[proID]
	if !ok {
		pro = &model.Professional{ID: proID}
		f.pros[proID] = pro
	}
	slots := make([]model.Slot, 0, len(refs))
	for _, r := range refs {
		slots = append(slots, model.Slot{StartTime: r.StartTime, EndTime: r.EndTime})
	}
	pro.Availability.SetDay(day, slots)
}

func (f *fakeSlots) snapshot() map[string]*model.Professional {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*model.Professional, len(f.pros))
	for id, pro := range f.pros {
		out[id] = cloneProfessional(pro)
	}
	return out
}

func (f *fakeSlots) restore(pros map[string]*model.Professional) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pros = pros
}

func cloneProfessional(pro *model.Professional) *model.Professional {
	cp := *pro
	for _, d := range model.AllWeekdays() {
		if src := pro.Availability.Day(d); src != nil {
			cp.Availability.SetDay(d, append([]model.Slot(nil), src...))
		}
	}
	return &cp
}

func (f *fakeSlots) booked(proID string, day model.Weekday, ref model.SlotRef) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	pro := f.pros[proID]
	idx := pro.Availability.Find(day, ref)
	return idx >= 0 && pro.Availability.Day(day)[idx].Booked
}

func (f *fakeSlots) Reserve(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pro, ok := f.pros[proID]
	if !ok {
		return apperrors.NotFound("Professional")
	}
	slots := pro.Availability.Day(day)
	for _, ref := range refs {
		idx := pro.Availability.Find(day, ref)
		if idx < 0 || slots[idx].Booked {
			return apperrors.Conflict("Requested slot is already booked")
		}
	}
	for _, ref := range refs {
		slots[pro.Availability.Find(day, ref)].Booked = true
	}
	return nil
}

func (f *fakeSlots) GetTemplate(ctx context.Context, proID string) (*model.Professional, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pro, ok := f.pros[proID]
	if !ok {
		return nil, apperrors.NotFoundWithID("Professional", proID)
	}
	return cloneProfessional(pro), nil
}

func (f *fakeSlots) Release(ctx context.Context, proID string, day model.Weekday, refs []model.SlotRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	pro, ok := f.pros[proID]
	if !ok {
		return nil
	}
	slots := pro.Availability.Day(day)
	for _, ref := range refs {
		if idx := pro.Availability.Find(day, ref); idx >= 0 {
			slots[idx].Booked = false
		}
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SlotEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.SlotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// clock is a settable time source shared by every component of a test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := civiltime.LoadZone(civiltime.DefaultZone)
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

var nineToTen = model.SlotRef{StartTime: "09:00", EndTime: "10:00"}
