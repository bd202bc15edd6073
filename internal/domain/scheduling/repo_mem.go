package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memTxKey struct{}

// MemoryStore keeps slots and bookings in process memory. It backs
// STORE_BACKEND=memory and the service tests. A transaction holds the store
// mutex for its whole duration and restores a snapshot if fn fails, so the
// store enforces the same constraints as the Postgres schema: one booking
// per slot and no deleting a slot that a booking references.
type MemoryStore struct {
	mu       sync.Mutex
	slots    map[uuid.UUID]Slot
	bookings map[uuid.UUID]Booking
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:    make(map[uuid.UUID]Slot),
		bookings: make(map[uuid.UUID]Booking),
		now:      time.Now,
	}
}

func (m *MemoryStore) Slots() SlotRepository       { return memSlots{m} }
func (m *MemoryStore) Bookings() BookingRepository { return memBookings{m} }

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if m.inTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	slots := make(map[uuid.UUID]Slot, len(m.slots))
	for k, v := range m.slots {
		slots[k] = v
	}
	bookings := make(map[uuid.UUID]Booking, len(m.bookings))
	for k, v := range m.bookings {
		bookings[k] = v
	}
	defer func() {
		if r := recover(); r != nil {
			m.slots, m.bookings = slots, bookings
			panic(r)
		}
		if err != nil {
			m.slots, m.bookings = slots, bookings
		}
	}()

	return fn(context.WithValue(ctx, memTxKey{}, m))
}

func (m *MemoryStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryStore)
	return owner == m
}

// lock takes the store mutex unless ctx already runs inside one of this
// store's transactions.
func (m *MemoryStore) lock(ctx context.Context) func() {
	if m.inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// =========== Slots ===========

type memSlots struct{ m *MemoryStore }

func (r memSlots) Create(ctx context.Context, s *Slot) error {
	defer r.m.lock(ctx)()
	s.ID = uuid.New()
	now := r.m.now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	r.m.slots[s.ID] = *s
	return nil
}

func (r memSlots) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	defer r.m.lock(ctx)()
	s, ok := r.m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r memSlots) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.GetByID(ctx, id)
}

func (r memSlots) SetBooked(ctx context.Context, id uuid.UUID, booked bool) error {
	defer r.m.lock(ctx)()
	s, ok := r.m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	s.Booked = booked
	s.UpdatedAt = r.m.now().UTC()
	r.m.slots[id] = s
	return nil
}

func (r memSlots) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.m.lock(ctx)()
	if _, ok := r.m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	for _, b := range r.m.bookings {
		if b.SlotID != nil && *b.SlotID == id {
			return ErrSlotInUse
		}
	}
	delete(r.m.slots, id)
	return nil
}

func (r memSlots) ListByDoctor(ctx context.Context, doctorID string) ([]*Slot, error) {
	defer r.m.lock(ctx)()
	var items []*Slot
	for _, s := range r.m.slots {
		if s.DoctorID == doctorID {
			s := s
			items = append(items, &s)
		}
	}
	sortSlots(items, true)
	return items, nil
}

func (r memSlots) ListOpen(ctx context.Context, after time.Time) ([]*Slot, error) {
	defer r.m.lock(ctx)()
	var items []*Slot
	for _, s := range r.m.slots {
		if !s.Booked && s.StartAt.After(after) {
			s := s
			items = append(items, &s)
		}
	}
	sortSlots(items, false)
	return items, nil
}

func sortSlots(items []*Slot, desc bool) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.Before(b.StartAt) != desc
		}
		return a.ID.String() < b.ID.String()
	})
}

// =========== Bookings ===========

type memBookings struct{ m *MemoryStore }

func (r memBookings) Create(ctx context.Context, b *Booking) error {
	defer r.m.lock(ctx)()
	if b.SlotID != nil {
		if _, ok := r.m.slots[*b.SlotID]; !ok {
			return ErrSlotNotFound
		}
		for _, other := range r.m.bookings {
			if other.SlotID != nil && *other.SlotID == *b.SlotID {
				return ErrSlotAlreadyBooked
			}
		}
	}
	b.ID = uuid.New()
	b.CreatedAt = r.m.now().UTC()
	r.m.bookings[b.ID] = *b
	return nil
}

func (r memBookings) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	defer r.m.lock(ctx)()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (r memBookings) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.m.lock(ctx)()
	if _, ok := r.m.bookings[id]; !ok {
		return ErrBookingNotFound
	}
	delete(r.m.bookings, id)
	return nil
}

func (r memBookings) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	defer r.m.lock(ctx)()
	var items []*Booking
	for _, b := range r.m.bookings {
		if !b.StartAt.Before(from) && !b.StartAt.After(to) {
			b := b
			items = append(items, &b)
		}
	}
	sortBookings(items, false)
	return items, nil
}

func (r memBookings) ListByUser(ctx context.Context, userID string) ([]*Booking, error) {
	defer r.m.lock(ctx)()
	var items []*Booking
	for _, b := range r.m.bookings {
		if b.UserID == userID {
			b := b
			items = append(items, &b)
		}
	}
	sortBookings(items, true)
	return items, nil
}

// LockBookingWindow is a no-op: a memory transaction already excludes every
// other writer.
func (r memBookings) LockBookingWindow(ctx context.Context) error {
	return nil
}

func sortBookings(items []*Booking, desc bool) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.StartAt.Equal(b.StartAt) {
			return a.StartAt.Before(b.StartAt) != desc
		}
		return a.ID.String() < b.ID.String()
	})
}
