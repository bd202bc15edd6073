package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryStore_RollbackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	slot := &Slot{DoctorID: "vet@example.com", StartAt: testNow, DurationMinutes: 30}
	if err := store.Slots().Create(ctx, slot); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if err := store.Slots().SetBooked(ctx, slot.ID, true); err != nil {
			return err
		}
		if err := store.Bookings().Create(ctx, &Booking{UserID: "a@example.com", SlotID: &slot.ID, StartAt: testNow}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := store.Slots().GetByID(ctx, slot.ID)
	if got.Booked {
		t.Error("expected booked flag rolled back")
	}
	items, _ := store.Bookings().ListByUser(ctx, "a@example.com")
	if len(items) != 0 {
		t.Errorf("expected booking rolled back, got %d", len(items))
	}
}

func TestMemoryStore_NestedTxJoins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context) error {
			return store.Slots().Create(ctx, &Slot{DoctorID: "vet@example.com", StartAt: testNow, DurationMinutes: 30})
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
	slots, _ := store.Slots().ListByDoctor(ctx, "vet@example.com")
	if len(slots) != 1 {
		t.Errorf("expected 1 slot, got %d", len(slots))
	}
}

func TestMemoryStore_SlotConstraints(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	slot := &Slot{DoctorID: "vet@example.com", StartAt: testNow, DurationMinutes: 30}
	if err := store.Slots().Create(ctx, slot); err != nil {
		t.Fatalf("create: %v", err)
	}

	first := &Booking{UserID: "a@example.com", SlotID: &slot.ID, StartAt: testNow, DurationMinutes: 30}
	if err := store.Bookings().Create(ctx, first); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	second := &Booking{UserID: "b@example.com", SlotID: &slot.ID, StartAt: testNow, DurationMinutes: 30}
	if err := store.Bookings().Create(ctx, second); !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Errorf("expected ErrSlotAlreadyBooked, got %v", err)
	}
	if err := store.Slots().Delete(ctx, slot.ID); !errors.Is(err, ErrSlotInUse) {
		t.Errorf("expected ErrSlotInUse, got %v", err)
	}

	missing := uuid.New()
	if err := store.Bookings().Create(ctx, &Booking{UserID: "c@example.com", SlotID: &missing}); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
	if err := store.Slots().SetBooked(ctx, missing, true); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
	if err := store.Bookings().Delete(ctx, missing); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	slot := &Slot{DoctorID: "vet@example.com", StartAt: testNow, DurationMinutes: 30}
	if err := store.Slots().Create(ctx, slot); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.Slots().GetByID(ctx, slot.ID)
	got.Booked = true
	again, _ := store.Slots().GetByID(ctx, slot.ID)
	if again.Booked {
		t.Error("mutating a returned slot must not change the store")
	}
}

func TestMemoryStore_ListStartingBetweenInclusive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, offset := range []time.Duration{-time.Minute, 0, 30 * time.Minute, 31 * time.Minute} {
		if err := store.Bookings().Create(ctx, &Booking{UserID: "a@example.com", StartAt: testNow.Add(offset), DurationMinutes: 30}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, err := store.Bookings().ListStartingBetween(ctx, testNow, testNow.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 bookings on the closed range, got %d", len(items))
	}
	if !items[0].StartAt.Before(items[1].StartAt) {
		t.Error("expected ascending order")
	}
}
