package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotRepository persists availability slots. GetByID and GetForUpdate return
// ErrSlotNotFound for unknown ids.
type SlotRepository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetForUpdate reads the slot and holds it for the rest of the
	// surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	SetBooked(ctx context.Context, id uuid.UUID, booked bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByDoctor returns every slot for the doctor, newest first.
	ListByDoctor(ctx context.Context, doctorID string) ([]*Slot, error)
	// ListOpen returns unbooked slots starting strictly after the given
	// instant, earliest first.
	ListOpen(ctx context.Context, after time.Time) ([]*Slot, error)
}

// BookingRepository persists bookings. GetByID returns ErrBookingNotFound for
// unknown ids.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ListStartingBetween returns bookings with from <= StartAt <= to,
	// earliest first.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Booking, error)
	// ListByUser returns the user's bookings, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	// LockBookingWindow serializes free-form conflict checks for the rest of
	// the surrounding transaction.
	LockBookingWindow(ctx context.Context) error
}

// Transactor runs fn atomically. Repository calls made with the ctx passed
// to fn take part in the same unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
