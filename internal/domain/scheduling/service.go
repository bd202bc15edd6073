package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adoptionplatform/vetcare/internal/platform/auth"
	"github.com/adoptionplatform/vetcare/internal/platform/lock"
)

const (
	defaultRangeSpan    = 30 * 24 * time.Hour
	defaultOpenLookback = time.Hour
)

// domainErrors pass through the service unchanged. Anything else coming out
// of a repository or the locker is reported as ErrStoreUnavailable.
var domainErrors = []error{
	ErrInvalidTimeFormat, ErrInvalidDuration, ErrMessageTooLong,
	ErrSlotNotFound, ErrBookingNotFound,
	ErrSlotAlreadyBooked, ErrSlotConflict, ErrSlotInUse,
	auth.ErrForbidden, auth.ErrUnauthenticated,
}

// Service is the booking engine. Every operation takes the caller's
// principal explicitly and checks it with auth.Authorize before touching
// the stores.
type Service struct {
	slots    SlotRepository
	bookings BookingRepository
	tx       Transactor
	locker   lock.Locker
	times    TimeParser
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(slots SlotRepository, bookings BookingRepository, tx Transactor, locker lock.Locker, times TimeParser, logger zerolog.Logger) *Service {
	return &Service{
		slots:    slots,
		bookings: bookings,
		tx:       tx,
		locker:   locker,
		times:    times,
		logger:   logger,
		now:      time.Now,
	}
}

// ParseTime exposes the service's time parser to transport code.
func (s *Service) ParseTime(raw string) (time.Time, error) {
	return s.times.Parse(raw)
}

func (s *Service) storeErr(op string, err error) error {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	s.logger.Warn().Err(err).Str("op", op).Msg("store unavailable")
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (s *Service) acquire(ctx context.Context, op, key string) (func(), error) {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return nil, s.storeErr(op, err)
	}
	return release, nil
}

func normalizeDuration(minutes int) (int, error) {
	switch {
	case minutes == 0:
		return DefaultDurationMinutes, nil
	case minutes < 0, minutes > MaxDurationMinutes:
		return 0, fmt.Errorf("%w: %d", ErrInvalidDuration, minutes)
	}
	return minutes, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeContact(c Contact) (phone, message *string, err error) {
	phone, message = optional(c.Phone), optional(c.Message)
	if message != nil && utf8.RuneCountInString(*message) > MaxMessageLength {
		return nil, nil, ErrMessageTooLong
	}
	return phone, message, nil
}

func canManage(p auth.Principal, ownerID string) bool {
	return p.IsAdmin() || (p.Authenticated() && p.ID == ownerID)
}

// -- Booking --

// BookViaSlot consumes an unbooked slot. The booking insert and the slot's
// booked flag commit together.
func (s *Service) BookViaSlot(ctx context.Context, p auth.Principal, slotID uuid.UUID, contact Contact) (*Booking, error) {
	if err := auth.Authorize(p, auth.OpBookViaSlot); err != nil {
		return nil, err
	}
	phone, message, err := normalizeContact(contact)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, "bookViaSlot", lock.SlotKey(slotID))
	if err != nil {
		return nil, err
	}
	defer release()

	var booking *Booking
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if slot.Booked {
			return ErrSlotAlreadyBooked
		}
		// Keeps slot bookings and free-form conflict checks from
		// interleaving across processes.
		if err := s.bookings.LockBookingWindow(ctx); err != nil {
			return err
		}

		doctorID, id := slot.DoctorID, slot.ID
		b := &Booking{
			UserID:          p.ID,
			DoctorID:        &doctorID,
			SlotID:          &id,
			StartAt:         slot.StartAt,
			DurationMinutes: slot.DurationMinutes,
			Phone:           phone,
			Message:         message,
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return err
		}
		if err := s.slots.SetBooked(ctx, slot.ID, true); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, s.storeErr("bookViaSlot", err)
	}

	s.logger.Info().
		Str("booking_id", booking.ID.String()).
		Str("slot_id", slotID.String()).
		Str("user", p.ID).
		Time("start_at", booking.StartAt).
		Time("end_at", booking.EndAt()).
		Msg("booking created")
	return booking, nil
}

// BookFreeForm books an arbitrary start time after re-checking for
// conflicts under the booking window lock.
func (s *Service) BookFreeForm(ctx context.Context, p auth.Principal, startRaw string, durationMinutes int, contact Contact) (*Booking, error) {
	if err := auth.Authorize(p, auth.OpBookFreeForm); err != nil {
		return nil, err
	}
	start, err := s.times.Parse(startRaw)
	if err != nil {
		return nil, err
	}
	duration, err := normalizeDuration(durationMinutes)
	if err != nil {
		return nil, err
	}
	phone, message, err := normalizeContact(contact)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, "bookFreeForm", lock.FreeFormKey)
	if err != nil {
		return nil, err
	}
	defer release()

	b := &Booking{
		UserID:          p.ID,
		StartAt:         start.UTC(),
		DurationMinutes: duration,
		Phone:           phone,
		Message:         message,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.bookings.LockBookingWindow(ctx); err != nil {
			return err
		}
		from, to := ConflictWindow(b.StartAt, duration)
		existing, err := s.bookings.ListStartingBetween(ctx, from, to)
		if err != nil {
			return err
		}
		if HasConflict(existing, b.StartAt, duration, nil) {
			return ErrSlotConflict
		}
		return s.bookings.Create(ctx, b)
	})
	if err != nil {
		return nil, s.storeErr("bookFreeForm", err)
	}

	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("user", p.ID).
		Time("start_at", b.StartAt).
		Time("end_at", b.EndAt()).
		Msg("booking created")
	return b, nil
}

// ListForRange returns every booking starting in [from, to]. Zero bounds
// default to 30 days either side of now.
func (s *Service) ListForRange(ctx context.Context, p auth.Principal, from, to time.Time) ([]*Booking, error) {
	if err := auth.Authorize(p, auth.OpListForRange); err != nil {
		return nil, err
	}
	now := s.now()
	if from.IsZero() {
		from = now.Add(-defaultRangeSpan)
	}
	if to.IsZero() {
		to = now.Add(defaultRangeSpan)
	}
	items, err := s.bookings.ListStartingBetween(ctx, from, to)
	if err != nil {
		return nil, s.storeErr("listForRange", err)
	}
	return items, nil
}

func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]*Booking, error) {
	if err := auth.Authorize(p, auth.OpListMine); err != nil {
		return nil, err
	}
	items, err := s.bookings.ListByUser(ctx, p.ID)
	if err != nil {
		return nil, s.storeErr("listMine", err)
	}
	return items, nil
}

// CancelBooking deletes a booking owned by p (or any booking, for admins)
// and frees the slot it consumed, if any.
func (s *Service) CancelBooking(ctx context.Context, p auth.Principal, bookingID uuid.UUID) error {
	if err := auth.Authorize(p, auth.OpCancelBooking); err != nil {
		return err
	}

	// Read once outside the transaction to learn which slot key to hold.
	existing, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return s.storeErr("cancelBooking", err)
	}
	if !canManage(p, existing.UserID) {
		return fmt.Errorf("%w: booking belongs to another user", auth.ErrForbidden)
	}

	key := lock.FreeFormKey
	if existing.SlotID != nil {
		key = lock.SlotKey(*existing.SlotID)
	}
	release, err := s.acquire(ctx, "cancelBooking", key)
	if err != nil {
		return err
	}
	defer release()

	var freed *uuid.UUID
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := s.bookings.Delete(ctx, b.ID); err != nil {
			return err
		}
		if b.SlotID == nil {
			return nil
		}
		if _, err := s.slots.GetForUpdate(ctx, *b.SlotID); err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return nil
			}
			return err
		}
		if err := s.slots.SetBooked(ctx, *b.SlotID, false); err != nil {
			return err
		}
		freed = b.SlotID
		return nil
	})
	if err != nil {
		return s.storeErr("cancelBooking", err)
	}

	evt := s.logger.Info().
		Str("booking_id", bookingID.String()).
		Str("actor", p.ID)
	if freed != nil {
		evt = evt.Str("slot_id", freed.String())
	}
	evt.Msg("booking cancelled")
	return nil
}

// -- Availability --

// ListOpenSlots returns unbooked slots starting after the given instant,
// defaulting to one hour ago.
func (s *Service) ListOpenSlots(ctx context.Context, p auth.Principal, after time.Time) ([]*Slot, error) {
	if err := auth.Authorize(p, auth.OpListOpenSlots); err != nil {
		return nil, err
	}
	if after.IsZero() {
		after = s.now().Add(-defaultOpenLookback)
	}
	items, err := s.slots.ListOpen(ctx, after)
	if err != nil {
		return nil, s.storeErr("listOpenSlots", err)
	}
	return items, nil
}

// ListDoctorSlots returns all of a doctor's slots, booked ones included.
func (s *Service) ListDoctorSlots(ctx context.Context, p auth.Principal, doctorID string) ([]*Slot, error) {
	if err := auth.Authorize(p, auth.OpListDoctorSlots); err != nil {
		return nil, err
	}
	items, err := s.slots.ListByDoctor(ctx, strings.TrimSpace(doctorID))
	if err != nil {
		return nil, s.storeErr("listDoctorSlots", err)
	}
	return items, nil
}

func (s *Service) ListMySlots(ctx context.Context, p auth.Principal) ([]*Slot, error) {
	if err := auth.Authorize(p, auth.OpListMySlots); err != nil {
		return nil, err
	}
	items, err := s.slots.ListByDoctor(ctx, p.ID)
	if err != nil {
		return nil, s.storeErr("listMySlots", err)
	}
	return items, nil
}

// PublishSlot creates an unbooked slot owned by p.
func (s *Service) PublishSlot(ctx context.Context, p auth.Principal, startRaw string, durationMinutes int) (*Slot, error) {
	if err := auth.Authorize(p, auth.OpPublishSlot); err != nil {
		return nil, err
	}
	start, err := s.times.Parse(startRaw)
	if err != nil {
		return nil, err
	}
	duration, err := normalizeDuration(durationMinutes)
	if err != nil {
		return nil, err
	}

	slot := &Slot{
		DoctorID:        p.ID,
		StartAt:         start.UTC(),
		DurationMinutes: duration,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, s.storeErr("publishSlot", err)
	}

	s.logger.Info().
		Str("slot_id", slot.ID.String()).
		Str("doctor", slot.DoctorID).
		Time("start_at", slot.StartAt).
		Time("end_at", slot.EndAt()).
		Msg("slot published")
	return slot, nil
}

// DeleteSlot removes an unbooked slot. Only its doctor or an admin may
// delete it, and a booked slot is never deleted.
func (s *Service) DeleteSlot(ctx context.Context, p auth.Principal, slotID uuid.UUID) error {
	if err := auth.Authorize(p, auth.OpDeleteSlot); err != nil {
		return err
	}

	release, err := s.acquire(ctx, "deleteSlot", lock.SlotKey(slotID))
	if err != nil {
		return err
	}
	defer release()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		if !canManage(p, slot.DoctorID) {
			return fmt.Errorf("%w: slot belongs to another doctor", auth.ErrForbidden)
		}
		if slot.Booked {
			return ErrSlotInUse
		}
		return s.slots.Delete(ctx, slotID)
	})
	if err != nil {
		return s.storeErr("deleteSlot", err)
	}

	s.logger.Info().
		Str("slot_id", slotID.String()).
		Str("actor", p.ID).
		Msg("slot deleted")
	return nil
}
