package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adoptionplatform/vetcare/internal/platform/db"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	// bookingWindowLockKey identifies the advisory lock that serializes
	// free-form conflict checks across server processes.
	bookingWindowLockKey int64 = 0x7665745f626b // "vet_bk"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const slotCols = `id, doctor_id, start_at, duration_minutes, booked, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.StartAt, &s.DurationMinutes, &s.Booked, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return &s, err
}

func collectSlots(rows pgx.Rows, err error) ([]*Slot, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) Create(ctx context.Context, s *Slot) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vet_availability (id, doctor_id, start_at, duration_minutes, booked)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		s.ID, s.DoctorID, s.StartAt, s.DurationMinutes, s.Booked).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM vet_availability WHERE id = $1`, id))
}

func (r *slotRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM vet_availability WHERE id = $1 FOR UPDATE`, id))
}

func (r *slotRepoPG) SetBooked(ctx context.Context, id uuid.UUID, booked bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE vet_availability SET booked = $2, updated_at = NOW() WHERE id = $1`, id, booked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM vet_availability WHERE id = $1`, id)
	if err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return ErrSlotInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) ListByDoctor(ctx context.Context, doctorID string) ([]*Slot, error) {
	return collectSlots(r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM vet_availability WHERE doctor_id = $1 ORDER BY start_at DESC`, doctorID))
}

func (r *slotRepoPG) ListOpen(ctx context.Context, after time.Time) ([]*Slot, error) {
	return collectSlots(r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM vet_availability WHERE NOT booked AND start_at > $1 ORDER BY start_at ASC`, after))
}

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

func (r *bookingRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const bookingCols = `id, user_id, doctor_id, slot_id, start_at, duration_minutes, phone, message, created_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.UserID, &b.DoctorID, &b.SlotID, &b.StartAt, &b.DurationMinutes,
		&b.Phone, &b.Message, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return &b, err
}

func collectBookings(rows pgx.Rows, err error) ([]*Booking, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vet_booking (id, user_id, doctor_id, slot_id, start_at, duration_minutes, phone, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		b.ID, b.UserID, b.DoctorID, b.SlotID, b.StartAt, b.DurationMinutes, b.Phone, b.Message).Scan(&b.CreatedAt)
	switch pgErrCode(err) {
	case pgUniqueViolation:
		return ErrSlotAlreadyBooked
	case pgForeignKeyViolation:
		return ErrSlotNotFound
	}
	return err
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM vet_booking WHERE id = $1`, id))
}

func (r *bookingRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM vet_booking WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *bookingRepoPG) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Booking, error) {
	return collectBookings(r.conn(ctx).Query(ctx,
		`SELECT `+bookingCols+` FROM vet_booking WHERE start_at BETWEEN $1 AND $2 ORDER BY start_at ASC`, from, to))
}

func (r *bookingRepoPG) ListByUser(ctx context.Context, userID string) ([]*Booking, error) {
	return collectBookings(r.conn(ctx).Query(ctx,
		`SELECT `+bookingCols+` FROM vet_booking WHERE user_id = $1 ORDER BY start_at DESC`, userID))
}

func (r *bookingRepoPG) LockBookingWindow(ctx context.Context) error {
	if db.TxFromContext(ctx) == nil {
		return errors.New("LockBookingWindow requires a transaction")
	}
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bookingWindowLockKey)
	return err
}

// =========== Transactor ===========

type txPG struct{ pool *pgxpool.Pool }

func NewTransactorPG(pool *pgxpool.Pool) Transactor { return &txPG{pool: pool} }

func (t *txPG) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, t.pool, fn)
}
